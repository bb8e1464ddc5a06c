package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{
			name: "empty config falls back to defaults",
			cfg:  &Config{},
		},
		{
			name: "debug console for a hand-run tier",
			cfg: &Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
		},
		{
			name: "json to stderr for a scheduled run",
			cfg: &Config{
				Level:      "info",
				Format:     "json",
				Output:     "stderr",
				TimeFormat: "2006-01-02T15:04:05Z07:00",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			result := parseLevel(tt.level)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSync(t *testing.T) {
	logger, err := New(&Config{})
	require.NoError(t, err)

	// Sync may fail on stderr in some environments; it must not panic
	_ = Sync(logger)
}

func TestNewWriter(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"stdout", "stdout"},
		{"stderr", "stderr"},
		{"STDOUT", "STDOUT"},
		{"empty defaults to stderr", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := newWriter(tt.output)
			assert.NotNil(t, writer)
		})
	}
}

func TestNewWriterFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "monitor-log-*.log")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	writer := newWriter(tmpFile.Name())
	assert.NotNil(t, writer)
}

func TestNewWriterUnopenableFileFallsBack(t *testing.T) {
	// A bad log path must not kill a scheduled run
	writer := newWriter("/nonexistent-dir/monitor.log")
	assert.NotNil(t, writer)
}

func TestRunLogShape(t *testing.T) {
	var buf bytes.Buffer

	core := zapcore.NewCore(
		newEncoder(&Config{Format: "json"}),
		zapcore.AddSync(&buf),
		zapcore.InfoLevel,
	)
	logger := zap.New(core).Named("scheduler")

	logger.Info("run complete",
		zap.String("run_id", "run-20260314-120000"),
		zap.Int("items_fetched", 25),
	)

	var output map[string]any
	err := json.Unmarshal(buf.Bytes(), &output)
	require.NoError(t, err)

	assert.Equal(t, "run complete", output["msg"])
	assert.Equal(t, "info", output["level"])
	assert.Equal(t, "scheduler", output["logger"])
	assert.Equal(t, "run-20260314-120000", output["run_id"])
	assert.Equal(t, float64(25), output["items_fetched"])
	assert.NotEmpty(t, output["time"])
}

func TestEncoderFormats(t *testing.T) {
	assert.NotNil(t, newEncoder(&Config{Format: "console"}))
	assert.NotNil(t, newEncoder(&Config{Format: "json"}))
	// Unknown and empty formats fall back to json
	assert.NotNil(t, newEncoder(&Config{}))
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	newBufLogger := func(level zapcore.Level) *zap.Logger {
		core := zapcore.NewCore(
			newEncoder(&Config{Format: "json"}),
			zapcore.AddSync(&buf),
			level,
		)
		return zap.New(core)
	}

	logger := newBufLogger(zapcore.DebugLevel)
	logger.Debug("item diff detail")
	assert.Contains(t, buf.String(), "item diff detail")

	buf.Reset()

	logger = newBufLogger(zapcore.InfoLevel)
	logger.Debug("item diff detail")
	assert.NotContains(t, buf.String(), "item diff detail")

	logger.Info("chunk fetched")
	assert.Contains(t, buf.String(), "chunk fetched")
}
