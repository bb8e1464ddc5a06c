package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalog-monitor/internal/application/monitoring"
	"github.com/erp/catalog-monitor/internal/domain/catalog"
	"github.com/erp/catalog-monitor/internal/infrastructure/catalogapi"
	"github.com/erp/catalog-monitor/internal/infrastructure/config"
	"github.com/erp/catalog-monitor/internal/infrastructure/logger"
	"github.com/erp/catalog-monitor/internal/infrastructure/notification"
	"github.com/erp/catalog-monitor/internal/infrastructure/persistence"
	"github.com/erp/catalog-monitor/internal/infrastructure/runlock"
	"github.com/erp/catalog-monitor/internal/infrastructure/storage"
	"github.com/erp/catalog-monitor/internal/infrastructure/telemetry"
)

// dbPinger adapts the connection pool to the scheduler's health probe
type dbPinger struct {
	db *persistence.Database
}

func (p dbPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func main() {
	var (
		tierName   = flag.String("tier", string(monitoring.TierAll), "Run tier: high-priority, normal, low-priority, maintenance, health-check, all")
		configPath = flag.String("config", "", "Path to config file (default: ./config.toml)")
		logLevel   = flag.String("log-level", "", "Override log level: debug, info, warn, error")
		dryRun     = flag.Bool("dry-run", false, "Detect and record changes but do not deliver alerts")
	)
	flag.Parse()

	tier, err := monitoring.ParseTier(*tierName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -tier %q: %v\n", *tierName, err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	runID := fmt.Sprintf("run-%s", time.Now().UTC().Format("20060102-150405"))
	ctx, log := logger.WithRunID(context.Background(), log, runID)

	// Stop cleanly on SIGINT/SIGTERM; the current batch finishes, the rest
	// of the run is abandoned
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting catalog monitor",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("tier", string(tier)),
		zap.Bool("dry_run", *dryRun),
	)

	summary, err := run(ctx, cfg, tier, *dryRun, log)
	if summary != nil {
		if out, jsonErr := json.Marshal(summary); jsonErr == nil {
			fmt.Println(string(out))
		}
	}
	if err != nil {
		log.Error("Run failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Run complete", zap.Duration("duration", summary.Duration))
}

// run wires the full pipeline and executes one scheduler run
func run(ctx context.Context, cfg *config.Config, tier monitoring.Tier, dryRun bool, log *zap.Logger) (*monitoring.RunSummary, error) {
	// Metrics pipeline (no-op when telemetry is disabled)
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		ExportInterval:    cfg.Telemetry.ExportInterval,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewPipelineMetrics(telemetry.PipelineMetricsConfig{
		Meter:  meterProvider.Meter("catalog-monitor"),
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	// Database connection with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	itemRepo := persistence.NewGormItemRepository(db.DB)
	priceRepo := persistence.NewGormPriceHistoryRepository(db.DB)
	stockRepo := persistence.NewGormStockHistoryRepository(db.DB)
	ruleRepo := persistence.NewGormMonitoringRuleRepository(db.DB)
	ledgerRepo := persistence.NewGormRequestLedgerRepository(db.DB)
	alertLogRepo := persistence.NewGormAlertLogRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Raw payload archive, disabled unless configured
	var archiver catalogapi.PayloadArchiver = storage.NewNopArchiver()
	if cfg.Archive.Enabled {
		s3Archiver, err := storage.NewS3PayloadArchiver(&cfg.Archive, storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("init payload archive: %w", err)
		}
		if err := s3Archiver.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure archive bucket: %w", err)
		}
		archiver = s3Archiver
	}

	// Catalog API client behind the quota governor and circuit breaker
	quota, err := catalogapi.NewQuotaGovernor(
		ledgerRepo,
		cfg.Quota.DailyCeiling,
		time.Duration(cfg.Quota.MinIntervalMs)*time.Millisecond,
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("init quota governor: %w", err)
	}
	breaker := catalogapi.NewCircuitBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown, log)

	client, err := catalogapi.NewClient(&catalogapi.ClientConfig{
		Endpoint:            cfg.API.Endpoint,
		AccessKey:           cfg.API.AccessKey,
		SecretKey:           cfg.API.SecretKey,
		PartnerTag:          cfg.API.PartnerTag,
		Marketplace:         cfg.API.Marketplace,
		Region:              cfg.API.Region,
		TimeoutSeconds:      cfg.API.TimeoutSeconds,
		ThrottleRetryBaseMs: cfg.API.ThrottleRetryBaseMs,
	}, quota, breaker, metrics, archiver, log)
	if err != nil {
		return nil, fmt.Errorf("init catalog client: %w", err)
	}
	fetcher := catalogapi.NewBatchFetcher(client, log)

	// Application services
	normalizer := monitoring.NewNormalizer(cfg.API.Marketplace)
	changes := monitoring.NewChangeService(txScope, catalog.PriorityLevel(cfg.Monitor.DefaultPriority), log)
	channels := notification.BuildChannels(&cfg.Alerts, log)
	alerts := monitoring.NewAlertService(channels, alertLogRepo, dryRun, log)

	scheduler := monitoring.NewSchedulerService(
		&monitoring.SchedulerConfig{
			MaxRulesPerRun:   cfg.Monitor.MaxRulesPerRun,
			Resources:        cfg.API.Resources,
			StaleAfter:       cfg.Monitor.StaleAfter,
			HistoryRetention: cfg.Monitor.HistoryRetention,
		},
		runlock.New(cfg.App.LockFile, log),
		ruleRepo,
		itemRepo,
		priceRepo,
		stockRepo,
		fetcher,
		normalizer,
		changes,
		alerts,
		quota,
		breaker,
		dbPinger{db},
		log,
	)

	summary, err := scheduler.Run(ctx, tier)
	if summary != nil {
		metrics.RecordRunDuration(ctx, string(tier), summary.Duration)
		metrics.RecordQuotaUsed(ctx, summary.QuotaUsed)
	}
	if err != nil {
		return summary, err
	}

	log.Info("Scheduler run finished",
		zap.Int("rules_selected", summary.RulesSelected),
		zap.Int("items_fetched", summary.ItemsFetched),
		zap.Int("items_changed", summary.ItemsChanged),
		zap.Int("alerts_sent", summary.AlertsSent),
		zap.Duration("elapsed", summary.Duration),
	)
	return summary, nil
}
