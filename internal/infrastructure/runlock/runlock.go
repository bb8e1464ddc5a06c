package runlock

import (
	"fmt"
	"os"
	"sync"

	"github.com/erp/catalog-monitor/internal/application/monitoring"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrAlreadyLocked indicates another scheduler process holds the lock
var ErrAlreadyLocked = fmt.Errorf("another monitoring run is already in progress")

// FileLock is an advisory flock-based process lock. It guards against two
// scheduler processes running against the same database at once; the lock
// is released automatically by the kernel if the process dies.
type FileLock struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a file lock at the given path. The lock is not taken until
// Acquire is called.
func New(path string, logger *zap.Logger) *FileLock {
	return &FileLock{
		path:   path,
		logger: logger.Named("runlock"),
	}
}

// Acquire takes the exclusive lock without blocking. It fails with
// ErrAlreadyLocked when another process holds it.
func (l *FileLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return fmt.Errorf("lock already held by this process")
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file %s: %w", l.path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		if err == unix.EWOULDBLOCK {
			return ErrAlreadyLocked
		}
		return fmt.Errorf("failed to lock %s: %w", l.path, err)
	}

	// Record the owning PID for operators inspecting a held lock
	_ = file.Truncate(0)
	_, _ = fmt.Fprintf(file, "%d\n", os.Getpid())
	_ = file.Sync()

	l.file = file
	l.logger.Debug("run lock acquired", zap.String("path", l.path))
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}

	l.file = nil
	l.logger.Debug("run lock released", zap.String("path", l.path))
	return nil
}

// Ensure FileLock implements the scheduler's RunLock
var _ monitoring.RunLock = (*FileLock)(nil)
