package catalogapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalog-monitor/internal/domain/catalog"
)

// Errors for quota governor construction
var (
	ErrQuotaInvalidCeiling  = errors.New("catalogapi: daily ceiling must be positive")
	ErrQuotaInvalidInterval = errors.New("catalogapi: minimum interval must be positive")
)

// QuotaGovernor enforces the provider's daily request ceiling and minimum
// inter-request interval. The daily count lives in the request ledger so it
// survives process restarts; the inter-request spacing is in-memory state.
//
// The pipeline runs single-threaded, but the governor is mutex-guarded
// anyway so a shared instance stays correct if fetches are ever
// parallelized. The spacing then serializes aggregate throughput exactly
// as in the sequential design.
type QuotaGovernor struct {
	ledger       catalog.RequestLedgerRepository
	dailyCeiling int64
	minInterval  time.Duration
	logger       *zap.Logger

	mu          sync.Mutex
	day         string
	count       int64
	countLoaded bool
	lastRequest time.Time

	now func() time.Time
}

// NewQuotaGovernor creates a governor over the persistent request ledger
func NewQuotaGovernor(ledger catalog.RequestLedgerRepository, dailyCeiling int64, minInterval time.Duration, logger *zap.Logger) (*QuotaGovernor, error) {
	if dailyCeiling <= 0 {
		return nil, ErrQuotaInvalidCeiling
	}
	if minInterval <= 0 {
		return nil, ErrQuotaInvalidInterval
	}
	return &QuotaGovernor{
		ledger:       ledger,
		dailyCeiling: dailyCeiling,
		minInterval:  minInterval,
		logger:       logger.Named("quota"),
		now:          time.Now,
	}, nil
}

// Reserve blocks until the inter-request interval has elapsed, then
// consumes one request from the daily budget. It fails immediately with a
// QuotaExceededError when the day's ceiling would be exceeded, and with the
// context's error when the caller is cancelled while waiting.
func (g *QuotaGovernor) Reserve(ctx context.Context) error {
	for {
		g.mu.Lock()

		now := g.now()
		day := catalog.LedgerDay(now)
		if day != g.day {
			// UTC day boundary: reload the persisted count
			count, err := g.ledger.CountForDay(ctx, day)
			if err != nil {
				g.mu.Unlock()
				return err
			}
			g.day = day
			g.count = count
			g.countLoaded = true
		}

		if g.count+1 > g.dailyCeiling {
			used, ceiling := g.count, g.dailyCeiling
			g.mu.Unlock()
			return &QuotaExceededError{Used: used, Ceiling: ceiling, Day: day}
		}

		wait := g.minInterval - now.Sub(g.lastRequest)
		if wait <= 0 || g.lastRequest.IsZero() {
			count, err := g.ledger.Increment(ctx, day)
			if err != nil {
				g.mu.Unlock()
				return err
			}
			g.count = count
			g.lastRequest = now
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Used returns the requests consumed so far today, for the run summary
func (g *QuotaGovernor) Used(ctx context.Context) (int64, error) {
	g.mu.Lock()
	if g.countLoaded && g.day == catalog.LedgerDay(g.now()) {
		count := g.count
		g.mu.Unlock()
		return count, nil
	}
	g.mu.Unlock()
	return g.ledger.CountForDay(ctx, catalog.LedgerDay(g.now()))
}

// Ceiling returns the configured daily request ceiling
func (g *QuotaGovernor) Ceiling() int64 {
	return g.dailyCeiling
}
