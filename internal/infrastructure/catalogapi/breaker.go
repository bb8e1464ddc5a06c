package catalogapi

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the breaker's position
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const defaultFailureThreshold = 5

// CircuitBreaker trips after consecutive request failures and blocks
// further calls until a cooldown has elapsed. The first call after the
// cooldown runs as a probe: success closes the circuit, failure re-opens
// it for a fresh cooldown.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitState
	failures     int
	threshold    int
	cooldown     time.Duration
	openedAt     time.Time
	logger       *zap.Logger

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker. A non-positive threshold
// falls back to the default of five consecutive failures.
func NewCircuitBreaker(threshold int, cooldown time.Duration, logger *zap.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	return &CircuitBreaker{
		state:     CircuitClosed,
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger.Named("breaker"),
		now:       time.Now,
	}
}

// Allow reports whether a request may proceed. While open it returns a
// CircuitOpenError carrying the remaining cooldown; once the cooldown has
// elapsed the breaker moves to half-open and admits a single probe.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed, CircuitHalfOpen:
		return nil
	case CircuitOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed >= b.cooldown {
			b.state = CircuitHalfOpen
			b.logger.Info("circuit half-open, admitting probe request")
			return nil
		}
		return &CircuitOpenError{OpenedAt: b.openedAt, RetryAfter: b.cooldown - elapsed}
	}
	return nil
}

// RecordSuccess resets the failure streak and closes the circuit
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitClosed {
		b.logger.Info("circuit closed after successful request",
			zap.String("previous_state", b.state.String()))
	}
	b.state = CircuitClosed
	b.failures = 0
}

// RecordFailure counts a failed request. Reaching the threshold, or
// failing the half-open probe, opens the circuit for a full cooldown.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitHalfOpen {
		b.open()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.open()
	}
}

func (b *CircuitBreaker) open() {
	b.state = CircuitOpen
	b.failures = 0
	b.openedAt = b.now()
	b.logger.Warn("circuit opened",
		zap.Time("opened_at", b.openedAt),
		zap.Duration("cooldown", b.cooldown))
}

// State returns the current position without mutating it
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
