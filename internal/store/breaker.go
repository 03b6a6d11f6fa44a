package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// ErrCircuitOpen is returned without touching the backend while the
// breaker is open.
var ErrCircuitOpen = errors.New("replay store circuit open")

// BreakerState is a snapshot of the breaker for health reporting.
type BreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

// Breaker wraps a ReplayStore with a circuit breaker so requests fail fast
// while the backend is down.
// State transitions: closed → open → half-open → closed
//
//   - Closed: Normal operation. Consecutive failures are counted.
//   - Open: Every call returns ErrCircuitOpen. Moves to half-open after the
//     cooldown.
//   - Half-Open: One trial call is let through. Success closes the circuit,
//     failure opens it again.
type Breaker struct {
	next             ReplayStore
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
	Now              func() time.Time

	mu           sync.Mutex
	state        string
	failures     int
	lastFailedAt time.Time
	probing      bool
}

func NewBreaker(next ReplayStore, logger *slog.Logger) *Breaker {
	return &Breaker{
		next:             next,
		logger:           logger,
		failureThreshold: 5,
		cooldownPeriod:   30 * time.Second,
		Now:              time.Now,
		state:            StateClosed,
	}
}

// WithThreshold overrides the failure threshold and cooldown.
func (b *Breaker) WithThreshold(failures int, cooldown time.Duration) *Breaker {
	if failures > 0 {
		b.failureThreshold = failures
	}
	if cooldown > 0 {
		b.cooldownPeriod = cooldown
	}
	return b
}

func (b *Breaker) Reserve(ctx context.Context, key, owner string) (bool, error) {
	if err := b.allow(); err != nil {
		return false, err
	}
	ok, err := b.next.Reserve(ctx, key, owner)
	b.record(err)
	return ok, err
}

func (b *Breaker) Commit(ctx context.Context, key, owner string) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.next.Commit(ctx, key, owner)
	b.record(backendErr(err))
	return err
}

func (b *Breaker) Release(ctx context.Context, key, owner string) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.next.Release(ctx, key, owner)
	b.record(err)
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state
	if state == StateOpen && b.Now().Sub(b.lastFailedAt) >= b.cooldownPeriod {
		state = StateHalfOpen
	}
	result := BreakerState{State: state, Failures: b.failures}
	if !b.lastFailedAt.IsZero() {
		result.LastFailedAt = b.lastFailedAt.Format(time.RFC3339)
	}
	return result
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.Now().Sub(b.lastFailedAt) < b.cooldownPeriod {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		b.logger.Info("replay store circuit half-open")
		return nil
	case StateHalfOpen:
		// Only one trial call at a time in half-open
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state == StateHalfOpen {
			b.logger.Info("replay store circuit closed (recovered)")
		}
		b.state = StateClosed
		b.failures = 0
		b.probing = false
		return
	}

	b.failures++
	b.lastFailedAt = b.Now()

	switch {
	case b.state == StateHalfOpen:
		b.state = StateOpen
		b.probing = false
		b.logger.Warn("replay store circuit re-opened (half-open trial failed)", "error", err)
	case b.failures >= b.failureThreshold:
		b.state = StateOpen
		b.logger.Warn("replay store circuit opened",
			"failures", b.failures,
			"threshold", b.failureThreshold,
			"error", err,
		)
	}
}

// backendErr drops outcomes that prove the backend answered.
func backendErr(err error) error {
	if errors.Is(err, ErrReservationLost) {
		return nil
	}
	return err
}
