package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// BreakerState is the circuit state.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a consecutive-failure circuit breaker.
//
// Thread-safety: all methods are safe for concurrent use. While half-open
// exactly one trial call is in flight; concurrent callers are rejected.
type Breaker struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	logger    *slog.Logger
	threshold int
	duration  time.Duration

	state    BreakerState
	failures int
	openedAt time.Time
}

// NewBreaker creates a closed breaker that opens after threshold
// consecutive failures and stays open for duration.
func NewBreaker(threshold int, duration time.Duration, clock clockwork.Clock, logger *slog.Logger) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		clock:     clock,
		logger:    logger,
		threshold: threshold,
		duration:  duration,
	}
}

// State returns the current state. An open breaker whose break duration
// has elapsed still reports Open until the next call is admitted.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn if the breaker admits the call and records the outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	trial, err := b.admit()
	if err != nil {
		return nil, err
	}

	body, err := fn(ctx)
	b.record(trial, err)
	return body, err
}

func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return false, nil
	case Open:
		if b.clock.Since(b.openedAt) < b.duration {
			return false, ErrBreakerOpen
		}
		b.state = HalfOpen
		b.logger.Info("circuit half-open, admitting trial call")
		return true, nil
	default:
		// Half-open with the trial already in flight.
		return false, ErrBreakerOpen
	}
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if trial {
			b.logger.Info("circuit closed after successful trial")
		}
		b.state = Closed
		b.failures = 0
		return
	}

	if errors.Is(err, context.Canceled) {
		// Abandoned by the caller: no verdict on the authority.
		if trial {
			b.state = Open
		}
		return
	}

	if trial {
		b.open(err)
		return
	}
	if b.state != Closed {
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.open(err)
	}
}

func (b *Breaker) open(cause error) {
	b.state = Open
	b.openedAt = b.clock.Now()
	b.failures = 0
	b.logger.Warn("circuit opened",
		"break_duration", b.duration,
		"error", cause,
	)
}
