package resilience

import (
	"math"
	"time"
)

// Delay returns the wait before retry number attempt (1-based):
// base^attempt seconds plus intn(jitter in ms) milliseconds.
func Delay(attempt int, base float64, jitter time.Duration, intn func(int) int) time.Duration {
	d := time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
	if ms := int(jitter / time.Millisecond); ms > 0 && intn != nil {
		d += time.Duration(intn(ms)) * time.Millisecond
	}
	return d
}

// Backoff yields the retry delays of one call.
// A Backoff is not safe for concurrent use; build one per call.
type Backoff struct {
	maxRetries int
	attempt    int
	base       float64
	jitter     time.Duration
	intn       func(int) int
}

// NewBackoff creates a Backoff allowing maxRetries retries.
func NewBackoff(maxRetries int, base float64, jitter time.Duration, intn func(int) int) *Backoff {
	return &Backoff{maxRetries: maxRetries, base: base, jitter: jitter, intn: intn}
}

// Next implements retry.Backoff.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.attempt >= b.maxRetries {
		return 0, true
	}
	b.attempt++
	return Delay(b.attempt, b.base, b.jitter, b.intn), false
}
