package resilience

import (
	"errors"
	"fmt"
)

// ErrBreakerOpen is returned when the breaker rejects a call without
// invoking it.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// ErrMissingQueryKey is returned by the fallback when the caller supplied no
// record identity to query.
var ErrMissingQueryKey = errors.New("fallback query key is missing")

// ErrNoQuerier is returned by the fallback when the policy was built
// without a Querier.
var ErrNoQuerier = errors.New("no fallback querier configured")

// TransientError marks a connectivity-level failure eligible for retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable. Returns nil for a nil error.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient returns true if err, or an error it wraps, is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FallbackError is returned when the protected call failed and the
// compensating query failed too. No usable response exists.
type FallbackError struct {
	// Cause is the error that escaped the breaker.
	Cause error
	// Err is the failure of the fallback query itself.
	Err error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback query failed: %v (after: %v)", e.Err, e.Cause)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}
