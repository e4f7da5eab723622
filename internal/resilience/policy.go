package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-retry"
)

// Config holds the retry and breaker parameters.
type Config struct {
	// RetryCount is the number of retries after the first attempt.
	RetryCount int
	// RetryBaseDelay is the base of the exponential delay, in seconds.
	RetryBaseDelay float64
	// Jitter is the upper bound of the random delay added to each wait.
	Jitter time.Duration
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// BreakDuration is how long the breaker stays open.
	BreakDuration time.Duration
	// QueryTimeout bounds the fallback query when it outlives the
	// caller's context.
	QueryTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RetryCount:       3,
		RetryBaseDelay:   2,
		Jitter:           100 * time.Millisecond,
		FailureThreshold: 5,
		BreakDuration:    60 * time.Second,
		QueryTimeout:     30 * time.Second,
	}
}

// QueryKey identifies the record whose status the fallback asks for.
type QueryKey struct {
	SellerID   string
	CompanyID  int
	SellerName string
	InvoiceID  string
	IssueDate  time.Time
}

// Year is the fiscal year of the record, as queried.
func (k QueryKey) Year() string {
	return fmt.Sprintf("%04d", k.IssueDate.Year())
}

// Month is the two-digit period of the record, as queried.
func (k QueryKey) Month() string {
	return fmt.Sprintf("%02d", int(k.IssueDate.Month()))
}

// Querier asks the authority for the status of a previously sent record.
type Querier interface {
	QueryInvoice(ctx context.Context, key QueryKey) ([]byte, error)
}

// Call is the protected operation. It returns the raw response body.
type Call func(ctx context.Context) ([]byte, error)

// Result is the outcome of Execute.
type Result struct {
	Body []byte
	// FromFallback is true when Body is the reply of the status query.
	FromFallback bool
	// Attempts is the number of times the call was invoked.
	Attempts int
}

// Option configures a Policy.
type Option func(*Policy)

// WithLogger sets the logger used for retry, breaker and fallback events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// WithClock sets the clock driving the breaker's break duration.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Policy) {
		p.clock = clock
	}
}

// WithRandom sets the jitter source. intn(n) must return a value in [0, n).
func WithRandom(intn func(int) int) Option {
	return func(p *Policy) {
		p.intn = intn
	}
}

// Policy composes fallback, breaker and retry around a Call.
type Policy struct {
	cfg     Config
	querier Querier
	breaker *Breaker
	logger  *slog.Logger
	clock   clockwork.Clock
	intn    func(int) int
}

// New creates a Policy. querier may be nil, in which case every failure
// that escapes the breaker is returned as a FallbackError.
func New(cfg Config, querier Querier, opts ...Option) *Policy {
	p := &Policy{
		cfg:     cfg,
		querier: querier,
		logger:  slog.Default(),
		clock:   clockwork.NewRealClock(),
		intn:    rand.IntN,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breaker = NewBreaker(cfg.FailureThreshold, cfg.BreakDuration, p.clock, p.logger)
	return p
}

// Breaker exposes the policy's circuit breaker.
func (p *Policy) Breaker() *Breaker {
	return p.breaker
}

// Execute runs call under the policy. key identifies the record for the
// fallback query and must be supplied on every invocation.
//
// The returned error is nil whenever a body was obtained, either from the
// call or from the fallback. Otherwise it is a FallbackError, or the
// context error when ctx ended before the call was ever invoked.
//
// When ctx ends after the call was invoked, the authority may hold the
// record, so the fallback still runs on a context detached from ctx and
// bounded by Config.QueryTimeout.
func (p *Policy) Execute(ctx context.Context, key QueryKey, call Call) (Result, error) {
	var res Result

	body, err := p.breaker.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return p.retry(ctx, call, &res.Attempts)
	})
	if err == nil {
		res.Body = body
		return res, nil
	}
	if ctx.Err() != nil {
		if res.Attempts == 0 {
			return res, err
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), p.queryTimeout())
		defer cancel()
	}

	p.logger.Warn("entering fallback",
		"seller", key.SellerID,
		"company", key.CompanyID,
		"invoice", key.InvoiceID,
		"error", err,
	)

	if p.querier == nil {
		return res, &FallbackError{Cause: err, Err: ErrNoQuerier}
	}
	if key.InvoiceID == "" || key.SellerID == "" {
		return res, &FallbackError{Cause: err, Err: ErrMissingQueryKey}
	}

	qbody, qerr := p.querier.QueryInvoice(ctx, key)
	if qerr != nil {
		p.logger.Error("fallback query failed",
			"seller", key.SellerID,
			"invoice", key.InvoiceID,
			"error", qerr,
		)
		return res, &FallbackError{Cause: err, Err: qerr}
	}

	res.Body = qbody
	res.FromFallback = true
	return res, nil
}

func (p *Policy) queryTimeout() time.Duration {
	if p.cfg.QueryTimeout > 0 {
		return p.cfg.QueryTimeout
	}
	return DefaultConfig().QueryTimeout
}

func (p *Policy) retry(ctx context.Context, call Call, attempts *int) ([]byte, error) {
	var body []byte
	backoff := NewBackoff(p.cfg.RetryCount, p.cfg.RetryBaseDelay, p.cfg.Jitter, p.intn)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		*attempts++
		b, err := call(ctx)
		if err != nil {
			if IsTransient(err) {
				p.logger.Warn("send attempt failed",
					"attempt", *attempts,
					"max_attempts", p.cfg.RetryCount+1,
					"error", err,
				)
				return retry.RetryableError(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
