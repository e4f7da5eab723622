package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var errConnRefused = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastConfig has zero delays so retries do not sleep.
func fastConfig() Config {
	return Config{
		RetryCount:       3,
		RetryBaseDelay:   0,
		Jitter:           0,
		FailureThreshold: 5,
		BreakDuration:    time.Minute,
	}
}

func testKey() QueryKey {
	return QueryKey{
		SellerID:   "B12345678",
		CompanyID:  1,
		SellerName: "ACME SL",
		InvoiceID:  "A-0001",
		IssueDate:  time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
	}
}

// fakeQuerier records fallback queries.
type fakeQuerier struct {
	mu    sync.Mutex
	keys  []QueryKey
	reply []byte
	err   error
	// ctxErrs records the context state each query ran with.
	ctxErrs []error
	// deadlines records whether each query's context had a deadline.
	deadlines []bool
}

func (q *fakeQuerier) QueryInvoice(ctx context.Context, key QueryKey) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, key)
	q.ctxErrs = append(q.ctxErrs, ctx.Err())
	_, ok := ctx.Deadline()
	q.deadlines = append(q.deadlines, ok)
	return q.reply, q.err
}

func (q *fakeQuerier) calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.keys)
}

// scriptedCall returns the scripted errors in order, then succeeds.
type scriptedCall struct {
	mu    sync.Mutex
	errs  []error
	body  []byte
	count int
}

func (c *scriptedCall) call(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if c.count <= len(c.errs) {
		return nil, c.errs[c.count-1]
	}
	return c.body, nil
}

func (c *scriptedCall) invocations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func alwaysFail(err error) Call {
	return func(context.Context) ([]byte, error) {
		return nil, err
	}
}

func newTestPolicy(cfg Config, q Querier, clock clockwork.Clock) *Policy {
	return New(cfg, q,
		WithLogger(discardLogger()),
		WithClock(clock),
		WithRandom(func(int) int { return 0 }),
	)
}
