package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/juliansprt/VeriFactu/internal/classify"
	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
)

// Result describes one submission attempt.
type Result struct {
	AttemptID string
	Key       invoice.Key
	// State is the record's state when Submit returned.
	State lifecycle.State
	// Outcome is nil unless a reply was classified.
	Outcome *classify.Outcome
	Link    invoice.ChainLink
	// Attempts counts transport calls, excluding the fallback query.
	Attempts     int
	FromFallback bool
	// Verification is the verification payload of an accepted record.
	Verification string
	Errors       []invoice.ResponseError
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithIDGenerator sets the attempt id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Orchestrator) {
		o.ids = gen
	}
}

// Orchestrator runs the submission pipeline.
type Orchestrator struct {
	endpoint string
	deps     Deps
	logger   *slog.Logger
	ids      IDGenerator
	leases   *sellerLeases
}

// New creates an Orchestrator posting to endpoint. The Policy in deps must
// be shared by every Orchestrator of the process for its circuit breaker
// to be effective.
func New(endpoint string, deps Deps, opts ...Option) (*Orchestrator, error) {
	if endpoint == "" {
		return nil, errors.New("new orchestrator: endpoint is required")
	}
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("new orchestrator: %w", err)
	}

	o := &Orchestrator{
		endpoint: endpoint,
		deps:     deps,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		leases:   newSellerLeases(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Submit runs rec through the pipeline once, updating rec.State and
// rec.Errors in place.
//
// A nil error means the record ended Valid or PartlyCorrect. Otherwise the
// error is an *Error, possibly joined with state persistence failures. The
// Result is returned in both cases.
//
// A panic in a collaborator is logged, recorded as Failed with an INTERNAL
// error, and re-raised.
//
// Submissions of one seller hold a lease from the chain append until the
// reply is settled; concurrent calls for the same seller wait for it.
func (o *Orchestrator) Submit(ctx context.Context, rec *invoice.Record) (*Result, error) {
	if rec == nil {
		return nil, errors.New("submit: nil record")
	}

	r := &run{
		o:   o,
		rec: rec,
		res: &Result{
			AttemptID: o.ids.Generate(),
			Key:       rec.Key(),
			State:     rec.State,
		},
	}
	r.logger = o.logger.With(
		"attempt", r.res.AttemptID,
		"seller", rec.SellerID,
		"company", rec.CompanyID,
		"invoice", rec.InvoiceID,
	)

	defer r.releaseLease()
	defer r.recoverPanic(ctx)
	return r.execute(ctx)
}
