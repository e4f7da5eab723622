package submission

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/juliansprt/VeriFactu/internal/aeat"
	"github.com/juliansprt/VeriFactu/internal/classify"
	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
	"github.com/juliansprt/VeriFactu/internal/resilience"
)

// Validator returns the business-rule violations of a record.
type Validator interface {
	GetErrors(rec *invoice.Record) []string
}

// Ledger is the per-seller hash chain.
type Ledger interface {
	Add(ctx context.Context, rec *invoice.Record) (invoice.ChainLink, error)
	Delete(ctx context.Context, rec *invoice.Record) error
	Confirm(ctx context.Context, link invoice.ChainLink) error
	// Pending returns the unconfirmed link rec already owns, if any.
	Pending(ctx context.Context, rec *invoice.Record) (invoice.ChainLink, bool, error)
}

// Codec builds the registration envelope.
type Codec interface {
	EncodeSubmission(rec *invoice.Record, link invoice.ChainLink) ([]byte, error)
}

// Transport posts an envelope and returns the reply.
type Transport interface {
	Send(ctx context.Context, call aeat.Call) ([]byte, error)
}

// Gate serializes access to the endpoint.
type Gate interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Policy runs the send under retry, circuit breaking and fallback.
type Policy interface {
	Execute(ctx context.Context, key resilience.QueryKey, call resilience.Call) (resilience.Result, error)
}

// Classifier maps a raw reply to an outcome.
type Classifier interface {
	Classify(payload []byte) classify.Outcome
}

// FileStorage keeps the envelopes exchanged. Failures are logged only.
type FileStorage interface {
	SaveRequest(ctx context.Context, payload []byte, companyID int, invoiceID string) error
	SaveResponse(ctx context.Context, text string, companyID int, invoiceID string) error
}

// StateStore records every state a record passes through.
type StateStore interface {
	SetState(ctx context.Context, key invoice.Key, state lifecycle.State, message string, errs []invoice.ResponseError) error
}

// PostProcessor receives accepted records with their verification payload.
type PostProcessor interface {
	ProcessVerified(ctx context.Context, companyID int, invoiceID string, state lifecycle.State, payload string) error
}

// Verifier builds the verification payload of an accepted record.
type Verifier interface {
	Payload(rec *invoice.Record, link invoice.ChainLink) (string, error)
}

// Credentials returns a company's client certificate.
type Credentials interface {
	Credential(ctx context.Context, companyID int) (*tls.Certificate, error)
}

// Deps are the collaborators of an Orchestrator. Files, PostProcess,
// Verifier, Credentials and Querier are optional.
//
// Querier, when set, is asked about a record resuming on an existing
// chain entry before that record is sent again.
type Deps struct {
	Validator  Validator
	Ledger     Ledger
	Codec      Codec
	Transport  Transport
	Gate       Gate
	Policy     Policy
	Classifier Classifier
	States     StateStore

	Files       FileStorage
	PostProcess PostProcessor
	Verifier    Verifier
	Credentials Credentials
	Querier     resilience.Querier
}

func (d Deps) validate() error {
	var errs []error
	required := []struct {
		name string
		set  bool
	}{
		{"validator", d.Validator != nil},
		{"ledger", d.Ledger != nil},
		{"codec", d.Codec != nil},
		{"transport", d.Transport != nil},
		{"gate", d.Gate != nil},
		{"policy", d.Policy != nil},
		{"classifier", d.Classifier != nil},
		{"state store", d.States != nil},
	}
	for _, r := range required {
		if !r.set {
			errs = append(errs, errors.New("missing "+r.name))
		}
	}
	return errors.Join(errs...)
}
