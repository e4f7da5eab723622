package submission

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/juliansprt/VeriFactu/internal/aeat"
	"github.com/juliansprt/VeriFactu/internal/classify"
	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
	"github.com/juliansprt/VeriFactu/internal/resilience"
	"github.com/juliansprt/VeriFactu/internal/soap"
)

// run is the state of one Submit call.
type run struct {
	o      *Orchestrator
	rec    *invoice.Record
	res    *Result
	logger *slog.Logger

	// stage is the last stage that passed its guard.
	stage lifecycle.Stage
	// chained is set while the record owns a chain entry the authority
	// has not seen.
	chained bool
	// release frees the seller lease; nil when none is held.
	release func()
	// sideErrs collects persistence and confirmation failures that do not
	// change the pipeline path.
	sideErrs []error
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	deps := r.o.deps

	if err := r.guard(lifecycle.StageValidate); err != nil {
		return r.res, err
	}

	if violations := deps.Validator.GetErrors(r.rec); len(violations) > 0 {
		errs := make([]invoice.ResponseError, len(violations))
		for i, v := range violations {
			errs[i] = invoice.ResponseError{Description: v}
		}
		return r.fail(ctx, &Error{
			Kind:   KindValidation,
			Stage:  lifecycle.StageValidate,
			State:  lifecycle.Incorrect,
			Errors: errs,
			Err:    fmt.Errorf("%d business rule violations", len(violations)),
		})
	}

	cred, err := r.credential(ctx)
	if err != nil {
		return r.fail(ctx, r.localFailure(KindCredential, lifecycle.StageCredential, err))
	}

	if err := r.guard(lifecycle.StageChainAppend); err != nil {
		return r.res, err
	}
	release, err := r.o.leases.acquire(ctx, r.rec.SellerID)
	if err != nil {
		return r.fail(ctx, r.localFailure(KindChain, lifecycle.StageChainAppend, fmt.Errorf("seller lease: %w", err)))
	}
	r.release = release

	link, resumed, err := r.chainEntry(ctx)
	if err != nil {
		return r.fail(ctx, r.localFailure(KindChain, lifecycle.StageChainAppend, err))
	}
	r.chained = true
	r.res.Link = link

	if r.rec.State != lifecycle.PendingSendAEAT {
		if err := r.advance(ctx, lifecycle.PendingSendAEAT, "", nil); err != nil {
			return r.fail(ctx, r.localFailure(KindInternal, lifecycle.StageChainAppend, err))
		}
	}

	var sent resilience.Result
	if resumed {
		sent.Body, sent.FromFallback = r.lookup(ctx)
	}
	if !sent.FromFallback {
		if err := r.guard(lifecycle.StageEncode); err != nil {
			return r.res, err
		}
		payload, err := deps.Codec.EncodeSubmission(r.rec, link)
		if err != nil {
			return r.fail(ctx, r.localFailure(KindEncoding, lifecycle.StageEncode, err))
		}
		r.saveRequest(ctx, payload)

		if err := r.guard(lifecycle.StageSend); err != nil {
			return r.res, err
		}
		sent, err = deps.Policy.Execute(ctx, r.queryKey(), r.sendCall(payload, cred))
		r.res.Attempts = sent.Attempts
		if err != nil {
			// A resumed entry may already be known to the authority.
			if ctx.Err() != nil && (sent.Attempts > 0 || resumed) {
				return r.unresolved(ctx, err)
			}
			return r.fail(ctx, r.localFailure(KindTransport, lifecycle.StageSend, err))
		}
	}
	r.res.FromFallback = sent.FromFallback
	r.chained = false // a reply exists
	// The authority holds an answer; settle it even if the caller left.
	ctx = context.WithoutCancel(ctx)
	r.saveResponse(ctx, sent.Body)

	if err := r.guard(lifecycle.StageClassify); err != nil {
		return r.res, err
	}
	outcome := deps.Classifier.Classify(sent.Body)
	r.res.Outcome = &outcome
	r.logger.Info("reply classified",
		"outcome", outcome.Kind,
		"status", outcome.Status,
		"fallback", sent.FromFallback,
		"errors", len(outcome.Errors),
	)

	if outcome.Kind == classify.NotRegistered {
		// The status query shows the authority never received the record.
		r.chained = true
		return r.fail(ctx, r.localFailure(KindTransport, lifecycle.StageSend, errNotRegistered))
	}

	if err := deps.Ledger.Confirm(ctx, link); err != nil {
		r.logger.Error("chain confirmation failed", "position", link.ID, "error", err)
		r.sideErrs = append(r.sideErrs, fmt.Errorf("confirm chain entry: %w", err))
	}
	r.releaseLease()

	if err := r.advance(ctx, lifecycle.SendedAEAT, outcome.Status, nil); err != nil {
		return r.fail(ctx, r.localFailure(KindInternal, lifecycle.StageClassify, err))
	}

	switch outcome.Kind {
	case classify.FullAcceptance:
		return r.accept(ctx, outcome)

	case classify.PartialAcceptance:
		if err := r.advance(ctx, lifecycle.PartlyCorrect, outcome.Message(), outcome.Errors); err != nil {
			return r.fail(ctx, r.localFailure(KindInternal, lifecycle.StageClassify, err))
		}
		r.rec.Errors = outcome.Errors
		r.res.Errors = outcome.Errors
		return r.res, r.sideError()

	case classify.Rejection:
		return r.fail(ctx, &Error{
			Kind:   KindRejection,
			Stage:  lifecycle.StageClassify,
			State:  lifecycle.Incorrect,
			Errors: outcome.Errors,
			Err:    fmt.Errorf("rejected with status %q", outcome.Status),
		})

	default:
		return r.fail(ctx, &Error{
			Kind:   KindProtocolFault,
			Stage:  lifecycle.StageClassify,
			State:  lifecycle.Incorrect,
			Errors: outcome.Errors,
			Err:    errors.New(outcome.Message()),
		})
	}
}

// accept finishes a fully accepted record.
func (r *run) accept(ctx context.Context, outcome classify.Outcome) (*Result, error) {
	deps := r.o.deps

	if err := r.advance(ctx, lifecycle.Valid, outcome.Reference, nil); err != nil {
		return r.fail(ctx, r.localFailure(KindInternal, lifecycle.StageClassify, err))
	}
	r.rec.Errors = nil

	if deps.Verifier == nil || !lifecycle.CanRun(r.rec.State, lifecycle.StagePostProcess) {
		return r.res, r.sideError()
	}

	verification, err := deps.Verifier.Payload(r.rec, r.res.Link)
	if err != nil {
		return r.postProcessFailure(err)
	}
	r.res.Verification = verification

	if deps.PostProcess != nil {
		err := deps.PostProcess.ProcessVerified(ctx, r.rec.CompanyID, r.rec.InvoiceID, r.rec.State, verification)
		if err != nil {
			return r.postProcessFailure(err)
		}
	}
	return r.res, r.sideError()
}

// postProcessFailure reports a failure after acceptance. The record stays
// Valid: the authority holds it.
func (r *run) postProcessFailure(err error) (*Result, error) {
	r.logger.Error("post-processing failed", "error", err)
	return r.res, r.finish(&Error{
		Kind:  KindPostProcess,
		Stage: lifecycle.StagePostProcess,
		State: r.rec.State,
		Key:   r.res.Key,
		Err:   err,
	})
}

// chainEntry returns the chain entry the record is sent with. A record
// that already owns an unconfirmed entry from an earlier Submit resumes on
// it; resumed reports that case.
func (r *run) chainEntry(ctx context.Context) (link invoice.ChainLink, resumed bool, err error) {
	if r.rec.State != lifecycle.Created {
		link, found, err := r.o.deps.Ledger.Pending(ctx, r.rec)
		if err != nil {
			return link, false, err
		}
		if found {
			r.logger.Info("chain entry resumed", "position", link.ID, "fingerprint", link.Fingerprint)
			return link, true, nil
		}
	}
	link, err = r.o.deps.Ledger.Add(ctx, r.rec)
	if err != nil {
		return link, false, err
	}
	r.logger.Info("chain entry appended", "position", link.ID, "fingerprint", link.Fingerprint)
	return link, false, nil
}

// lookup asks the authority whether it already holds a resumed record.
// found is false when no querier is configured, the query fails or the
// reply does not settle the record; the record is then sent again.
func (r *run) lookup(ctx context.Context) (body []byte, found bool) {
	q := r.o.deps.Querier
	if q == nil {
		return nil, false
	}
	body, err := q.QueryInvoice(ctx, r.queryKey())
	if err != nil {
		r.logger.Warn("resume lookup failed", "error", err)
		return nil, false
	}
	switch r.o.deps.Classifier.Classify(body).Kind {
	case classify.FullAcceptance, classify.PartialAcceptance, classify.Rejection:
		r.logger.Info("resumed record already registered")
		return body, true
	default:
		return nil, false
	}
}

// unresolved ends a run whose caller left during the send when the status
// query could not settle the outcome. The record keeps its chain entry and
// stays PendingSendAEAT for a later Submit to resume.
func (r *run) unresolved(ctx context.Context, err error) (*Result, error) {
	r.chained = false
	e := r.localFailure(KindUnresolved, lifecycle.StageSend, err)
	e.State = lifecycle.PendingSendAEAT
	return r.fail(ctx, e)
}

func (r *run) releaseLease() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}

func (r *run) guard(stage lifecycle.Stage) error {
	if lifecycle.CanRun(r.rec.State, stage) {
		r.stage = stage
		return nil
	}
	r.logger.Warn("stage refused", "stage", stage, "state", r.rec.State)
	return &Error{
		Kind:  KindGuard,
		Stage: stage,
		State: r.rec.State,
		Key:   r.res.Key,
		Err:   fmt.Errorf("record in state %s cannot run %s", r.rec.State, stage),
	}
}

func (r *run) credential(ctx context.Context) (*tls.Certificate, error) {
	if r.o.deps.Credentials == nil {
		return nil, nil
	}
	return r.o.deps.Credentials.Credential(ctx, r.rec.CompanyID)
}

func (r *run) queryKey() resilience.QueryKey {
	return resilience.QueryKey{
		SellerID:   r.rec.SellerID,
		CompanyID:  r.rec.CompanyID,
		SellerName: r.rec.SellerName,
		InvoiceID:  r.rec.InvoiceID,
		IssueDate:  r.rec.IssueDate,
	}
}

// sendCall is the transport call protected by the policy. Each attempt
// passes through the gate separately.
func (r *run) sendCall(payload []byte, cred *tls.Certificate) resilience.Call {
	deps := r.o.deps
	call := aeat.Call{
		Endpoint:   r.o.endpoint,
		Action:     soap.Action(r.o.endpoint, soap.OpSubmit),
		Payload:    payload,
		Credential: cred,
	}
	return func(ctx context.Context) ([]byte, error) {
		var body []byte
		err := deps.Gate.Do(ctx, func(ctx context.Context) error {
			var sendErr error
			body, sendErr = deps.Transport.Send(ctx, call)
			return sendErr
		})
		return body, err
	}
}

// advance moves the record to state and persists it.
func (r *run) advance(ctx context.Context, to lifecycle.State, message string, errs []invoice.ResponseError) error {
	from := r.rec.State
	if err := lifecycle.Transition(from, to); err != nil {
		return err
	}
	r.rec.State = to
	r.res.State = to
	r.logger.Info("state changed", "from", from, "to", to)
	r.persist(ctx, message, errs)
	return nil
}

func (r *run) persist(ctx context.Context, message string, errs []invoice.ResponseError) {
	err := r.o.deps.States.SetState(context.WithoutCancel(ctx), r.res.Key, r.rec.State, message, errs)
	if err != nil {
		r.logger.Error("state persistence failed", "state", r.rec.State, "error", err)
		r.sideErrs = append(r.sideErrs, fmt.Errorf("persist state %s: %w", r.rec.State, err))
	}
}

// localFailure builds an Error for a failure raised on this side of the
// wire. The record goes to Failed with a single error coded by kind.
func (r *run) localFailure(kind Kind, stage lifecycle.Stage, err error) *Error {
	return &Error{
		Kind:   kind,
		Stage:  stage,
		State:  lifecycle.Failed,
		Errors: []invoice.ResponseError{{Code: string(kind), Description: err.Error()}},
		Err:    err,
	}
}

// fail compensates the chain entry if the record still owns one, moves
// the record to e.State, persists it and returns e.
func (r *run) fail(ctx context.Context, e *Error) (*Result, error) {
	e.Key = r.res.Key

	if r.chained {
		if err := r.compensate(ctx); err != nil {
			e.Err = errors.Join(e.Err, err)
		} else {
			e.Compensated = true
		}
	}

	if r.rec.State != e.State {
		if err := lifecycle.Transition(r.rec.State, e.State); err != nil {
			r.logger.Error("cannot record failure state", "error", err)
			e.State = r.rec.State
		} else {
			r.logger.Info("state changed", "from", r.rec.State, "to", e.State)
			r.rec.State = e.State
		}
	}
	r.rec.Errors = e.Errors
	r.res.State = r.rec.State
	r.res.Errors = e.Errors

	message := e.Err.Error()
	if len(e.Errors) > 0 {
		message = e.Errors[0].Description
	}
	r.persist(ctx, message, e.Errors)

	r.logger.Warn("submission failed",
		"kind", e.Kind,
		"stage", e.Stage,
		"state", e.State,
		"compensated", e.Compensated,
		"error", e.Err,
	)
	return r.res, r.finish(e)
}

// compensate removes the record's chain entry. It must only run while the
// authority has not seen the record.
func (r *run) compensate(ctx context.Context) error {
	r.chained = false
	if err := r.o.deps.Ledger.Delete(context.WithoutCancel(ctx), r.rec); err != nil {
		r.logger.Error("chain compensation failed", "position", r.res.Link.ID, "error", err)
		return fmt.Errorf("compensate chain entry: %w", err)
	}
	r.logger.Info("chain entry compensated", "position", r.res.Link.ID)
	return nil
}

func (r *run) saveRequest(ctx context.Context, payload []byte) {
	if r.o.deps.Files == nil {
		return
	}
	if err := r.o.deps.Files.SaveRequest(ctx, payload, r.rec.CompanyID, r.rec.InvoiceID); err != nil {
		r.logger.Warn("request archive failed", "error", err)
	}
}

func (r *run) saveResponse(ctx context.Context, body []byte) {
	if r.o.deps.Files == nil {
		return
	}
	if err := r.o.deps.Files.SaveResponse(ctx, string(body), r.rec.CompanyID, r.rec.InvoiceID); err != nil {
		r.logger.Warn("response archive failed", "error", err)
	}
}

// finish joins side failures into the primary error.
func (r *run) finish(e *Error) error {
	if len(r.sideErrs) == 0 {
		return e
	}
	return errors.Join(append([]error{e}, r.sideErrs...)...)
}

func (r *run) sideError() error {
	return errors.Join(r.sideErrs...)
}

// recoverPanic records a panic as an internal failure and re-raises it.
func (r *run) recoverPanic(ctx context.Context) {
	p := recover()
	if p == nil {
		return
	}
	r.logger.Error("submission panicked", "state", r.rec.State, "panic", p)

	err := r.localFailure(KindInternal, r.stage, fmt.Errorf("panic: %v", p))
	if r.rec.State == lifecycle.Valid {
		// The authority accepted the record; keep the state.
		err.State = lifecycle.Valid
	}
	r.fail(ctx, err)
	panic(p)
}
