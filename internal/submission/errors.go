package submission

import (
	"errors"
	"fmt"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindGuard means the record's state does not allow the stage to run.
	KindGuard Kind = "STAGE_GUARD"

	// KindValidation means the record broke one or more business rules.
	KindValidation Kind = "VALIDATION_FAILED"

	// KindCredential means the company's client certificate is unusable.
	KindCredential Kind = "CREDENTIAL_FAILURE"

	// KindChain means the ledger append failed.
	KindChain Kind = "CHAIN_FAILURE"

	// KindEncoding means the outbound envelope could not be built.
	KindEncoding Kind = "ENCODING_FAILURE"

	// KindTransport means no usable reply was obtained, fallback included.
	KindTransport Kind = "TRANSPORT_FAILURE"

	// KindUnresolved means the caller left during the send and the status
	// query could not tell whether the authority holds the record. The
	// record keeps its chain entry and stays PendingSendAEAT.
	KindUnresolved Kind = "OUTCOME_UNKNOWN"

	// KindRejection means the authority rejected the record.
	KindRejection Kind = "REJECTION"

	// KindProtocolFault means the reply was a fault or could not be read.
	KindProtocolFault Kind = "PROTOCOL_FAULT"

	// KindPostProcess means post-processing of an accepted record failed.
	KindPostProcess Kind = "POSTPROCESS_FAILURE"

	// KindInternal covers anything outside the taxonomy.
	KindInternal Kind = invoice.InternalCode
)

// Error is a failed submission.
type Error struct {
	Kind  Kind
	Stage lifecycle.Stage
	// State is the state the record was left in.
	State lifecycle.State
	Key   invoice.Key
	// Errors are the response errors attached to the record.
	Errors []invoice.ResponseError
	// Compensated is true when the record's chain entry was removed.
	Compensated bool
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s at %s: %v (invoice=%s, state=%s)", e.Kind, e.Stage, e.Err, e.Key, e.State)
	if e.Compensated {
		msg += " [chain compensated]"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a submission error, or "" if err is not one.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsGuardError returns true if the pipeline refused to run for the
// record's state.
func IsGuardError(err error) bool {
	return KindOf(err) == KindGuard
}

// IsValidationError returns true if the record failed validation.
func IsValidationError(err error) bool {
	return KindOf(err) == KindValidation
}

// IsTransportError returns true if no reply could be obtained.
func IsTransportError(err error) bool {
	return KindOf(err) == KindTransport
}

// IsUnresolved returns true if the send outcome is unknown and the record
// awaits a later Submit.
func IsUnresolved(err error) bool {
	return KindOf(err) == KindUnresolved
}

// IsRejected returns true if the authority replied with a rejection or a
// fault.
func IsRejected(err error) bool {
	k := KindOf(err)
	return k == KindRejection || k == KindProtocolFault
}

// errNotRegistered is the cause recorded when the fallback query finds no
// record at the authority.
var errNotRegistered = errors.New("authority holds no record of the submission")
