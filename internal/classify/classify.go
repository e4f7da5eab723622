// Package classify maps a raw authority reply to a submission outcome.
//
// Rules, in order:
//  1. Undecodable payloads and SOAP faults are protocol faults.
//  2. A registration reply with at least one line error is a partial
//     acceptance when the overall status is ParcialmenteCorrecto, and a
//     rejection otherwise. Every line error is carried.
//  3. Otherwise an accepted status is a full acceptance carrying the CSV.
//
// Status-query replies, produced by the resilience fallback, are mapped
// from the registration status of the queried record. A query that finds
// nothing yields NotRegistered.
package classify

import (
	"fmt"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/soap"
)

// PartialAcceptanceStatus is the overall status of a partial acceptance.
const PartialAcceptanceStatus = soap.StatusPartial

// MalformedCode is attached to replies that could not be decoded.
const MalformedCode = "MALFORMED_RESPONSE"

// Kind is the class of a reply.
type Kind int

const (
	FullAcceptance Kind = iota
	PartialAcceptance
	Rejection
	ProtocolFault
	// NotRegistered means a status query found no record: the authority
	// never received the submission.
	NotRegistered
)

func (k Kind) String() string {
	switch k {
	case FullAcceptance:
		return "full-acceptance"
	case PartialAcceptance:
		return "partial-acceptance"
	case Rejection:
		return "rejection"
	case ProtocolFault:
		return "protocol-fault"
	case NotRegistered:
		return "not-registered"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the classified reply.
type Outcome struct {
	Kind Kind
	// Status is the overall status reported by the authority, if any.
	Status string
	// Reference is the confirmation reference (CSV) of an accepted
	// submission. Status queries carry none.
	Reference string
	Errors    []invoice.ResponseError
}

// Message summarises the outcome for state persistence.
func (o Outcome) Message() string {
	if len(o.Errors) > 0 {
		e := o.Errors[0]
		if e.Code == "" {
			return e.Description
		}
		return fmt.Sprintf("[%s] %s", e.Code, e.Description)
	}
	return o.Status
}

// Decoder parses a raw reply.
type Decoder interface {
	Decode(payload []byte) (*soap.Reply, error)
}

// Classifier classifies raw replies.
type Classifier struct {
	decoder Decoder
}

// New creates a Classifier over decoder.
func New(decoder Decoder) *Classifier {
	return &Classifier{decoder: decoder}
}

// Classify maps payload to an Outcome. It never fails: anything that
// cannot be understood is a ProtocolFault.
func (c *Classifier) Classify(payload []byte) Outcome {
	reply, err := c.decoder.Decode(payload)
	if err != nil {
		return fault(MalformedCode, err.Error())
	}

	switch {
	case reply.Fault != nil:
		return Outcome{
			Kind:   ProtocolFault,
			Errors: []invoice.ResponseError{{Code: reply.Fault.Code, Description: reply.Fault.Message}},
		}
	case reply.Submission != nil:
		return classifySubmission(reply.Submission)
	case reply.Query != nil:
		return classifyQuery(reply.Query)
	default:
		return fault(MalformedCode, "reply holds no body")
	}
}

func classifySubmission(r *soap.SubmissionReply) Outcome {
	var errs []invoice.ResponseError
	for _, line := range r.Lines {
		if line.ErrorCode == "" {
			continue
		}
		errs = append(errs, invoice.ResponseError{
			Code:        line.ErrorCode,
			Description: line.ErrorDescription,
		})
	}

	if len(errs) > 0 {
		kind := Rejection
		if r.Status == PartialAcceptanceStatus {
			kind = PartialAcceptance
		}
		return Outcome{Kind: kind, Status: r.Status, Reference: r.CSV, Errors: errs}
	}

	// Without line errors any named status is an acceptance.
	if r.Status == "" {
		return fault(MalformedCode, "reply without status")
	}
	return Outcome{Kind: FullAcceptance, Status: r.Status, Reference: r.CSV}
}

func classifyQuery(r *soap.QueryReply) Outcome {
	if r.Result == soap.QueryNoData || len(r.Records) == 0 {
		return Outcome{Kind: NotRegistered, Status: r.Result}
	}

	state := r.Records[0].State
	var errs []invoice.ResponseError
	if state.ErrorCode != "" || state.ErrorDescription != "" {
		errs = []invoice.ResponseError{{Code: state.ErrorCode, Description: state.ErrorDescription}}
	}

	switch state.Status {
	case soap.RecordAccepted:
		return Outcome{Kind: FullAcceptance, Status: state.Status}
	case soap.RecordAcceptedWithErrors:
		return Outcome{Kind: PartialAcceptance, Status: state.Status, Errors: errs}
	case soap.RecordRejected:
		return Outcome{Kind: Rejection, Status: state.Status, Errors: errs}
	case soap.RecordCancelled:
		return Outcome{Kind: Rejection, Status: state.Status, Errors: []invoice.ResponseError{
			{Description: "record is cancelled at the authority"},
		}}
	default:
		return fault(MalformedCode, fmt.Sprintf("unknown record status %q", state.Status))
	}
}

func fault(code, message string) Outcome {
	return Outcome{
		Kind:   ProtocolFault,
		Errors: []invoice.ResponseError{{Code: code, Description: message}},
	}
}
