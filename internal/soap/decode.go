package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when there is nothing to decode.
var ErrEmptyPayload = errors.New("empty payload")

// ErrUnknownBody is returned when the envelope body holds none of the
// known replies.
var ErrUnknownBody = errors.New("envelope body holds no known reply")

// Reply is a decoded service reply. Exactly one field is set.
type Reply struct {
	Fault      *Fault
	Submission *SubmissionReply
	Query      *QueryReply
}

// Fault is a SOAP 1.1 fault.
type Fault struct {
	Code    string      `xml:"faultcode"`
	Message string      `xml:"faultstring"`
	Detail  FaultDetail `xml:"detail"`
}

// FaultDetail carries the service's diagnostic call stack.
type FaultDetail struct {
	CallStack string `xml:"callstack"`
}

// SubmissionReply is the reply to a registration request.
type SubmissionReply struct {
	// CSV is the secure verification code issued for the submission.
	CSV         string      `xml:"CSV"`
	WaitSeconds int         `xml:"TiempoEsperaEnvio"`
	Status      string      `xml:"EstadoEnvio"`
	Lines       []ReplyLine `xml:"RespuestaLinea"`
}

// ReplyLine is the per-record result of a submission.
type ReplyLine struct {
	Invoice          ReplyInvoiceID `xml:"IDFactura"`
	Status           string         `xml:"EstadoRegistro"`
	ErrorCode        string         `xml:"CodigoErrorRegistro"`
	ErrorDescription string         `xml:"DescripcionErrorRegistro"`
}

// ReplyInvoiceID identifies the record a reply line refers to.
type ReplyInvoiceID struct {
	SellerID  string `xml:"IDEmisorFactura"`
	InvoiceID string `xml:"NumSerieFactura"`
	IssueDate string `xml:"FechaExpedicionFactura"`
}

// QueryReply is the reply to a status query.
type QueryReply struct {
	Result  string        `xml:"ResultadoConsulta"`
	Records []QueryRecord `xml:"RegistroRespuestaConsultaFactuSistemaFacturacion"`
}

// QueryRecord is one record found by a status query.
type QueryRecord struct {
	Invoice ReplyInvoiceID   `xml:"IDFactura"`
	State   QueryRecordState `xml:"EstadoRegistro"`
}

// QueryRecordState is the registration status of a queried record.
type QueryRecordState struct {
	Status           string `xml:"EstadoRegistro"`
	ErrorCode        string `xml:"CodigoErrorRegistro"`
	ErrorDescription string `xml:"DescripcionErrorRegistro"`
}

type inboundEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault      *Fault           `xml:"Fault"`
		Submission *SubmissionReply `xml:"RespuestaRegFactuSistemaFacturacion"`
		Query      *QueryReply      `xml:"RespuestaConsultaFactuSistemaFacturacion"`
	} `xml:"Body"`
}

// Decode parses a reply envelope.
func (c *Codec) Decode(payload []byte) (*Reply, error) {
	return Decode(payload)
}

// Decode parses a reply envelope.
func Decode(payload []byte) (*Reply, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, ErrEmptyPayload
	}

	var env inboundEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch {
	case env.Body.Fault != nil:
		return &Reply{Fault: env.Body.Fault}, nil
	case env.Body.Submission != nil:
		return &Reply{Submission: env.Body.Submission}, nil
	case env.Body.Query != nil:
		return &Reply{Query: env.Body.Query}, nil
	default:
		return nil, ErrUnknownBody
	}
}
