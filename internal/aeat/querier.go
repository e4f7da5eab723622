package aeat

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/juliansprt/VeriFactu/internal/resilience"
	"github.com/juliansprt/VeriFactu/internal/soap"
)

// FaultError is a SOAP fault returned to a status query.
type FaultError struct {
	Code    string
	Message string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("query fault %s: %s", e.Code, e.Message)
}

// Sender posts envelopes. Implemented by *HTTPTransport.
type Sender interface {
	Send(ctx context.Context, call Call) ([]byte, error)
}

// CredentialSource returns a company's client certificate.
type CredentialSource interface {
	Credential(ctx context.Context, companyID int) (*tls.Certificate, error)
}

// QueryCodec builds status queries and parses their replies.
type QueryCodec interface {
	EncodeQuery(key resilience.QueryKey) ([]byte, error)
	Decode(payload []byte) (*soap.Reply, error)
}

// Querier runs the status query used as the submission fallback.
type Querier struct {
	endpoint string
	codec    QueryCodec
	sender   Sender
	gate     *Gate
	creds    CredentialSource
	logger   *slog.Logger
}

// NewQuerier creates a Querier. creds may be nil when the endpoint needs
// no client certificate.
func NewQuerier(endpoint string, codec QueryCodec, sender Sender, gate *Gate, creds CredentialSource, logger *slog.Logger) *Querier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Querier{
		endpoint: endpoint,
		codec:    codec,
		sender:   sender,
		gate:     gate,
		creds:    creds,
		logger:   logger,
	}
}

// QueryInvoice asks the authority for the registration status of one
// invoice and returns the raw reply. A fault reply is an error.
func (q *Querier) QueryInvoice(ctx context.Context, key resilience.QueryKey) ([]byte, error) {
	payload, err := q.codec.EncodeQuery(key)
	if err != nil {
		return nil, err
	}

	var cred *tls.Certificate
	if q.creds != nil {
		if cred, err = q.creds.Credential(ctx, key.CompanyID); err != nil {
			return nil, fmt.Errorf("query credential: %w", err)
		}
	}

	q.logger.Info("querying invoice status",
		"seller", key.SellerID,
		"company", key.CompanyID,
		"invoice", key.InvoiceID,
	)

	var body []byte
	err = q.gate.Do(ctx, func(ctx context.Context) error {
		var sendErr error
		body, sendErr = q.sender.Send(ctx, Call{
			Endpoint:   q.endpoint,
			Action:     soap.Action(q.endpoint, soap.OpQuery),
			Payload:    payload,
			Credential: cred,
		})
		return sendErr
	})
	if err != nil {
		return nil, fmt.Errorf("query invoice: %w", err)
	}

	reply, err := q.codec.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode query reply: %w", err)
	}
	if reply.Fault != nil {
		return nil, &FaultError{Code: reply.Fault.Code, Message: reply.Fault.Message}
	}
	if reply.Query == nil {
		return nil, errors.New("query invoice: reply is not a query result")
	}
	return body, nil
}
