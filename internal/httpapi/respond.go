package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
	"github.com/juliansprt/VeriFactu/internal/submission"
)

// submitResponse is the body of POST /v1/invoices.
type submitResponse struct {
	RequestID    string                  `json:"request_id,omitempty"`
	AttemptID    string                  `json:"attempt_id"`
	Invoice      string                  `json:"invoice"`
	State        lifecycle.State         `json:"state"`
	Outcome      string                  `json:"outcome,omitempty"`
	Reference    string                  `json:"reference,omitempty"`
	ChainID      uint64                  `json:"chain_id,omitempty"`
	Fingerprint  string                  `json:"fingerprint,omitempty"`
	Attempts     int                     `json:"attempts"`
	FromFallback bool                    `json:"from_fallback,omitempty"`
	Verification string                  `json:"verification,omitempty"`
	Errors       []invoice.ResponseError `json:"errors,omitempty"`
	Error        *errorBody              `json:"error,omitempty"`
}

type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Compensated bool   `json:"compensated,omitempty"`
}

func newSubmitResponse(requestID string, res *submission.Result, err error) submitResponse {
	body := submitResponse{
		RequestID:    requestID,
		AttemptID:    res.AttemptID,
		Invoice:      res.Key.String(),
		State:        res.State,
		Fingerprint:  res.Link.Fingerprint,
		ChainID:      res.Link.ID,
		Attempts:     res.Attempts,
		FromFallback: res.FromFallback,
		Verification: res.Verification,
		Errors:       res.Errors,
	}
	if res.Outcome != nil {
		body.Outcome = res.Outcome.Kind.String()
		body.Reference = res.Outcome.Reference
	}
	if err != nil {
		eb := &errorBody{Code: string(submission.KindOf(err)), Message: err.Error()}
		var se *submission.Error
		if errors.As(err, &se) {
			eb.Compensated = se.Compensated
		}
		if eb.Code == "" {
			eb.Code = string(submission.KindInternal)
		}
		body.Error = eb
	}
	return body
}

// writeJSON writes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the common error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": errorBody{Code: code, Message: message},
	})
}
