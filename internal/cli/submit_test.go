package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juliansprt/VeriFactu/internal/lifecycle"
	"github.com/juliansprt/VeriFactu/internal/soap"
	"github.com/juliansprt/VeriFactu/internal/store"
	"github.com/juliansprt/VeriFactu/internal/submission"
	"github.com/juliansprt/VeriFactu/internal/testutil"
)

const sampleFile = "testdata/invoices/FA-2024-0001.yaml"

func acceptedReply() []byte {
	return testutil.SubmissionReply(soap.StatusAccepted, "A-YDSW8NLFLANWPM",
		testutil.ReplyLine{InvoiceID: "FA-2024-0001", Status: soap.RecordAccepted})
}

type submitResponse struct {
	Status string          `json:"status"`
	Data   []SubmitSummary `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeSubmitResponse(t *testing.T, out string) submitResponse {
	t.Helper()
	var resp submitResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func decodeSubmit(t *testing.T, out string) []SubmitSummary {
	t.Helper()
	return decodeSubmitResponse(t, out).Data
}

func TestSubmitAcceptedInvoice(t *testing.T) {
	e := newEnv(t, &fakeAuthority{submitReply: acceptedReply()})

	out, err := execute(NewSubmitCommand(e.rootOptions("json")), sampleFile)
	require.NoError(t, err)

	resp := decodeSubmitResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)

	summaries := resp.Data
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, "FA-2024-0001", s.Invoice)
	assert.Equal(t, lifecycle.Valid, s.State)
	assert.Equal(t, "full-acceptance", s.Outcome)
	assert.Equal(t, "A-YDSW8NLFLANWPM", s.Reference)
	assert.Equal(t, 1, s.Attempts)
	assert.False(t, s.FromFallback)
	assert.Contains(t, s.Verification, "numserie=FA-2024-0001")
	assert.Empty(t, s.Failure)
	assert.Equal(t, 1, e.authority.submits)
}

func TestSubmitTextOutput(t *testing.T) {
	e := newEnv(t, &fakeAuthority{submitReply: acceptedReply()})

	out, err := execute(NewSubmitCommand(e.rootOptions("text")), sampleFile)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ FA-2024-0001 Valid reference=A-YDSW8NLFLANWPM attempts=1")
	assert.Contains(t, out, "verify: ")
}

func TestSubmitAcceptedInvoiceIsNotResent(t *testing.T) {
	e := newEnv(t, &fakeAuthority{submitReply: acceptedReply()})

	_, err := execute(NewSubmitCommand(e.rootOptions("json")), sampleFile)
	require.NoError(t, err)

	out, err := execute(NewSubmitCommand(e.rootOptions("json")), sampleFile)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 1 invoice(s) not accepted")

	resp := decodeSubmitResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSubmission, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "FA-2024-0001")

	summaries := resp.Data
	require.Len(t, summaries, 1)
	assert.Equal(t, submission.KindGuard, summaries[0].Kind)
	assert.Equal(t, lifecycle.Valid, summaries[0].State)
	assert.Equal(t, 1, e.authority.submits, "guarded record must not reach the authority")
}

func TestSubmitRejectedInvoice(t *testing.T) {
	e := newEnv(t, &fakeAuthority{submitReply: testutil.SubmissionReply(soap.StatusRejected, "",
		testutil.ReplyLine{InvoiceID: "FA-2024-0001", Status: soap.RecordRejected, Code: "4102", Description: "El XML no cumple el esquema"})})

	out, err := execute(NewSubmitCommand(e.rootOptions("json")), sampleFile)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeSubmitResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRejected, resp.Error.Code)

	summaries := resp.Data
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, lifecycle.Incorrect, s.State)
	assert.Equal(t, "rejection", s.Outcome)
	assert.Equal(t, submission.KindRejection, s.Kind)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "4102", s.Errors[0].Code)
}

func TestSubmitInvalidInvoiceTouchesNothing(t *testing.T) {
	e := newEnv(t, &fakeAuthority{submitReply: acceptedReply()})

	out, err := execute(NewSubmitCommand(e.rootOptions("json")), "testdata/broken/invalid.yaml")
	require.Error(t, err)

	resp := decodeSubmitResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)

	summaries := resp.Data
	require.Len(t, summaries, 1)
	assert.Equal(t, submission.KindValidation, summaries[0].Kind)
	assert.Equal(t, lifecycle.Incorrect, summaries[0].State)
	assert.Len(t, summaries[0].Errors, 4)
	assert.Equal(t, 0, e.authority.submits)
}

func TestSubmitBadConfig(t *testing.T) {
	opts := &RootOptions{Format: "json", Config: "testdata/missing.yaml"}

	_, err := execute(NewSubmitCommand(opts), sampleFile)
	require.Error(t, err)
}

func TestStatusAfterSubmit(t *testing.T) {
	e := newEnv(t, &fakeAuthority{submitReply: acceptedReply()})
	_, err := execute(NewSubmitCommand(e.rootOptions("json")), sampleFile)
	require.NoError(t, err)

	out, err := execute(NewStatusCommand(e.rootOptions("json")),
		"--seller", "B12345678", "--company", "1", "FA-2024-0001")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			store.StateRecord
			Verification string `json:"verification"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, lifecycle.Valid, resp.Data.State)
	assert.Equal(t, "FA-2024-0001", resp.Data.Key.InvoiceID)
	assert.Contains(t, resp.Data.Verification, "ValidarQR")
}

func TestStatusUnknownInvoice(t *testing.T) {
	e := newEnv(t, &fakeAuthority{})

	out, err := execute(NewStatusCommand(e.rootOptions("json")),
		"--seller", "B12345678", "--company", "1", "FA-2024-9999")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestChainAfterSubmit(t *testing.T) {
	e := newEnv(t, &fakeAuthority{submitReply: acceptedReply()})
	_, err := execute(NewSubmitCommand(e.rootOptions("json")), sampleFile)
	require.NoError(t, err)

	out, err := execute(NewChainCommand(e.rootOptions("text")), "verify", "B12345678")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ chain B12345678 intact (1 entries)")

	out, err = execute(NewChainCommand(e.rootOptions("json")), "list", "B12345678")
	require.NoError(t, err)

	var resp struct {
		Data []store.ChainEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "FA-2024-0001", resp.Data[0].InvoiceID)
	assert.True(t, resp.Data[0].Confirmed)
	assert.Len(t, resp.Data[0].Fingerprint, 64)
}

func TestChainListEmpty(t *testing.T) {
	e := newEnv(t, &fakeAuthority{})

	out, err := execute(NewChainCommand(e.rootOptions("text")), "list", "B12345678")
	require.NoError(t, err)
	assert.Contains(t, out, "chain B12345678 is empty")
}
