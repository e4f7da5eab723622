package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidInvoices(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})

	out, err := execute(cmd, "testdata/invoices")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 3 invoice(s) valid")
}

func TestValidateValidInvoicesJSON(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "json"})

	out, err := execute(cmd, "testdata/invoices/FA-2024-0001.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Records, 1)
	assert.Equal(t, "FA-2024-0001", resp.Data.Records[0].Invoice)
}

func TestValidateInvalidInvoice(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})

	out, err := execute(cmd, "testdata/broken/invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "FA-2024-0100")
	assert.Contains(t, out, "seller name is required")
	assert.Contains(t, out, "requires a buyer id")
	assert.Contains(t, out, "tax item 1")
}

func TestValidateInvalidInvoiceJSON(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "json"})

	out, err := execute(cmd, "testdata/invoices/FA-2024-0001.yaml", "testdata/broken/invalid.yaml")
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Records, 2)
	assert.Empty(t, resp.Data.Records[0].Errors)
	assert.Len(t, resp.Data.Records[1].Errors, 4)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "seller name is required", resp.Error.Message)
}

func TestValidateUnreadableDocument(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "json"})

	out, err := execute(cmd, "testdata/broken/unknown_field.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
}

func TestValidateMissingArgs(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})

	_, err := execute(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}
