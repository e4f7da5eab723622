package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
)

func TestLoadRecords_Directory(t *testing.T) {
	records, errs := LoadRecords([]string{"testdata/invoices"}, LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, records, 3)

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.Record.InvoiceID
		assert.Equal(t, lifecycle.Created, r.Record.State)
	}
	assert.ElementsMatch(t, []string{"FA-2024-0001", "FA-2024-0002", "FA-2024-0003"}, ids)
}

func TestLoadRecords_MultiDocumentFile(t *testing.T) {
	records, errs := LoadRecords([]string{"testdata/invoices/batch.yml"}, LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, records, 2)

	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, invoice.TypeSimplified, records[0].Record.Type)
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, "E1", records[1].Record.TaxItems[0].Exemption)
	assert.Empty(t, records[1].Record.TaxItems[0].Category)
}

func TestLoadRecords_UnknownField(t *testing.T) {
	_, errs := LoadRecords([]string{"testdata/broken/unknown_field.yaml"}, LoadModeFailFast)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeParse, loadErr.Code)
	assert.Contains(t, loadErr.Message, "invoice_number")
}

func TestLoadRecords_Modes(t *testing.T) {
	dir := t.TempDir()
	content := "invoice_id: A\nissue_date: \"15/11/2024\"\n---\ninvoice_id: B\nissue_date: \"2024-02-30\"\n---\ninvoice_id: C\nissue_date: \"2024-11-15\"\n"
	path := filepath.Join(dir, "dates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, errs := LoadRecords([]string{path}, LoadModeFailFast)
	assert.Len(t, errs, 1)

	records, errs := LoadRecords([]string{path}, LoadModeCollectAll)
	assert.Len(t, errs, 2)
	require.Len(t, records, 1)
	assert.Equal(t, "C", records[0].Record.InvoiceID)
	assert.Equal(t, 2, records[0].Index)
}

func TestLoadRecords_NotFound(t *testing.T) {
	_, errs := LoadRecords([]string{"testdata/missing.yaml"}, LoadModeFailFast)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadRecords_EmptyDirectory(t *testing.T) {
	_, errs := LoadRecords([]string{t.TempDir()}, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no invoice documents found")
}
