package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRequestAndResponse(t *testing.T) {
	root := t.TempDir()
	d := New(root)
	ctx := context.Background()

	require.NoError(t, d.SaveRequest(ctx, []byte("<request/>"), 1, "FA-2024-0001"))
	require.NoError(t, d.SaveResponse(ctx, "<response/>", 1, "FA-2024-0001"))

	req, err := os.ReadFile(filepath.Join(root, "1", "Request-FA-2024-0001.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<request/>", string(req))

	resp, err := os.ReadFile(d.ResponsePath(1, "FA-2024-0001"))
	require.NoError(t, err)
	assert.Equal(t, "<response/>", string(resp))
}

func TestSave_OverwritesPreviousAttempt(t *testing.T) {
	d := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, d.SaveRequest(ctx, []byte("first"), 1, "FA-1"))
	require.NoError(t, d.SaveRequest(ctx, []byte("second"), 1, "FA-1"))

	data, err := os.ReadFile(d.RequestPath(1, "FA-1"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(d.RequestPath(1, "FA-1")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestPath_StaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	d := New(root)

	for _, id := range []string{"../../etc/passwd", "A/B\\C", "..", "FA 2024:1"} {
		path := d.RequestPath(7, id)
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		assert.Equal(t, "7", filepath.Dir(rel), id)
	}
	assert.Equal(t, "Request-FA_2024_1.xml", filepath.Base(d.RequestPath(7, "FA 2024:1")))
}

func TestSave_Errors(t *testing.T) {
	d := New(t.TempDir())

	assert.Error(t, d.SaveRequest(context.Background(), nil, 1, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.SaveResponse(ctx, "x", 1, "FA-1"), context.Canceled)

	// Root is a file, so the company directory cannot be created.
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Error(t, New(file).SaveRequest(context.Background(), []byte("x"), 1, "FA-1"))
}
