package cli

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/juliansprt/VeriFactu/internal/soap"
)

// fakeAuthority answers submissions and status queries with canned
// envelopes.
type fakeAuthority struct {
	mu          sync.Mutex
	submitReply []byte
	queryReply  []byte
	submits     int
	queries     int
}

func (a *fakeAuthority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	a.mu.Lock()
	defer a.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	if strings.HasSuffix(r.Header.Get("SOAPAction"), soap.OpQuery) {
		a.queries++
		_, _ = w.Write(a.queryReply)
		return
	}
	a.submits++
	_, _ = w.Write(a.submitReply)
}

func (a *fakeAuthority) setSubmitReply(body []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitReply = body
}

// env is an isolated working directory with a config pointing at a fake
// authority.
type env struct {
	dir       string
	config    string
	authority *fakeAuthority
	server    *httptest.Server
}

func newEnv(t *testing.T, authority *fakeAuthority) *env {
	t.Helper()
	dir := t.TempDir()
	ts := httptest.NewTLSServer(authority)
	t.Cleanup(ts.Close)

	certFile, keyFile := writeTestCertificate(t, dir)
	config := filepath.Join(dir, "verifactu.yaml")
	content := fmt.Sprintf(`database: %s
archive_dir: %s
timezone: UTC
endpoint: %s
http_timeout_seconds: 5
retry_count: 0
retry_base_delay_seconds: 0
jitter_milliseconds: 0
companies:
  - id: 1
    cert_file: %s
    key_file: %s
`, filepath.Join(dir, "verifactu.db"), filepath.Join(dir, "archive"), ts.URL, certFile, keyFile)
	require.NoError(t, os.WriteFile(config, []byte(content), 0o600))

	return &env{dir: dir, config: config, authority: authority, server: ts}
}

func (e *env) rootOptions(format string) *RootOptions {
	return &RootOptions{
		Format:    format,
		Config:    e.config,
		Transport: e.server.Client().Transport.(*http.Transport),
	}
}

// execute runs cmd with args and returns stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeTestCertificate writes a self-signed client certificate and key in
// PEM form.
func writeTestCertificate(t *testing.T, dir string) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "ACME SOLUCIONES SL", SerialNumber: "B12345678"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "client.crt")
	keyFile := filepath.Join(dir, "client.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}
