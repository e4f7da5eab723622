package aeat

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/juliansprt/VeriFactu/internal/resilience"
)

// maxReplyBytes bounds the size of a reply read into memory.
const maxReplyBytes = 16 << 20

// ErrReplyTooLarge is returned when a reply exceeds the size limit.
var ErrReplyTooLarge = errors.New("reply too large")

// Call is one envelope to post.
type Call struct {
	Endpoint   string
	Action     string
	Payload    []byte
	Credential *tls.Certificate
}

// StatusError is an HTTP error reply without a SOAP body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithBaseTransport sets the round tripper cloned for every credential.
func WithBaseTransport(base *http.Transport) TransportOption {
	return func(t *HTTPTransport) {
		t.base = base
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) TransportOption {
	return func(t *HTTPTransport) {
		t.timeout = d
	}
}

// WithMaxReplyBytes sets the largest reply read into memory.
func WithMaxReplyBytes(n int64) TransportOption {
	return func(t *HTTPTransport) {
		t.maxReply = n
	}
}

// WithTransportLogger sets the logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// HTTPTransport posts SOAP envelopes. Business rejections and SOAP faults
// are returned as reply bytes; only delivery problems are errors.
type HTTPTransport struct {
	base     *http.Transport
	timeout  time.Duration
	maxReply int64
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*tls.Certificate]*http.Client
}

// NewHTTPTransport creates a transport.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		base:     http.DefaultTransport.(*http.Transport),
		timeout:  30 * time.Second,
		maxReply: maxReplyBytes,
		logger:   slog.Default(),
		clients:  make(map[*tls.Certificate]*http.Client),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// clientFor returns the client presenting cred, creating it on first use.
func (t *HTTPTransport) clientFor(cred *tls.Certificate) *http.Client {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[cred]; ok {
		return c
	}

	rt := t.base.Clone()
	if rt.TLSClientConfig == nil {
		rt.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	} else {
		rt.TLSClientConfig = rt.TLSClientConfig.Clone()
	}
	if cred != nil {
		rt.TLSClientConfig.Certificates = []tls.Certificate{*cred}
	}

	c := &http.Client{Transport: rt, Timeout: t.timeout}
	t.clients[cred] = c
	return c
}

// Send posts call.Payload and returns the reply body.
//
// Connection failures, timeouts, throttling and 5xx replies without an
// envelope are wrapped with resilience.Transient.
func (t *HTTPTransport) Send(ctx context.Context, call Call) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.Endpoint, bytes.NewReader(call.Payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("SOAPAction", call.Action)
	req.Header.Set("Content-Type", `text/xml;charset="utf-8"`)
	req.Header.Set("Accept", "text/xml")

	start := time.Now()
	resp, err := t.clientFor(call.Credential).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, resilience.Transient(fmt.Errorf("post %s: %w", call.Endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxReply+1))
	if err != nil {
		return nil, resilience.Transient(fmt.Errorf("read reply: %w", err))
	}
	if int64(len(body)) > t.maxReply {
		// Not retried: the authority answered and may hold the record.
		return nil, fmt.Errorf("%w: over %d bytes (http status %d)", ErrReplyTooLarge, t.maxReply, resp.StatusCode)
	}

	t.logger.Debug("soap call",
		"action", call.Action,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest && !bytes.Contains(body, []byte("Envelope")) {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.Transient(statusErr)
		}
		return nil, statusErr
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
