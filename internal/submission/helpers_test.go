package submission

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/juliansprt/VeriFactu/internal/aeat"
	"github.com/juliansprt/VeriFactu/internal/classify"
	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
	"github.com/juliansprt/VeriFactu/internal/qr"
	"github.com/juliansprt/VeriFactu/internal/resilience"
	"github.com/juliansprt/VeriFactu/internal/soap"
	"github.com/juliansprt/VeriFactu/internal/testutil"
)

const testEndpoint = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"

var errConnRefused = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeValidator returns fixed violations.
type fakeValidator struct {
	violations []string
}

func (v *fakeValidator) GetErrors(*invoice.Record) []string {
	return v.violations
}

// fakeLedger records chain operations.
type fakeLedger struct {
	mu         sync.Mutex
	addErr     error
	deleteErr  error
	confirmErr error
	pending    *invoice.ChainLink
	pendingErr error
	onAdd      func()
	adds       int
	deletes    int
	pendings   int
	confirms   []invoice.ChainLink
}

func (l *fakeLedger) Add(context.Context, *invoice.Record) (invoice.ChainLink, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.adds++
	if l.onAdd != nil {
		l.onAdd()
	}
	if l.addErr != nil {
		return invoice.ChainLink{}, l.addErr
	}
	return testutil.SampleLink(), nil
}

func (l *fakeLedger) Delete(context.Context, *invoice.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deletes++
	return l.deleteErr
}

func (l *fakeLedger) Confirm(_ context.Context, link invoice.ChainLink) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirms = append(l.confirms, link)
	return l.confirmErr
}

func (l *fakeLedger) Pending(context.Context, *invoice.Record) (invoice.ChainLink, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pendings++
	if l.pendingErr != nil || l.pending == nil {
		return invoice.ChainLink{}, false, l.pendingErr
	}
	return *l.pending, true, nil
}

// reply is one scripted transport result.
type reply struct {
	body []byte
	err  error
}

// fakeTransport plays scripted replies; the last one repeats.
type fakeTransport struct {
	mu      sync.Mutex
	replies []reply
	calls   []aeat.Call
	panicky bool
	onSend  func()
}

func (t *fakeTransport) Send(_ context.Context, call aeat.Call) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.panicky {
		panic("transport exploded")
	}
	t.calls = append(t.calls, call)
	if t.onSend != nil {
		t.onSend()
	}
	r := t.replies[min(len(t.calls), len(t.replies))-1]
	return r.body, r.err
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func failing(err error) *fakeTransport {
	return &fakeTransport{replies: []reply{{err: err}}}
}

func answering(body []byte) *fakeTransport {
	return &fakeTransport{replies: []reply{{body: body}}}
}

// fakeQuerier answers fallback status queries.
type fakeQuerier struct {
	mu      sync.Mutex
	body    []byte
	err     error
	calls   int
	onQuery func()
}

func (q *fakeQuerier) QueryInvoice(context.Context, resilience.QueryKey) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.onQuery != nil {
		q.onQuery()
	}
	return q.body, q.err
}

// stateCall is one SetState invocation.
type stateCall struct {
	Key     invoice.Key
	State   lifecycle.State
	Message string
	Errors  []invoice.ResponseError
}

// fakeStates records state history.
type fakeStates struct {
	mu      sync.Mutex
	err     error
	history []stateCall
}

func (s *fakeStates) SetState(_ context.Context, key invoice.Key, state lifecycle.State, message string, errs []invoice.ResponseError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, stateCall{Key: key, State: state, Message: message, Errors: errs})
	return s.err
}

func (s *fakeStates) states() []lifecycle.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]lifecycle.State, len(s.history))
	for i, c := range s.history {
		out[i] = c.State
	}
	return out
}

func (s *fakeStates) last() stateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[len(s.history)-1]
}

// fakeFiles records archived envelopes.
type fakeFiles struct {
	err       error
	requests  [][]byte
	responses []string
}

func (f *fakeFiles) SaveRequest(_ context.Context, payload []byte, _ int, _ string) error {
	f.requests = append(f.requests, payload)
	return f.err
}

func (f *fakeFiles) SaveResponse(_ context.Context, text string, _ int, _ string) error {
	f.responses = append(f.responses, text)
	return f.err
}

// fakePostProcess records hand-offs.
type fakePostProcess struct {
	err      error
	payloads []string
	states   []lifecycle.State
}

func (p *fakePostProcess) ProcessVerified(_ context.Context, _ int, _ string, state lifecycle.State, payload string) error {
	p.payloads = append(p.payloads, payload)
	p.states = append(p.states, state)
	return p.err
}

// fakeCodec fails encoding.
type fakeCodec struct {
	err error
}

func (c fakeCodec) EncodeSubmission(*invoice.Record, invoice.ChainLink) ([]byte, error) {
	return nil, c.err
}

// fakeCredentials returns a fixed certificate or error.
type fakeCredentials struct {
	err error
}

func (c fakeCredentials) Credential(context.Context, int) (*tls.Certificate, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &tls.Certificate{}, nil
}

// fixture wires an Orchestrator from fakes around the real policy,
// classifier and codec.
type fixture struct {
	validator *fakeValidator
	ledger    *fakeLedger
	transport *fakeTransport
	querier   *fakeQuerier
	states    *fakeStates
	files     *fakeFiles
	post      *fakePostProcess
	policy    *resilience.Policy
	deps      Deps
}

func fastConfig() resilience.Config {
	return resilience.Config{
		RetryCount:       3,
		RetryBaseDelay:   0,
		FailureThreshold: 50,
		BreakDuration:    time.Minute,
	}
}

func newFixture(transport *fakeTransport) *fixture {
	codec := soap.NewCodec("1.0", soap.SystemInfo{Name: "VeriFactu", ID: "01", Version: "1.0.0", InstallationNumber: "1"})
	f := &fixture{
		validator: &fakeValidator{},
		ledger:    &fakeLedger{},
		transport: transport,
		querier:   &fakeQuerier{err: errors.New("query unavailable")},
		states:    &fakeStates{},
		files:     &fakeFiles{},
		post:      &fakePostProcess{},
	}
	f.policy = resilience.New(fastConfig(), f.querier,
		resilience.WithLogger(discardLogger()),
		resilience.WithClock(clockwork.NewFakeClock()),
		resilience.WithRandom(func(int) int { return 0 }),
	)
	f.deps = Deps{
		Validator:   f.validator,
		Ledger:      f.ledger,
		Codec:       codec,
		Transport:   f.transport,
		Gate:        aeat.NewGate(),
		Policy:      f.policy,
		Classifier:  classify.New(codec),
		States:      f.states,
		Files:       f.files,
		PostProcess: f.post,
		Verifier:    qr.New(""),
		Credentials: fakeCredentials{},
	}
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	o, err := New(testEndpoint, f.deps,
		WithLogger(discardLogger()),
		WithIDGenerator(testutil.NewFixedIDGenerator("attempt-1")),
	)
	if err != nil {
		panic(err)
	}
	return o
}

func accepted() []byte {
	return testutil.SubmissionReply(soap.StatusAccepted, "A-YDSW8NLFLANWPM",
		testutil.ReplyLine{InvoiceID: "FA-2024-0001", Status: soap.RecordAccepted})
}
