// Package httpapi exposes the submission pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz
//	POST /v1/invoices
//	GET  /v1/sellers/{seller}/companies/{company}/invoices/{invoice}
//
// Submitting an invoice whose persisted state is terminal is refused
// without touching the chain or the authority.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/store"
	"github.com/juliansprt/VeriFactu/internal/submission"
)

// maxBodyBytes bounds a submitted invoice document.
const maxBodyBytes = 1 << 20

// Submitter runs one submission.
type Submitter interface {
	Submit(ctx context.Context, rec *invoice.Record) (*submission.Result, error)
}

// StateReader reads persisted record states.
type StateReader interface {
	State(ctx context.Context, key invoice.Key) (*store.StateRecord, error)
}

// Server serves the HTTP API.
type Server struct {
	submitter Submitter
	states    StateReader
	logger    *slog.Logger
}

// New creates a Server.
func New(submitter Submitter, states StateReader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{submitter: submitter, states: states, logger: logger}
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(api chi.Router) {
		api.Post("/invoices", s.submit)
		api.Get("/sellers/{seller}/companies/{company}/invoices/{invoice}", s.state)
	})
	return r
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var doc invoice.Document
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", err.Error())
		return
	}

	rec, err := doc.Record()
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_DOCUMENT", err.Error())
		return
	}

	// Resume from the persisted state so repeated submissions hit the
	// stage guard.
	prior, err := s.states.State(r.Context(), rec.Key())
	switch {
	case err == nil:
		rec.State = prior.State
	case !errors.Is(err, store.ErrNotFound):
		s.logger.Error("state lookup failed", "invoice", rec.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	res, err := s.submitter.Submit(r.Context(), rec)
	if res == nil {
		writeError(w, http.StatusInternalServerError, string(submission.KindInternal), err.Error())
		return
	}

	body := newSubmitResponse(middleware.GetReqID(r.Context()), res, err)
	writeJSON(w, statusFor(err), body)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	companyID, err := strconv.Atoi(chi.URLParam(r, "company"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_COMPANY", fmt.Sprintf("company must be numeric: %v", err))
		return
	}
	key := invoice.Key{
		SellerID:  chi.URLParam(r, "seller"),
		CompanyID: companyID,
		InvoiceID: chi.URLParam(r, "invoice"),
	}

	rec, err := s.states.State(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// statusFor maps a submission error to an HTTP status.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch submission.KindOf(err) {
	case submission.KindGuard:
		return http.StatusConflict
	case submission.KindValidation, submission.KindRejection:
		return http.StatusUnprocessableEntity
	case submission.KindTransport, submission.KindProtocolFault:
		return http.StatusBadGateway
	case submission.KindUnresolved:
		return http.StatusGatewayTimeout
	case submission.KindPostProcess:
		// The authority accepted the record.
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
