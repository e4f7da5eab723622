// Package certs loads the client certificates companies authenticate
// with against the authority.
package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/pkcs12"
)

// ErrUnknownCompany is returned for a company without a configured
// certificate.
var ErrUnknownCompany = errors.New("no certificate configured for company")

// ExpiredError reports a certificate outside its validity window.
type ExpiredError struct {
	CompanyID int
	NotBefore time.Time
	NotAfter  time.Time
	Now       time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("certificate of company %d not valid at %s (valid %s to %s)",
		e.CompanyID, e.Now.Format(time.RFC3339),
		e.NotBefore.Format(time.RFC3339), e.NotAfter.Format(time.RFC3339))
}

// Entry locates one company's certificate. Either PFX or the CertFile and
// KeyFile pair is set.
type Entry struct {
	CompanyID int
	PFX       string
	Password  string
	CertFile  string
	KeyFile   string
}

// Option configures a Source.
type Option func(*Source)

// WithClock sets the clock used for expiry checks.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Source) {
		s.clock = clock
	}
}

// Source hands out per-company client certificates. Certificates are read
// once and cached; validity is checked on every call.
type Source struct {
	entries map[int]Entry
	clock   clockwork.Clock

	mu    sync.Mutex
	cache map[int]*tls.Certificate
}

// NewSource returns a Source over entries.
func NewSource(entries []Entry, opts ...Option) *Source {
	s := &Source{
		entries: make(map[int]Entry, len(entries)),
		clock:   clockwork.NewRealClock(),
		cache:   make(map[int]*tls.Certificate),
	}
	for _, e := range entries {
		s.entries[e.CompanyID] = e
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credential returns the certificate of companyID.
func (s *Source) Credential(ctx context.Context, companyID int) (*tls.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.cache[companyID]
	if !ok {
		entry, found := s.entries[companyID]
		if !found {
			return nil, fmt.Errorf("company %d: %w", companyID, ErrUnknownCompany)
		}
		var err error
		if cert, err = load(entry); err != nil {
			return nil, fmt.Errorf("load certificate of company %d: %w", companyID, err)
		}
		s.cache[companyID] = cert
	}

	now := s.clock.Now()
	if now.Before(cert.Leaf.NotBefore) || now.After(cert.Leaf.NotAfter) {
		return nil, &ExpiredError{
			CompanyID: companyID,
			NotBefore: cert.Leaf.NotBefore,
			NotAfter:  cert.Leaf.NotAfter,
			Now:       now,
		}
	}
	return cert, nil
}

func load(e Entry) (*tls.Certificate, error) {
	if e.PFX != "" {
		return loadPFX(e.PFX, e.Password)
	}
	if e.CertFile == "" || e.KeyFile == "" {
		return nil, errors.New("either pfx or cert_file and key_file must be set")
	}

	cert, err := tls.LoadX509KeyPair(e.CertFile, e.KeyFile)
	if err != nil {
		return nil, err
	}
	if cert.Leaf == nil {
		if cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return nil, fmt.Errorf("parse leaf: %w", err)
		}
	}
	return &cert, nil
}

func loadPFX(path, password string) (*tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, leaf, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}
