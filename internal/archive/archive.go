// Package archive keeps the request and response envelopes of every
// submission on disk as an audit trail.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dir stores envelopes under Root/<company>/.
type Dir struct {
	Root string
}

// New returns a Dir rooted at root.
func New(root string) *Dir {
	return &Dir{Root: root}
}

// SaveRequest writes the outbound envelope of an invoice.
func (d *Dir) SaveRequest(ctx context.Context, payload []byte, companyID int, invoiceID string) error {
	return d.save(ctx, "Request", payload, companyID, invoiceID)
}

// SaveResponse writes the authority's reply to an invoice.
func (d *Dir) SaveResponse(ctx context.Context, text string, companyID int, invoiceID string) error {
	return d.save(ctx, "Response", []byte(text), companyID, invoiceID)
}

// RequestPath returns where SaveRequest writes.
func (d *Dir) RequestPath(companyID int, invoiceID string) string {
	return d.path("Request", companyID, invoiceID)
}

// ResponsePath returns where SaveResponse writes.
func (d *Dir) ResponsePath(companyID int, invoiceID string) string {
	return d.path("Response", companyID, invoiceID)
}

func (d *Dir) path(kind string, companyID int, invoiceID string) string {
	return filepath.Join(d.Root, strconv.Itoa(companyID), kind+"-"+sanitize(invoiceID)+".xml")
}

func (d *Dir) save(ctx context.Context, kind string, data []byte, companyID int, invoiceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if invoiceID == "" {
		return fmt.Errorf("save %s: empty invoice id", strings.ToLower(kind))
	}

	path := d.path(kind, companyID, invoiceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("save %s: %w", strings.ToLower(kind), err)
	}

	// Write then rename so readers never see a partial envelope.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("save %s: %w", strings.ToLower(kind), err)
	}
	defer os.Remove(tmp.Name()) // No-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save %s: %w", strings.ToLower(kind), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", strings.ToLower(kind), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save %s: %w", strings.ToLower(kind), err)
	}
	return nil
}

// sanitize maps an invoice id onto a safe file name component.
func sanitize(id string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id)
	if strings.Trim(out, ".") == "" {
		return strings.Repeat("_", len(out))
	}
	return out
}
