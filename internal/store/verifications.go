package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/juliansprt/VeriFactu/internal/lifecycle"
)

// ProcessVerified stores the verification payload of an accepted record.
// A later call for the same record replaces the payload.
func (s *Store) ProcessVerified(ctx context.Context, companyID int, invoiceID string, state lifecycle.State, payload string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verifications (company_id, invoice_id, state, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id, invoice_id) DO UPDATE SET
			state = excluded.state,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, companyID, invoiceID, int(state), payload, s.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("process verified: %w", err)
	}
	return nil
}

// Verification returns the stored verification payload of a record.
func (s *Store) Verification(ctx context.Context, companyID int, invoiceID string) (string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM verifications WHERE company_id = ? AND invoice_id = ?
	`, companyID, invoiceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("verification %d/%s: %w", companyID, invoiceID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("verification %d/%s: %w", companyID, invoiceID, err)
	}
	return payload, nil
}
