package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
)

// StateRecord is the persisted state of a record.
type StateRecord struct {
	Key       invoice.Key             `json:"key"`
	State     lifecycle.State         `json:"state"`
	Message   string                  `json:"message,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
	Errors    []invoice.ResponseError `json:"errors,omitempty"`
}

// SetState records the state of a record and replaces its attached errors.
func (s *Store) SetState(ctx context.Context, key invoice.Key, state lifecycle.State, message string, errs []invoice.ResponseError) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set state: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoice_states (seller_id, company_id, invoice_id, state, message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seller_id, company_id, invoice_id) DO UPDATE SET
			state = excluded.state,
			message = excluded.message,
			updated_at = excluded.updated_at
	`,
		key.SellerID,
		key.CompanyID,
		key.InvoiceID,
		int(state),
		message,
		s.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM response_errors
		WHERE seller_id = ? AND company_id = ? AND invoice_id = ?
	`, key.SellerID, key.CompanyID, key.InvoiceID); err != nil {
		return fmt.Errorf("set state: clear errors: %w", err)
	}

	for _, e := range errs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO response_errors (seller_id, company_id, invoice_id, code, description)
			VALUES (?, ?, ?, ?, ?)
		`, key.SellerID, key.CompanyID, key.InvoiceID, e.Code, e.Description); err != nil {
			return fmt.Errorf("set state: save error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set state: commit: %w", err)
	}
	return nil
}

// State returns the persisted state of a record, or ErrNotFound.
func (s *Store) State(ctx context.Context, key invoice.Key) (*StateRecord, error) {
	var (
		rec     = StateRecord{Key: key}
		state   int
		updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT state, message, updated_at
		FROM invoice_states
		WHERE seller_id = ? AND company_id = ? AND invoice_id = ?
	`, key.SellerID, key.CompanyID, key.InvoiceID).Scan(&state, &rec.Message, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("state %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("state %s: %w", key, err)
	}
	rec.State = lifecycle.State(state)
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("state %s: parse updated_at: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, description
		FROM response_errors
		WHERE seller_id = ? AND company_id = ? AND invoice_id = ?
		ORDER BY id ASC
	`, key.SellerID, key.CompanyID, key.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("state %s: errors: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e invoice.ResponseError
		if err := rows.Scan(&e.Code, &e.Description); err != nil {
			return nil, fmt.Errorf("state %s: scan error: %w", key, err)
		}
		rec.Errors = append(rec.Errors, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state %s: errors: %w", key, err)
	}
	return &rec, nil
}
