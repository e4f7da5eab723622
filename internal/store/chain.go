package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrConfirmed is returned when deleting an entry the authority has seen.
var ErrConfirmed = errors.New("chain entry is confirmed")

// ErrNotTip is returned when deleting an entry that is not the chain tip.
var ErrNotTip = errors.New("chain entry is not the tip")

// dateLayout stores calendar dates.
const dateLayout = "2006-01-02"

// ChainEntry is a stored chain link with the record fields the fingerprint
// covers.
type ChainEntry struct {
	SellerID            string    `json:"seller_id"`
	ID                  uint64    `json:"id"`
	PreviousID          uint64    `json:"previous_id"`
	CompanyID           int       `json:"company_id"`
	InvoiceID           string    `json:"invoice_id"`
	IssueDate           time.Time `json:"issue_date"`
	InvoiceType         string    `json:"invoice_type"`
	TotalTax            string    `json:"total_tax"`
	TotalAmount         string    `json:"total_amount"`
	GeneratedAt         time.Time `json:"generated_at"`
	Fingerprint         string    `json:"fingerprint"`
	PreviousFingerprint string    `json:"previous_fingerprint"`
	Confirmed           bool      `json:"confirmed"`
}

const chainColumns = `seller_id, id, previous_id, company_id, invoice_id, issue_date, invoice_type,
	total_tax, total_amount, generated_at, fingerprint, previous_fingerprint, confirmed`

// AppendChainEntry appends to the seller's chain. build receives the
// current tip (nil for an empty chain) and returns the entry to insert.
// Reading the tip and inserting happen in one transaction.
func (s *Store) AppendChainEntry(ctx context.Context, sellerID string, build func(tip *ChainEntry) (ChainEntry, error)) (ChainEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ChainEntry{}, fmt.Errorf("append chain entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	tip, err := chainTip(ctx, tx, sellerID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return ChainEntry{}, fmt.Errorf("append chain entry: %w", err)
	}

	entry, err := build(tip)
	if err != nil {
		return ChainEntry{}, fmt.Errorf("append chain entry: %w", err)
	}
	if entry.SellerID != sellerID {
		return ChainEntry{}, fmt.Errorf("append chain entry: seller mismatch %q != %q", entry.SellerID, sellerID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chain_entries (`+chainColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.SellerID,
		entry.ID,
		entry.PreviousID,
		entry.CompanyID,
		entry.InvoiceID,
		entry.IssueDate.Format(dateLayout),
		entry.InvoiceType,
		entry.TotalTax,
		entry.TotalAmount,
		entry.GeneratedAt.Format(time.RFC3339),
		entry.Fingerprint,
		entry.PreviousFingerprint,
		entry.Confirmed,
	)
	if err != nil {
		return ChainEntry{}, fmt.Errorf("append chain entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ChainEntry{}, fmt.Errorf("append chain entry: commit: %w", err)
	}
	return entry, nil
}

// DeleteChainTip removes the seller's tip if it belongs to the given
// record and is unconfirmed.
func (s *Store) DeleteChainTip(ctx context.Context, sellerID string, companyID int, invoiceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete chain tip: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	tip, err := chainTip(ctx, tx, sellerID)
	if err != nil {
		return fmt.Errorf("delete chain tip: %w", err)
	}
	if tip.CompanyID != companyID || tip.InvoiceID != invoiceID {
		return fmt.Errorf("delete chain tip: %s/%d/%s: %w", sellerID, companyID, invoiceID, ErrNotTip)
	}
	if tip.Confirmed {
		return fmt.Errorf("delete chain tip: %s/%d/%s: %w", sellerID, companyID, invoiceID, ErrConfirmed)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chain_entries WHERE seller_id = ? AND id = ?`,
		sellerID, tip.ID,
	); err != nil {
		return fmt.Errorf("delete chain tip: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete chain tip: commit: %w", err)
	}
	return nil
}

// ConfirmChainEntry marks an entry as seen by the authority.
func (s *Store) ConfirmChainEntry(ctx context.Context, sellerID string, id uint64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chain_entries SET confirmed = 1 WHERE seller_id = ? AND id = ?`,
		sellerID, id,
	)
	if err != nil {
		return fmt.Errorf("confirm chain entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm chain entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("confirm chain entry %s/%d: %w", sellerID, id, ErrNotFound)
	}
	return nil
}

// UnconfirmedChainEntry returns the latest unconfirmed entry of the given
// record, or ErrNotFound.
func (s *Store) UnconfirmedChainEntry(ctx context.Context, sellerID string, companyID int, invoiceID string) (*ChainEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+chainColumns+`
		FROM chain_entries
		WHERE seller_id = ? AND company_id = ? AND invoice_id = ? AND confirmed = 0
		ORDER BY id DESC
		LIMIT 1
	`, sellerID, companyID, invoiceID)

	e, err := scanChainEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unconfirmed chain entry %s/%d/%s: %w", sellerID, companyID, invoiceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unconfirmed chain entry %s/%d/%s: %w", sellerID, companyID, invoiceID, err)
	}
	return &e, nil
}

// ChainEntryAt returns the entry at position id of the seller's chain.
func (s *Store) ChainEntryAt(ctx context.Context, sellerID string, id uint64) (*ChainEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+chainColumns+`
		FROM chain_entries
		WHERE seller_id = ? AND id = ?
	`, sellerID, id)

	e, err := scanChainEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chain entry %s/%d: %w", sellerID, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("chain entry %s/%d: %w", sellerID, id, err)
	}
	return &e, nil
}

// ChainTip returns the last entry of the seller's chain.
func (s *Store) ChainTip(ctx context.Context, sellerID string) (*ChainEntry, error) {
	return chainTip(ctx, s.db, sellerID)
}

// ChainEntries returns the seller's chain in order.
func (s *Store) ChainEntries(ctx context.Context, sellerID string) ([]ChainEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chainColumns+`
		FROM chain_entries
		WHERE seller_id = ?
		ORDER BY id ASC
	`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("chain entries: %w", err)
	}
	defer rows.Close()

	var entries []ChainEntry
	for rows.Next() {
		e, err := scanChainEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("chain entries: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chain entries: %w", err)
	}
	return entries, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func chainTip(ctx context.Context, q queryer, sellerID string) (*ChainEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+chainColumns+`
		FROM chain_entries
		WHERE seller_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, sellerID)

	e, err := scanChainEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chain tip %s: %w", sellerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("chain tip %s: %w", sellerID, err)
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChainEntry(sc scanner) (ChainEntry, error) {
	var (
		e         ChainEntry
		issueDate string
		generated string
	)
	if err := sc.Scan(
		&e.SellerID,
		&e.ID,
		&e.PreviousID,
		&e.CompanyID,
		&e.InvoiceID,
		&issueDate,
		&e.InvoiceType,
		&e.TotalTax,
		&e.TotalAmount,
		&generated,
		&e.Fingerprint,
		&e.PreviousFingerprint,
		&e.Confirmed,
	); err != nil {
		return ChainEntry{}, err
	}

	var err error
	if e.IssueDate, err = time.Parse(dateLayout, issueDate); err != nil {
		return ChainEntry{}, fmt.Errorf("parse issue_date: %w", err)
	}
	if e.GeneratedAt, err = time.Parse(time.RFC3339, generated); err != nil {
		return ChainEntry{}, fmt.Errorf("parse generated_at: %w", err)
	}
	return e, nil
}
