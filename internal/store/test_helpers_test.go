package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates a chain entry with minimal required fields.
func createTestEntry(sellerID string, id uint64, invoiceID, fingerprint, previous string) ChainEntry {
	return ChainEntry{
		SellerID:            sellerID,
		ID:                  id,
		PreviousID:          id - 1,
		CompanyID:           1,
		InvoiceID:           invoiceID,
		IssueDate:           time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC),
		InvoiceType:         "F1",
		TotalTax:            "21.00",
		TotalAmount:         "121.00",
		GeneratedAt:         time.Date(2024, 11, 15, 10, 0, int(id), 0, time.FixedZone("", 3600)),
		Fingerprint:         fingerprint,
		PreviousFingerprint: previous,
	}
}

// appendEntry appends e to its seller's chain, ignoring the tip.
func appendEntry(t *testing.T, s *Store, e ChainEntry) {
	t.Helper()
	_, err := s.AppendChainEntry(t.Context(), e.SellerID, func(*ChainEntry) (ChainEntry, error) {
		return e, nil
	})
	if err != nil {
		t.Fatalf("AppendChainEntry() failed: %v", err)
	}
}
