package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/store"
)

var (
	// ErrConfirmed is returned when deleting a link the authority has seen.
	ErrConfirmed = store.ErrConfirmed
	// ErrNotTip is returned when deleting a link that is not the tip.
	ErrNotTip = store.ErrNotTip
)

// Store persists chain entries. Implemented by *store.Store.
type Store interface {
	AppendChainEntry(ctx context.Context, sellerID string, build func(tip *store.ChainEntry) (store.ChainEntry, error)) (store.ChainEntry, error)
	DeleteChainTip(ctx context.Context, sellerID string, companyID int, invoiceID string) error
	ConfirmChainEntry(ctx context.Context, sellerID string, id uint64) error
	ChainEntries(ctx context.Context, sellerID string) ([]store.ChainEntry, error)
	UnconfirmedChainEntry(ctx context.Context, sellerID string, companyID int, invoiceID string) (*store.ChainEntry, error)
	ChainEntryAt(ctx context.Context, sellerID string, id uint64) (*store.ChainEntry, error)
}

// BrokenChainError reports the first inconsistent entry found by Verify.
type BrokenChainError struct {
	SellerID string
	Position uint64
	Reason   string
}

func (e *BrokenChainError) Error() string {
	return fmt.Sprintf("chain %s broken at %d: %s", e.SellerID, e.Position, e.Reason)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock stamping new links.
func WithClock(clock clockwork.Clock) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithLocation sets the time zone of link timestamps.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		l.loc = loc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// Ledger is the hash chain over a Store.
//
// Thread-safety: mutations of one seller's chain are serialized; different
// sellers proceed independently.
type Ledger struct {
	store  Store
	clock  clockwork.Clock
	loc    *time.Location
	logger *slog.Logger

	locks sync.Map // seller id -> *sync.Mutex
}

// New creates a Ledger over st.
func New(st Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  st,
		clock:  clockwork.NewRealClock(),
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) lock(sellerID string) func() {
	v, _ := l.locks.LoadOrStore(sellerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Add appends rec to its seller's chain and returns the new link.
func (l *Ledger) Add(ctx context.Context, rec *invoice.Record) (invoice.ChainLink, error) {
	if rec.SellerID == "" {
		return invoice.ChainLink{}, errors.New("chain add: seller id is required")
	}
	defer l.lock(rec.SellerID)()

	now := l.clock.Now().In(l.loc).Truncate(time.Second)

	var link invoice.ChainLink
	entry, err := l.store.AppendChainEntry(ctx, rec.SellerID, func(tip *store.ChainEntry) (store.ChainEntry, error) {
		e := store.ChainEntry{
			SellerID:    rec.SellerID,
			ID:          1,
			CompanyID:   rec.CompanyID,
			InvoiceID:   rec.InvoiceID,
			IssueDate:   rec.IssueDate,
			InvoiceType: string(rec.Type),
			TotalTax:    rec.TotalTax().StringFixed(2),
			TotalAmount: rec.TotalAmount().StringFixed(2),
			GeneratedAt: now,
		}
		if tip != nil {
			e.ID = tip.ID + 1
			e.PreviousID = tip.ID
			e.PreviousFingerprint = tip.Fingerprint
			// Timestamps never go backwards along a chain.
			if e.GeneratedAt.Before(tip.GeneratedAt) {
				e.GeneratedAt = tip.GeneratedAt.In(l.loc)
			}
			link.PreviousInvoiceID = tip.InvoiceID
			link.PreviousIssueDate = tip.IssueDate
		}
		e.Fingerprint = Fingerprint(inputOf(e))
		return e, nil
	})
	if err != nil {
		return invoice.ChainLink{}, fmt.Errorf("chain add %s: %w", rec.Key(), err)
	}

	fillLink(&link, entry)

	l.logger.Debug("chain link added",
		"seller", rec.SellerID,
		"invoice", rec.InvoiceID,
		"position", link.ID,
	)
	return link, nil
}

// Pending returns the unconfirmed link rec already owns, if any. A record
// whose earlier submission never settled resumes on this link instead of
// appending a second one.
func (l *Ledger) Pending(ctx context.Context, rec *invoice.Record) (invoice.ChainLink, bool, error) {
	entry, err := l.store.UnconfirmedChainEntry(ctx, rec.SellerID, rec.CompanyID, rec.InvoiceID)
	if errors.Is(err, store.ErrNotFound) {
		return invoice.ChainLink{}, false, nil
	}
	if err != nil {
		return invoice.ChainLink{}, false, fmt.Errorf("chain pending %s: %w", rec.Key(), err)
	}

	var link invoice.ChainLink
	fillLink(&link, *entry)
	if entry.PreviousID != 0 {
		prev, err := l.store.ChainEntryAt(ctx, rec.SellerID, entry.PreviousID)
		if err != nil {
			return invoice.ChainLink{}, false, fmt.Errorf("chain pending %s: %w", rec.Key(), err)
		}
		link.PreviousInvoiceID = prev.InvoiceID
		link.PreviousIssueDate = prev.IssueDate
	}
	return link, true, nil
}

// Delete removes the link of rec. It must be the unconfirmed tip of the
// seller's chain.
func (l *Ledger) Delete(ctx context.Context, rec *invoice.Record) error {
	defer l.lock(rec.SellerID)()

	if err := l.store.DeleteChainTip(ctx, rec.SellerID, rec.CompanyID, rec.InvoiceID); err != nil {
		return fmt.Errorf("chain delete %s: %w", rec.Key(), err)
	}
	l.logger.Info("chain link removed", "seller", rec.SellerID, "invoice", rec.InvoiceID)
	return nil
}

// Confirm makes link permanent.
func (l *Ledger) Confirm(ctx context.Context, link invoice.ChainLink) error {
	if err := l.store.ConfirmChainEntry(ctx, link.SellerID, link.ID); err != nil {
		return fmt.Errorf("chain confirm: %w", err)
	}
	return nil
}

// Verify walks the seller's chain, checking positions, back-links and
// fingerprints. It returns the number of entries checked.
func (l *Ledger) Verify(ctx context.Context, sellerID string) (int, error) {
	entries, err := l.store.ChainEntries(ctx, sellerID)
	if err != nil {
		return 0, fmt.Errorf("chain verify: %w", err)
	}

	var prev *store.ChainEntry
	for i := range entries {
		e := &entries[i]
		broken := func(reason string) (int, error) {
			return i, &BrokenChainError{SellerID: sellerID, Position: e.ID, Reason: reason}
		}

		if e.ID != uint64(i+1) {
			return broken(fmt.Sprintf("expected position %d", i+1))
		}
		if prev == nil {
			if e.PreviousID != 0 || e.PreviousFingerprint != "" {
				return broken("first entry links to a predecessor")
			}
		} else if e.PreviousID != prev.ID || e.PreviousFingerprint != prev.Fingerprint {
			return broken("back-link does not match predecessor")
		}
		if Fingerprint(inputOf(*e)) != e.Fingerprint {
			return broken("fingerprint mismatch")
		}
		prev = e
	}
	return len(entries), nil
}

func fillLink(link *invoice.ChainLink, e store.ChainEntry) {
	link.SellerID = e.SellerID
	link.ID = e.ID
	link.PreviousID = e.PreviousID
	link.Timestamp = e.GeneratedAt
	link.Fingerprint = e.Fingerprint
	link.PreviousFingerprint = e.PreviousFingerprint
}

func inputOf(e store.ChainEntry) FingerprintInput {
	return FingerprintInput{
		SellerID:    e.SellerID,
		InvoiceID:   e.InvoiceID,
		IssueDate:   e.IssueDate,
		Type:        e.InvoiceType,
		TotalTax:    e.TotalTax,
		TotalAmount: e.TotalAmount,
		Previous:    e.PreviousFingerprint,
		GeneratedAt: e.GeneratedAt,
	}
}
