package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/juliansprt/VeriFactu/internal/lifecycle"
)

// Type is the invoice type code (TipoFactura).
type Type string

const (
	TypeInvoice             Type = "F1" // complete invoice
	TypeSimplified          Type = "F2" // simplified invoice (ticket)
	TypeReplacingSimplified Type = "F3" // invoice issued in substitution of simplified ones
	TypeRectifying1         Type = "R1"
	TypeRectifying2         Type = "R2"
	TypeRectifying3         Type = "R3"
	TypeRectifying4         Type = "R4"
	TypeRectifyingSimple    Type = "R5" // rectifying a simplified invoice
)

// IsRectifying reports whether t corrects a previously issued invoice.
func (t Type) IsRectifying() bool {
	switch t {
	case TypeRectifying1, TypeRectifying2, TypeRectifying3, TypeRectifying4, TypeRectifyingSimple:
		return true
	}
	return false
}

// RequiresBuyer reports whether the type must identify its recipient.
func (t Type) RequiresBuyer() bool {
	switch t {
	case TypeInvoice, TypeReplacingSimplified,
		TypeRectifying1, TypeRectifying2, TypeRectifying3, TypeRectifying4:
		return true
	}
	return false
}

// Valid reports whether t is a known type code.
func (t Type) Valid() bool {
	switch t {
	case TypeInvoice, TypeSimplified, TypeReplacingSimplified:
		return true
	}
	return t.IsRectifying()
}

// DateLayout is the dd-MM-yyyy layout used by the authority.
const DateLayout = "02-01-2006"

// Key identifies a record across stores.
type Key struct {
	SellerID  string `json:"seller_id"`
	CompanyID int    `json:"company_id"`
	InvoiceID string `json:"invoice_id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.SellerID, k.CompanyID, k.InvoiceID)
}

// TaxItem is one line of the tax breakdown (DetalleDesglose).
type TaxItem struct {
	Tax       string // Impuesto, "01" for VAT
	Scheme    string // ClaveRegimen
	Category  string // CalificacionOperacion, e.g. "S1"
	Exemption string // OperacionExenta, set instead of Category
	Rate      decimal.Decimal
	Base      decimal.Decimal
	Amount    decimal.Decimal

	SurchargeRate   decimal.Decimal
	SurchargeAmount decimal.Decimal
}

// RectificationItem references an invoice corrected by this one.
type RectificationItem struct {
	InvoiceID string
	IssueDate time.Time
}

// Record is an invoice registration (RegistroAlta) together with its
// submission state.
type Record struct {
	CompanyID  int
	SellerID   string
	SellerName string
	InvoiceID  string
	IssueDate  time.Time
	Type       Type

	// RectificationType is "S" (substitution) or "I" (differences).
	RectificationType  string
	RectificationItems []RectificationItem

	// Correction marks a resubmission of a record the authority already
	// holds (Subsanacion).
	Correction bool

	BuyerID      string
	BuyerName    string
	BuyerCountry string // ISO code when the buyer has no Spanish tax id
	BuyerIDType  string

	Text string

	// BillingAgreement is the authority's billing-agreement registration
	// number, when one applies.
	BillingAgreement string
	// UnidentifiedRecipient is the art. 61d flag for invoices without a
	// recipient.
	UnidentifiedRecipient bool

	TaxItems []TaxItem

	State  lifecycle.State
	Errors []ResponseError
}

// Key returns the record identity.
func (r *Record) Key() Key {
	return Key{SellerID: r.SellerID, CompanyID: r.CompanyID, InvoiceID: r.InvoiceID}
}

// TotalTax is the sum of tax and surcharge amounts (CuotaTotal).
func (r *Record) TotalTax() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.TaxItems {
		total = total.Add(item.Amount).Add(item.SurchargeAmount)
	}
	return total
}

// TotalAmount is base plus tax over all lines (ImporteTotal).
func (r *Record) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.TaxItems {
		total = total.Add(item.Base).Add(item.Amount).Add(item.SurchargeAmount)
	}
	return total
}

func (r *Record) String() string {
	return fmt.Sprintf("%s-%s-%s", r.SellerID, r.InvoiceID, r.IssueDate.Format(DateLayout))
}

// ResponseError is a single error attached to a record, either returned by
// the authority per line or produced locally.
type ResponseError struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// InternalCode is attached to failures that fall outside the known taxonomy.
const InternalCode = "INTERNAL"

// ChainLink is the ledger entry created for a record. Only the ledger
// creates links.
type ChainLink struct {
	SellerID string
	ID       uint64
	// PreviousID is zero for the first entry of a seller's chain.
	PreviousID uint64

	Timestamp           time.Time
	Fingerprint         string
	PreviousFingerprint string

	// PreviousInvoiceID and PreviousIssueDate identify the record behind
	// PreviousID, needed to encode the chaining block.
	PreviousInvoiceID string
	PreviousIssueDate time.Time
}

// First reports whether the link opens the seller's chain.
func (l ChainLink) First() bool {
	return l.PreviousID == 0
}
