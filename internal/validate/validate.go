// Package validate checks invoice records against the business rules the
// authority enforces, so that obviously invalid records never reach the
// chain.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/juliansprt/VeriFactu/internal/invoice"
)

const (
	// EpochYear is the first year records may be issued in.
	EpochYear = 2024
	// MaxTaxItems bounds the tax breakdown of one record.
	MaxTaxItems = 12
	// MaxRectificationItems bounds the invoices one record may rectify.
	MaxRectificationItems = 1000
)

var (
	hundred = decimal.NewFromInt(100)
	// tolerance is the accepted deviation of a computed amount.
	tolerance = decimal.NewFromInt(10)
	// simplifiedLimit is 3000.00 plus tolerance.
	simplifiedLimit = decimal.NewFromInt(3010)
)

// Rule returns the violations of one business rule.
type Rule func(rec *invoice.Record) []string

// Validator applies a fixed list of rules.
type Validator struct {
	rules []Rule
}

// New returns a Validator with the default rules followed by extra.
func New(extra ...Rule) *Validator {
	rules := []Rule{
		identity,
		issueDate,
		itemCounts,
		taxItems,
		rectification,
		simplified,
		buyer,
	}
	return &Validator{rules: append(rules, extra...)}
}

// GetErrors returns every violation found in rec. An empty result means the
// record may be submitted.
func (v *Validator) GetErrors(rec *invoice.Record) []string {
	if rec == nil {
		return []string{"record is nil"}
	}
	var errs []string
	for _, rule := range v.rules {
		errs = append(errs, rule(rec)...)
	}
	return errs
}

func identity(rec *invoice.Record) []string {
	var errs []string
	if rec.InvoiceID == "" {
		errs = append(errs, "invoice id is required")
	}
	if rec.SellerID == "" {
		errs = append(errs, "seller id is required")
	}
	if rec.SellerName == "" {
		errs = append(errs, "seller name is required")
	}
	if !rec.Type.Valid() {
		errs = append(errs, fmt.Sprintf("invoice type %q is not valid", rec.Type))
	}
	return errs
}

func issueDate(rec *invoice.Record) []string {
	if rec.IssueDate.IsZero() {
		return []string{"issue date is required"}
	}
	if rec.IssueDate.Year() < EpochYear {
		return []string{fmt.Sprintf("issue date %s is before %d", rec.IssueDate.Format(invoice.DateLayout), EpochYear)}
	}
	return nil
}

func itemCounts(rec *invoice.Record) []string {
	var errs []string
	if len(rec.TaxItems) == 0 {
		errs = append(errs, "at least one tax item is required")
	}
	if len(rec.TaxItems) > MaxTaxItems {
		errs = append(errs, fmt.Sprintf("%d tax items exceed the maximum of %d", len(rec.TaxItems), MaxTaxItems))
	}
	if len(rec.RectificationItems) > MaxRectificationItems {
		errs = append(errs, fmt.Sprintf("%d rectified invoices exceed the maximum of %d",
			len(rec.RectificationItems), MaxRectificationItems))
	}
	return errs
}

func taxItems(rec *invoice.Record) []string {
	var errs []string
	for i, item := range rec.TaxItems {
		line := i + 1
		switch {
		case item.Category == "" && item.Exemption == "":
			errs = append(errs, fmt.Sprintf("tax item %d: category or exemption is required", line))
		case item.Category != "" && item.Exemption != "":
			errs = append(errs, fmt.Sprintf("tax item %d: category and exemption are mutually exclusive", line))
		}
		if item.Exemption != "" {
			continue
		}

		expected := item.Base.Mul(item.Rate).Div(hundred)
		if item.Amount.Sub(expected).Abs().GreaterThan(tolerance) {
			errs = append(errs, fmt.Sprintf("tax item %d: amount %s differs from %s x %s%% by more than %s",
				line, item.Amount.StringFixed(2), item.Base.StringFixed(2), item.Rate.String(), tolerance.StringFixed(2)))
		}
	}
	return errs
}

func rectification(rec *invoice.Record) []string {
	if !rec.Type.IsRectifying() {
		return nil
	}
	var errs []string
	if rec.RectificationType != "S" && rec.RectificationType != "I" {
		errs = append(errs, fmt.Sprintf("rectifying invoice %s requires rectification type S or I", rec.Type))
	}
	if len(rec.RectificationItems) == 0 {
		errs = append(errs, fmt.Sprintf("rectifying invoice %s requires at least one rectified invoice", rec.Type))
	}
	return errs
}

func simplified(rec *invoice.Record) []string {
	if rec.Type != invoice.TypeSimplified {
		return nil
	}
	if rec.BillingAgreement != "" || rec.UnidentifiedRecipient {
		return nil
	}
	total := decimal.Zero
	for _, item := range rec.TaxItems {
		total = total.Add(item.Base).Add(item.Amount)
	}
	if total.Abs().GreaterThan(simplifiedLimit) {
		return []string{fmt.Sprintf("simplified invoice total %s exceeds 3000.00", total.StringFixed(2))}
	}
	return nil
}

func buyer(rec *invoice.Record) []string {
	if !rec.Type.RequiresBuyer() || rec.UnidentifiedRecipient {
		return nil
	}
	var errs []string
	if rec.BuyerID == "" {
		errs = append(errs, fmt.Sprintf("invoice type %s requires a buyer id", rec.Type))
	}
	if rec.BuyerName == "" {
		errs = append(errs, fmt.Sprintf("invoice type %s requires a buyer name", rec.Type))
	}
	return errs
}
