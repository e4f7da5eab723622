package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/juliansprt/VeriFactu/internal/lifecycle"
)

// Document is the file and wire form of a Record, read from YAML by the
// CLI and from JSON by the HTTP API.
type Document struct {
	CompanyID             int                `yaml:"company_id" json:"company_id"`
	SellerID              string             `yaml:"seller_id" json:"seller_id"`
	SellerName            string             `yaml:"seller_name" json:"seller_name"`
	InvoiceID             string             `yaml:"invoice_id" json:"invoice_id"`
	IssueDate             string             `yaml:"issue_date" json:"issue_date"`
	Type                  string             `yaml:"type" json:"type"`
	RectificationType     string             `yaml:"rectification_type,omitempty" json:"rectification_type,omitempty"`
	Rectifies             []RectificationDoc `yaml:"rectifies,omitempty" json:"rectifies,omitempty"`
	Correction            bool               `yaml:"correction,omitempty" json:"correction,omitempty"`
	Buyer                 *BuyerDoc          `yaml:"buyer,omitempty" json:"buyer,omitempty"`
	Text                  string             `yaml:"text" json:"text"`
	BillingAgreement      string             `yaml:"billing_agreement,omitempty" json:"billing_agreement,omitempty"`
	UnidentifiedRecipient bool               `yaml:"unidentified_recipient,omitempty" json:"unidentified_recipient,omitempty"`
	TaxItems              []TaxItemDoc       `yaml:"tax_items" json:"tax_items"`
}

// BuyerDoc identifies the invoice recipient.
type BuyerDoc struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Country string `yaml:"country,omitempty" json:"country,omitempty"`
	IDType  string `yaml:"id_type,omitempty" json:"id_type,omitempty"`
}

// RectificationDoc references a rectified invoice.
type RectificationDoc struct {
	InvoiceID string `yaml:"invoice_id" json:"invoice_id"`
	IssueDate string `yaml:"issue_date" json:"issue_date"`
}

// TaxItemDoc is a tax line with amounts written as decimal strings.
type TaxItemDoc struct {
	Tax             string `yaml:"tax,omitempty" json:"tax,omitempty"`
	Scheme          string `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	Category        string `yaml:"category,omitempty" json:"category,omitempty"`
	Exemption       string `yaml:"exemption,omitempty" json:"exemption,omitempty"`
	Rate            string `yaml:"rate" json:"rate"`
	Base            string `yaml:"base" json:"base"`
	Amount          string `yaml:"amount" json:"amount"`
	SurchargeRate   string `yaml:"surcharge_rate,omitempty" json:"surcharge_rate,omitempty"`
	SurchargeAmount string `yaml:"surcharge_amount,omitempty" json:"surcharge_amount,omitempty"`
}

// dateInputLayout is the ISO date accepted in documents.
const dateInputLayout = "2006-01-02"

// Record converts the document into a Created record.
func (d *Document) Record() (*Record, error) {
	issued, err := parseDate(d.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("issue_date: %w", err)
	}

	rec := &Record{
		CompanyID:             d.CompanyID,
		SellerID:              d.SellerID,
		SellerName:            d.SellerName,
		InvoiceID:             d.InvoiceID,
		IssueDate:             issued,
		Type:                  Type(d.Type),
		RectificationType:     d.RectificationType,
		Correction:            d.Correction,
		Text:                  d.Text,
		BillingAgreement:      d.BillingAgreement,
		UnidentifiedRecipient: d.UnidentifiedRecipient,
		State:                 lifecycle.Created,
	}
	if rec.Type == "" {
		rec.Type = TypeInvoice
	}

	if d.Buyer != nil {
		rec.BuyerID = d.Buyer.ID
		rec.BuyerName = d.Buyer.Name
		rec.BuyerCountry = d.Buyer.Country
		rec.BuyerIDType = d.Buyer.IDType
	}

	for i, r := range d.Rectifies {
		date, err := parseDate(r.IssueDate)
		if err != nil {
			return nil, fmt.Errorf("rectifies[%d].issue_date: %w", i, err)
		}
		rec.RectificationItems = append(rec.RectificationItems, RectificationItem{
			InvoiceID: r.InvoiceID,
			IssueDate: date,
		})
	}

	for i, item := range d.TaxItems {
		ti, err := item.taxItem()
		if err != nil {
			return nil, fmt.Errorf("tax_items[%d]: %w", i, err)
		}
		rec.TaxItems = append(rec.TaxItems, ti)
	}

	return rec, nil
}

func (d TaxItemDoc) taxItem() (TaxItem, error) {
	item := TaxItem{
		Tax:       d.Tax,
		Scheme:    d.Scheme,
		Category:  d.Category,
		Exemption: d.Exemption,
	}
	if item.Tax == "" {
		item.Tax = "01"
	}
	if item.Scheme == "" {
		item.Scheme = "01"
	}
	if item.Category == "" && item.Exemption == "" {
		item.Category = "S1"
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"rate", d.Rate, &item.Rate},
		{"base", d.Base, &item.Base},
		{"amount", d.Amount, &item.Amount},
		{"surcharge_rate", d.SurchargeRate, &item.SurchargeRate},
		{"surcharge_amount", d.SurchargeAmount, &item.SurchargeAmount},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return TaxItem{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return item, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateInputLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected yyyy-mm-dd", s)
	}
	return t, nil
}
