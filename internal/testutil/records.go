package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/lifecycle"
)

// SampleRecord returns a valid complete invoice in state Created:
// base 100.00 at 21% VAT, total 121.00.
func SampleRecord() *invoice.Record {
	return &invoice.Record{
		CompanyID:  1,
		SellerID:   "B12345678",
		SellerName: "ACME SOLUCIONES SL",
		InvoiceID:  "FA-2024-0001",
		IssueDate:  time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC),
		Type:       invoice.TypeInvoice,
		BuyerID:    "12345678Z",
		BuyerName:  "CLIENTE DEMO",
		Text:       "Servicios de consultoria",
		TaxItems: []invoice.TaxItem{
			{
				Tax:      "01",
				Scheme:   "01",
				Category: "S1",
				Rate:     decimal.RequireFromString("21"),
				Base:     decimal.RequireFromString("100.00"),
				Amount:   decimal.RequireFromString("21.00"),
			},
		},
		State: lifecycle.Created,
	}
}

// SampleLink returns a chain link for SampleRecord following a previous
// entry.
func SampleLink() invoice.ChainLink {
	return invoice.ChainLink{
		SellerID:            "B12345678",
		ID:                  2,
		PreviousID:          1,
		Timestamp:           time.Date(2024, 11, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600)),
		Fingerprint:         "3C464DAF61ACB827C65FDA19F352A4E3BDC2C640E9E9FC4CC058073F38F12F60",
		PreviousFingerprint: "F7B94CFD8924EDFF273501B01EE5153E4CE8F259766F88CF6ACB8935802A2B97",
		PreviousInvoiceID:   "FA-2024-0000",
		PreviousIssueDate:   time.Date(2024, 11, 14, 0, 0, 0, 0, time.UTC),
	}
}
