// Package qr builds the verification URL printed as a QR code on accepted
// invoices.
package qr

import (
	"errors"
	"net/url"
	"strings"

	"github.com/juliansprt/VeriFactu/internal/invoice"
)

// DefaultPrefix is the pre-production validation endpoint.
const DefaultPrefix = "https://prewww2.aeat.es/wlpl/TIKE-CONT/ValidarQR"

// Builder renders verification URLs under Prefix.
type Builder struct {
	Prefix string
}

// New returns a Builder for prefix, or DefaultPrefix when empty.
func New(prefix string) *Builder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Builder{Prefix: prefix}
}

// Payload returns the verification URL of a chained record.
//
// Parameters keep the order nif, numserie, fecha, importe.
func (b *Builder) Payload(rec *invoice.Record, link invoice.ChainLink) (string, error) {
	if rec == nil {
		return "", errors.New("qr payload: nil record")
	}
	if link.Fingerprint == "" {
		return "", errors.New("qr payload: record is not chained")
	}

	params := [][2]string{
		{"nif", rec.SellerID},
		{"numserie", rec.InvoiceID},
		{"fecha", rec.IssueDate.Format(invoice.DateLayout)},
		{"importe", rec.TotalAmount().StringFixed(2)},
	}

	var sb strings.Builder
	sb.WriteString(b.Prefix)
	sb.WriteByte('?')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p[0])
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p[1]))
	}
	return sb.String(), nil
}
