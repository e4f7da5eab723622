package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/juliansprt/VeriFactu/internal/invoice"
)

// FingerprintInput holds the fields a fingerprint covers.
type FingerprintInput struct {
	SellerID    string
	InvoiceID   string
	IssueDate   time.Time
	Type        string
	TotalTax    string
	TotalAmount string
	Previous    string
	GeneratedAt time.Time
}

// Canonical returns the string that is hashed.
func (in FingerprintInput) Canonical() string {
	fields := []struct{ name, value string }{
		{"IDEmisorFactura", in.SellerID},
		{"NumSerieFactura", in.InvoiceID},
		{"FechaExpedicionFactura", in.IssueDate.Format(invoice.DateLayout)},
		{"TipoFactura", in.Type},
		{"CuotaTotal", in.TotalTax},
		{"ImporteTotal", in.TotalAmount},
		{"Huella", in.Previous},
		{"FechaHoraHusoGenRegistro", in.GeneratedAt.Format(time.RFC3339)},
	}

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.name)
		b.WriteByte('=')
		b.WriteString(norm.NFC.String(strings.TrimSpace(f.value)))
	}
	return b.String()
}

// Fingerprint computes the upper-case hex SHA-256 of in.Canonical().
func Fingerprint(in FingerprintInput) string {
	sum := sha256.Sum256([]byte(in.Canonical()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
