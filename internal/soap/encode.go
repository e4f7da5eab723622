package soap

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/resilience"
)

// SystemInfo describes the invoicing software (SistemaInformatico).
type SystemInfo struct {
	ProducerName       string
	ProducerID         string
	Name               string
	ID                 string
	Version            string
	InstallationNumber string
	VerifactuOnly      bool
	MultiTaxpayer      bool
	MultipleTaxpayers  bool
}

// Codec builds and parses service envelopes.
type Codec struct {
	idVersion string
	system    SystemInfo
}

// NewCodec creates a Codec stamping idVersion on every record.
func NewCodec(idVersion string, system SystemInfo) *Codec {
	if idVersion == "" {
		idVersion = "1.0"
	}
	return &Codec{idVersion: idVersion, system: system}
}

// EncodeSubmission builds the registration envelope for rec chained by link.
func (c *Codec) EncodeSubmission(rec *invoice.Record, link invoice.ChainLink) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("encode submission: nil record")
	}
	if link.Fingerprint == "" {
		return nil, fmt.Errorf("encode submission: record %s has no fingerprint", rec)
	}

	alta := registroAlta{
		IDVersion: c.idVersion,
		IDFactura: idFactura{
			IssuerID:  rec.SellerID,
			InvoiceID: rec.InvoiceID,
			IssueDate: rec.IssueDate.Format(invoice.DateLayout),
		},
		IssuerName:            rec.SellerName,
		Correction:            yesOrEmpty(rec.Correction),
		Type:                  string(rec.Type),
		RectificationType:     rec.RectificationType,
		Description:           rec.Text,
		UnidentifiedRecipient: yesOrEmpty(rec.UnidentifiedRecipient),
		TotalTax:              amount(rec.TotalTax()),
		TotalAmount:           amount(rec.TotalAmount()),
		Chaining:              chaining(rec, link),
		System:                c.systemBlock(),
		Generated:             link.Timestamp.Format(time.RFC3339),
		BillingAgreement:      rec.BillingAgreement,
		FingerprintType:       "01",
		Fingerprint:           link.Fingerprint,
	}

	if len(rec.RectificationItems) > 0 {
		items := make([]idFactura, 0, len(rec.RectificationItems))
		for _, r := range rec.RectificationItems {
			items = append(items, idFactura{
				IssuerID:  rec.SellerID,
				InvoiceID: r.InvoiceID,
				IssueDate: r.IssueDate.Format(invoice.DateLayout),
			})
		}
		alta.Rectified = &rectified{Items: items}
	}

	if rec.BuyerID != "" || rec.BuyerName != "" {
		alta.Recipients = &recipients{Recipient: []party{buyer(rec)}}
	}

	for _, item := range rec.TaxItems {
		alta.Breakdown.Items = append(alta.Breakdown.Items, taxDetail(item))
	}

	env := submissionEnvelope{
		NSEnvelope:   nsEnvelope,
		NSSupplyLR:   nsSupplyLR,
		NSSupplyInfo: nsSupplyInfo,
		Body: submissionBody{
			Request: regFactu{
				Header: submissionHeader{
					Obligor: obligor{Name: rec.SellerName, NIF: rec.SellerID},
				},
				Records: []registroFactura{{Alta: alta}},
			},
		},
	}
	return marshal(env)
}

// EncodeQuery builds the status-query envelope for key.
func (c *Codec) EncodeQuery(key resilience.QueryKey) ([]byte, error) {
	if key.SellerID == "" || key.InvoiceID == "" {
		return nil, fmt.Errorf("encode query: seller and invoice ids are required")
	}

	env := queryEnvelope{
		NSEnvelope:   nsEnvelope,
		NSConsultaLR: nsConsultaLR,
		NSSupplyInfo: nsSupplyInfo,
		Body: queryBody{
			Request: consultaFactu{
				Header: queryHeader{
					IDVersion: c.idVersion,
					Obligor:   queryObligor{Name: key.SellerName, NIF: key.SellerID},
				},
				Filter: queryFilter{
					Period:    queryPeriod{Year: key.Year(), Month: key.Month()},
					InvoiceID: key.InvoiceID,
				},
			},
		},
	}
	return marshal(env)
}

func marshal(v any) ([]byte, error) {
	out, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func (c *Codec) systemBlock() systemInfo {
	return systemInfo{
		ProducerName:       c.system.ProducerName,
		ProducerID:         c.system.ProducerID,
		Name:               c.system.Name,
		ID:                 c.system.ID,
		Version:            c.system.Version,
		InstallationNumber: c.system.InstallationNumber,
		VerifactuOnly:      yesNo(c.system.VerifactuOnly),
		MultiTaxpayer:      yesNo(c.system.MultiTaxpayer),
		MultipleTaxpayers:  yesNo(c.system.MultipleTaxpayers),
	}
}

func chaining(rec *invoice.Record, link invoice.ChainLink) encadenamiento {
	if link.First() {
		return encadenamiento{First: "S"}
	}
	return encadenamiento{Previous: &registroAnterior{
		IssuerID:    rec.SellerID,
		InvoiceID:   link.PreviousInvoiceID,
		IssueDate:   link.PreviousIssueDate.Format(invoice.DateLayout),
		Fingerprint: link.PreviousFingerprint,
	}}
}

func buyer(rec *invoice.Record) party {
	p := party{Name: rec.BuyerName}
	if rec.BuyerCountry == "" || rec.BuyerCountry == "ES" {
		p.NIF = rec.BuyerID
		return p
	}
	idType := rec.BuyerIDType
	if idType == "" {
		idType = "02"
	}
	p.Other = &idOtro{Country: rec.BuyerCountry, IDType: idType, ID: rec.BuyerID}
	return p
}

func taxDetail(item invoice.TaxItem) detalleDesglose {
	d := detalleDesglose{
		Tax:       item.Tax,
		Scheme:    item.Scheme,
		Category:  item.Category,
		Exemption: item.Exemption,
		Base:      amount(item.Base),
	}
	if item.Exemption == "" {
		d.Rate = amount(item.Rate)
		d.Amount = amount(item.Amount)
	}
	if !item.SurchargeRate.IsZero() {
		d.SurchargeRate = amount(item.SurchargeRate)
		d.SurchargeAmount = amount(item.SurchargeAmount)
	}
	return d
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func yesNo(b bool) string {
	if b {
		return "S"
	}
	return "N"
}

func yesOrEmpty(b bool) string {
	if b {
		return "S"
	}
	return ""
}
