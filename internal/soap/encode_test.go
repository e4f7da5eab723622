package soap

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juliansprt/VeriFactu/internal/invoice"
	"github.com/juliansprt/VeriFactu/internal/resilience"
	"github.com/juliansprt/VeriFactu/internal/testutil"
)

// altaReadback reads an encoded registration back by local names.
type altaReadback struct {
	XMLName xml.Name `xml:"Envelope"`
	Obligor struct {
		Name string `xml:"NombreRazon"`
		NIF  string `xml:"NIF"`
	} `xml:"Body>RegFactuSistemaFacturacion>Cabecera>ObligadoEmision"`
	Alta struct {
		IDVersion string `xml:"IDVersion"`
		IDFactura struct {
			IssuerID  string `xml:"IDEmisorFactura"`
			InvoiceID string `xml:"NumSerieFactura"`
			IssueDate string `xml:"FechaExpedicionFactura"`
		} `xml:"IDFactura"`
		Correction string `xml:"Subsanacion"`
		Type       string `xml:"TipoFactura"`
		Rectified  []struct {
			InvoiceID string `xml:"NumSerieFactura"`
		} `xml:"FacturasRectificadas>IDFacturaRectificada"`
		Recipient struct {
			Name  string `xml:"NombreRazon"`
			NIF   string `xml:"NIF"`
			Other struct {
				Country string `xml:"CodigoPais"`
				IDType  string `xml:"IDType"`
				ID      string `xml:"ID"`
			} `xml:"IDOtro"`
		} `xml:"Destinatarios>IDDestinatario"`
		Details []struct {
			Rate   string `xml:"TipoImpositivo"`
			Base   string `xml:"BaseImponibleOimporteNoSujeto"`
			Amount string `xml:"CuotaRepercutida"`
		} `xml:"Desglose>DetalleDesglose"`
		TotalTax    string `xml:"CuotaTotal"`
		TotalAmount string `xml:"ImporteTotal"`
		First       string `xml:"Encadenamiento>PrimerRegistro"`
		Previous    struct {
			InvoiceID   string `xml:"NumSerieFactura"`
			IssueDate   string `xml:"FechaExpedicionFactura"`
			Fingerprint string `xml:"Huella"`
		} `xml:"Encadenamiento>RegistroAnterior"`
		SystemName      string `xml:"SistemaInformatico>NombreSistemaInformatico"`
		VerifactuOnly   string `xml:"SistemaInformatico>TipoUsoPosibleSoloVerifactu"`
		Generated       string `xml:"FechaHoraHusoGenRegistro"`
		FingerprintType string `xml:"TipoHuella"`
		Fingerprint     string `xml:"Huella"`
	} `xml:"Body>RegFactuSistemaFacturacion>RegistroFactura>RegistroAlta"`
}

func testCodec() *Codec {
	return NewCodec("1.0", SystemInfo{
		ProducerName:  "ACME SOFTWARE SL",
		ProducerID:    "B87654321",
		Name:          "facturador",
		ID:            "01",
		Version:       "1.0.0",
		VerifactuOnly: true,
	})
}

func readback(t *testing.T, payload []byte) altaReadback {
	t.Helper()
	var got altaReadback
	require.NoError(t, xml.Unmarshal(payload, &got))
	return got
}

func TestEncodeSubmission_ChainedRecord(t *testing.T) {
	rec := testutil.SampleRecord()
	link := testutil.SampleLink()

	payload, err := testCodec().EncodeSubmission(rec, link)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"`)
	assert.Contains(t, string(payload), "<sum1:RegistroAlta>")

	got := readback(t, payload)
	assert.Equal(t, "ACME SOLUCIONES SL", got.Obligor.Name)
	assert.Equal(t, "B12345678", got.Obligor.NIF)

	alta := got.Alta
	assert.Equal(t, "1.0", alta.IDVersion)
	assert.Equal(t, "B12345678", alta.IDFactura.IssuerID)
	assert.Equal(t, "FA-2024-0001", alta.IDFactura.InvoiceID)
	assert.Equal(t, "15-11-2024", alta.IDFactura.IssueDate)
	assert.Equal(t, "", alta.Correction)
	assert.Equal(t, "F1", alta.Type)
	assert.Equal(t, "CLIENTE DEMO", alta.Recipient.Name)
	assert.Equal(t, "12345678Z", alta.Recipient.NIF)

	require.Len(t, alta.Details, 1)
	assert.Equal(t, "21.00", alta.Details[0].Rate)
	assert.Equal(t, "100.00", alta.Details[0].Base)
	assert.Equal(t, "21.00", alta.Details[0].Amount)
	assert.Equal(t, "21.00", alta.TotalTax)
	assert.Equal(t, "121.00", alta.TotalAmount)

	assert.Empty(t, alta.First)
	assert.Equal(t, "FA-2024-0000", alta.Previous.InvoiceID)
	assert.Equal(t, "14-11-2024", alta.Previous.IssueDate)
	assert.Equal(t, link.PreviousFingerprint, alta.Previous.Fingerprint)

	assert.Equal(t, "facturador", alta.SystemName)
	assert.Equal(t, "S", alta.VerifactuOnly)
	assert.Equal(t, "2024-11-15T10:30:00+01:00", alta.Generated)
	assert.Equal(t, "01", alta.FingerprintType)
	assert.Equal(t, link.Fingerprint, alta.Fingerprint)
}

func TestEncodeSubmission_FirstRecord(t *testing.T) {
	link := testutil.SampleLink()
	link.ID, link.PreviousID, link.PreviousFingerprint = 1, 0, ""

	payload, err := testCodec().EncodeSubmission(testutil.SampleRecord(), link)
	require.NoError(t, err)

	got := readback(t, payload)
	assert.Equal(t, "S", got.Alta.First)
	assert.Empty(t, got.Alta.Previous.InvoiceID)
	assert.NotContains(t, string(payload), "RegistroAnterior")
}

func TestEncodeSubmission_CorrectionAndRectification(t *testing.T) {
	rec := testutil.SampleRecord()
	rec.Correction = true
	rec.Type = invoice.TypeRectifying1
	rec.RectificationType = "I"
	rec.RectificationItems = []invoice.RectificationItem{
		{InvoiceID: "FA-2024-0000", IssueDate: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
	}

	payload, err := testCodec().EncodeSubmission(rec, testutil.SampleLink())
	require.NoError(t, err)

	got := readback(t, payload)
	assert.Equal(t, "S", got.Alta.Correction)
	assert.Equal(t, "R1", got.Alta.Type)
	require.Len(t, got.Alta.Rectified, 1)
	assert.Equal(t, "FA-2024-0000", got.Alta.Rectified[0].InvoiceID)
	assert.Contains(t, string(payload), "<sum1:TipoRectificativa>I</sum1:TipoRectificativa>")
}

func TestEncodeSubmission_ForeignBuyer(t *testing.T) {
	rec := testutil.SampleRecord()
	rec.BuyerCountry = "FR"
	rec.BuyerID = "FR12345678901"

	payload, err := testCodec().EncodeSubmission(rec, testutil.SampleLink())
	require.NoError(t, err)

	got := readback(t, payload)
	assert.Empty(t, got.Alta.Recipient.NIF)
	assert.Equal(t, "FR", got.Alta.Recipient.Other.Country)
	assert.Equal(t, "02", got.Alta.Recipient.Other.IDType)
	assert.Equal(t, "FR12345678901", got.Alta.Recipient.Other.ID)
}

func TestEncodeSubmission_ExemptLineHasNoRate(t *testing.T) {
	rec := testutil.SampleRecord()
	rec.TaxItems = []invoice.TaxItem{{
		Tax:       "01",
		Scheme:    "01",
		Exemption: "E1",
		Base:      decimal.RequireFromString("50"),
	}}

	payload, err := testCodec().EncodeSubmission(rec, testutil.SampleLink())
	require.NoError(t, err)
	assert.Contains(t, string(payload), "<sum1:OperacionExenta>E1</sum1:OperacionExenta>")
	assert.NotContains(t, string(payload), "TipoImpositivo")
	assert.NotContains(t, string(payload), "CalificacionOperacion")
}

func TestEncodeSubmission_RequiresFingerprint(t *testing.T) {
	_, err := testCodec().EncodeSubmission(testutil.SampleRecord(), invoice.ChainLink{})
	assert.ErrorContains(t, err, "no fingerprint")

	_, err = testCodec().EncodeSubmission(nil, testutil.SampleLink())
	assert.Error(t, err)
}

func TestEncodeQuery(t *testing.T) {
	key := resilience.QueryKey{
		SellerID:   "B12345678",
		SellerName: "ACME SOLUCIONES SL",
		InvoiceID:  "FA-2024-0001",
		IssueDate:  time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}

	payload, err := testCodec().EncodeQuery(key)
	require.NoError(t, err)

	var got struct {
		XMLName   xml.Name `xml:"Envelope"`
		Version   string   `xml:"Body>ConsultaFactuSistemaFacturacion>Cabecera>IDVersion"`
		NIF       string   `xml:"Body>ConsultaFactuSistemaFacturacion>Cabecera>ObligadoEmision>NIF"`
		Year      string   `xml:"Body>ConsultaFactuSistemaFacturacion>FiltroConsulta>PeriodoImputacion>Ejercicio"`
		Month     string   `xml:"Body>ConsultaFactuSistemaFacturacion>FiltroConsulta>PeriodoImputacion>Periodo"`
		InvoiceID string   `xml:"Body>ConsultaFactuSistemaFacturacion>FiltroConsulta>NumSerieFactura"`
	}
	require.NoError(t, xml.Unmarshal(payload, &got))
	assert.Equal(t, "1.0", got.Version)
	assert.Equal(t, "B12345678", got.NIF)
	assert.Equal(t, "2024", got.Year)
	assert.Equal(t, "03", got.Month)
	assert.Equal(t, "FA-2024-0001", got.InvoiceID)
}

func TestEncodeQuery_RequiresIdentity(t *testing.T) {
	_, err := testCodec().EncodeQuery(resilience.QueryKey{SellerID: "B1"})
	assert.Error(t, err)
}

func TestAction(t *testing.T) {
	assert.Equal(t, "https://host/ws?op=RegFactuSistemaFacturacion", Action("https://host/ws", OpSubmit))
}
