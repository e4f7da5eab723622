package soap

import "encoding/xml"

// Outbound envelope shapes. Element names carry their prefixes literally.

type submissionEnvelope struct {
	XMLName      xml.Name       `xml:"soapenv:Envelope"`
	NSEnvelope   string         `xml:"xmlns:soapenv,attr"`
	NSSupplyLR   string         `xml:"xmlns:sum,attr"`
	NSSupplyInfo string         `xml:"xmlns:sum1,attr"`
	Header       struct{}       `xml:"soapenv:Header"`
	Body         submissionBody `xml:"soapenv:Body"`
}

type submissionBody struct {
	Request regFactu `xml:"sum:RegFactuSistemaFacturacion"`
}

type regFactu struct {
	Header  submissionHeader  `xml:"sum:Cabecera"`
	Records []registroFactura `xml:"sum:RegistroFactura"`
}

type submissionHeader struct {
	Obligor obligor `xml:"sum1:ObligadoEmision"`
}

type obligor struct {
	Name string `xml:"sum1:NombreRazon"`
	NIF  string `xml:"sum1:NIF"`
}

type registroFactura struct {
	Alta registroAlta `xml:"sum1:RegistroAlta"`
}

type registroAlta struct {
	IDVersion             string         `xml:"sum1:IDVersion"`
	IDFactura             idFactura      `xml:"sum1:IDFactura"`
	IssuerName            string         `xml:"sum1:NombreRazonEmisor"`
	Correction            string         `xml:"sum1:Subsanacion,omitempty"`
	Type                  string         `xml:"sum1:TipoFactura"`
	RectificationType     string         `xml:"sum1:TipoRectificativa,omitempty"`
	Rectified             *rectified     `xml:"sum1:FacturasRectificadas,omitempty"`
	Description           string         `xml:"sum1:DescripcionOperacion"`
	UnidentifiedRecipient string         `xml:"sum1:FacturaSinIdentifDestinatarioArt61d,omitempty"`
	Recipients            *recipients    `xml:"sum1:Destinatarios,omitempty"`
	Breakdown             desglose       `xml:"sum1:Desglose"`
	TotalTax              string         `xml:"sum1:CuotaTotal"`
	TotalAmount           string         `xml:"sum1:ImporteTotal"`
	Chaining              encadenamiento `xml:"sum1:Encadenamiento"`
	System                systemInfo     `xml:"sum1:SistemaInformatico"`
	Generated             string         `xml:"sum1:FechaHoraHusoGenRegistro"`
	BillingAgreement      string         `xml:"sum1:NumRegistroAcuerdoFacturacion,omitempty"`
	FingerprintType       string         `xml:"sum1:TipoHuella"`
	Fingerprint           string         `xml:"sum1:Huella"`
}

type idFactura struct {
	IssuerID  string `xml:"sum1:IDEmisorFactura"`
	InvoiceID string `xml:"sum1:NumSerieFactura"`
	IssueDate string `xml:"sum1:FechaExpedicionFactura"`
}

type rectified struct {
	Items []idFactura `xml:"sum1:IDFacturaRectificada"`
}

type recipients struct {
	Recipient []party `xml:"sum1:IDDestinatario"`
}

type party struct {
	Name  string  `xml:"sum1:NombreRazon"`
	NIF   string  `xml:"sum1:NIF,omitempty"`
	Other *idOtro `xml:"sum1:IDOtro,omitempty"`
}

type idOtro struct {
	Country string `xml:"sum1:CodigoPais"`
	IDType  string `xml:"sum1:IDType"`
	ID      string `xml:"sum1:ID"`
}

type desglose struct {
	Items []detalleDesglose `xml:"sum1:DetalleDesglose"`
}

type detalleDesglose struct {
	Tax             string `xml:"sum1:Impuesto"`
	Scheme          string `xml:"sum1:ClaveRegimen"`
	Category        string `xml:"sum1:CalificacionOperacion,omitempty"`
	Exemption       string `xml:"sum1:OperacionExenta,omitempty"`
	Rate            string `xml:"sum1:TipoImpositivo,omitempty"`
	Base            string `xml:"sum1:BaseImponibleOimporteNoSujeto"`
	Amount          string `xml:"sum1:CuotaRepercutida,omitempty"`
	SurchargeRate   string `xml:"sum1:TipoRecargoEquivalencia,omitempty"`
	SurchargeAmount string `xml:"sum1:CuotaRecargoEquivalencia,omitempty"`
}

type encadenamiento struct {
	First    string            `xml:"sum1:PrimerRegistro,omitempty"`
	Previous *registroAnterior `xml:"sum1:RegistroAnterior,omitempty"`
}

type registroAnterior struct {
	IssuerID    string `xml:"sum1:IDEmisorFactura"`
	InvoiceID   string `xml:"sum1:NumSerieFactura"`
	IssueDate   string `xml:"sum1:FechaExpedicionFactura"`
	Fingerprint string `xml:"sum1:Huella"`
}

type systemInfo struct {
	ProducerName       string `xml:"sum1:NombreRazon"`
	ProducerID         string `xml:"sum1:NIF"`
	Name               string `xml:"sum1:NombreSistemaInformatico"`
	ID                 string `xml:"sum1:IdSistemaInformatico"`
	Version            string `xml:"sum1:Version"`
	InstallationNumber string `xml:"sum1:NumeroInstalacion"`
	VerifactuOnly      string `xml:"sum1:TipoUsoPosibleSoloVerifactu"`
	MultiTaxpayer      string `xml:"sum1:TipoUsoPosibleMultiOT"`
	MultipleTaxpayers  string `xml:"sum1:IndicadorMultiplesOT"`
}

type queryEnvelope struct {
	XMLName      xml.Name  `xml:"soapenv:Envelope"`
	NSEnvelope   string    `xml:"xmlns:soapenv,attr"`
	NSConsultaLR string    `xml:"xmlns:con,attr"`
	NSSupplyInfo string    `xml:"xmlns:sum,attr"`
	Header       struct{}  `xml:"soapenv:Header"`
	Body         queryBody `xml:"soapenv:Body"`
}

type queryBody struct {
	Request consultaFactu `xml:"con:ConsultaFactuSistemaFacturacion"`
}

type consultaFactu struct {
	Header queryHeader `xml:"con:Cabecera"`
	Filter queryFilter `xml:"con:FiltroConsulta"`
}

type queryHeader struct {
	IDVersion string       `xml:"sum:IDVersion"`
	Obligor   queryObligor `xml:"sum:ObligadoEmision"`
}

type queryObligor struct {
	Name string `xml:"sum:NombreRazon"`
	NIF  string `xml:"sum:NIF"`
}

type queryFilter struct {
	Period    queryPeriod `xml:"con:PeriodoImputacion"`
	InvoiceID string      `xml:"con:NumSerieFactura"`
}

type queryPeriod struct {
	Year  string `xml:"sum:Ejercicio"`
	Month string `xml:"sum:Periodo"`
}
