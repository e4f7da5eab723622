package testutil

import (
	"fmt"
	"strings"
)

// ReplyLine is a per-record line of a canned submission reply.
type ReplyLine struct {
	InvoiceID   string
	Status      string
	Code        string
	Description string
}

const envelopeOpen = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
<env:Header/>
<env:Body>
`

const envelopeClose = `</env:Body>
</env:Envelope>`

// SubmissionReply builds a registration reply as the service sends it.
func SubmissionReply(status, csv string, lines ...ReplyLine) []byte {
	var b strings.Builder
	b.WriteString(envelopeOpen)
	b.WriteString(`<tikR:RespuestaRegFactuSistemaFacturacion xmlns:tikR="https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/RespuestaSuministro.xsd" xmlns:tik="https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd">`)
	if csv != "" {
		fmt.Fprintf(&b, "<tikR:CSV>%s</tikR:CSV>", csv)
	}
	b.WriteString("<tikR:TiempoEsperaEnvio>60</tikR:TiempoEsperaEnvio>")
	fmt.Fprintf(&b, "<tikR:EstadoEnvio>%s</tikR:EstadoEnvio>", status)
	for _, l := range lines {
		b.WriteString("<tikR:RespuestaLinea>")
		fmt.Fprintf(&b, "<tikR:IDFactura><tik:IDEmisorFactura>B12345678</tik:IDEmisorFactura><tik:NumSerieFactura>%s</tik:NumSerieFactura><tik:FechaExpedicionFactura>15-11-2024</tik:FechaExpedicionFactura></tikR:IDFactura>", l.InvoiceID)
		fmt.Fprintf(&b, "<tikR:EstadoRegistro>%s</tikR:EstadoRegistro>", l.Status)
		if l.Code != "" {
			fmt.Fprintf(&b, "<tikR:CodigoErrorRegistro>%s</tikR:CodigoErrorRegistro>", l.Code)
			fmt.Fprintf(&b, "<tikR:DescripcionErrorRegistro>%s</tikR:DescripcionErrorRegistro>", l.Description)
		}
		b.WriteString("</tikR:RespuestaLinea>")
	}
	b.WriteString("</tikR:RespuestaRegFactuSistemaFacturacion>\n")
	b.WriteString(envelopeClose)
	return []byte(b.String())
}

// FaultReply builds a SOAP fault.
func FaultReply(code, message string) []byte {
	return []byte(envelopeOpen + fmt.Sprintf(
		"<env:Fault><faultcode>%s</faultcode><faultstring>%s</faultstring><detail><callstack>at validator</callstack></detail></env:Fault>\n",
		code, message) + envelopeClose)
}

// QueryReply builds a status-query reply. An empty recordStatus produces a
// reply without records.
func QueryReply(result, invoiceID, recordStatus, code, description string) []byte {
	var b strings.Builder
	b.WriteString(envelopeOpen)
	b.WriteString(`<tikLRRC:RespuestaConsultaFactuSistemaFacturacion xmlns:tikLRRC="https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/RespuestaConsultaLR.xsd" xmlns:tik="https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd">`)
	b.WriteString("<tikLRRC:IndicadorPaginacion>N</tikLRRC:IndicadorPaginacion>")
	fmt.Fprintf(&b, "<tikLRRC:ResultadoConsulta>%s</tikLRRC:ResultadoConsulta>", result)
	if recordStatus != "" {
		b.WriteString("<tikLRRC:RegistroRespuestaConsultaFactuSistemaFacturacion>")
		fmt.Fprintf(&b, "<tikLRRC:IDFactura><tik:IDEmisorFactura>B12345678</tik:IDEmisorFactura><tik:NumSerieFactura>%s</tik:NumSerieFactura><tik:FechaExpedicionFactura>15-11-2024</tik:FechaExpedicionFactura></tikLRRC:IDFactura>", invoiceID)
		b.WriteString("<tikLRRC:EstadoRegistro>")
		b.WriteString("<tikLRRC:TimestampUltimaModificacion>2024-11-15T10:30:05+01:00</tikLRRC:TimestampUltimaModificacion>")
		fmt.Fprintf(&b, "<tikLRRC:EstadoRegistro>%s</tikLRRC:EstadoRegistro>", recordStatus)
		if code != "" {
			fmt.Fprintf(&b, "<tikLRRC:CodigoErrorRegistro>%s</tikLRRC:CodigoErrorRegistro>", code)
			fmt.Fprintf(&b, "<tikLRRC:DescripcionErrorRegistro>%s</tikLRRC:DescripcionErrorRegistro>", description)
		}
		b.WriteString("</tikLRRC:EstadoRegistro>")
		b.WriteString("</tikLRRC:RegistroRespuestaConsultaFactuSistemaFacturacion>")
	}
	b.WriteString("</tikLRRC:RespuestaConsultaFactuSistemaFacturacion>\n")
	b.WriteString(envelopeClose)
	return []byte(b.String())
}
