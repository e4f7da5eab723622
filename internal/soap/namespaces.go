package soap

const (
	nsEnvelope   = "http://schemas.xmlsoap.org/soap/envelope/"
	nsBase       = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/"
	nsSupplyLR   = nsBase + "SuministroLR.xsd"
	nsSupplyInfo = nsBase + "SuministroInformacion.xsd"
	nsConsultaLR = nsBase + "ConsultaLR.xsd"
)

// Reply status values (EstadoEnvio).
const (
	StatusAccepted = "Correcto"
	StatusPartial  = "ParcialmenteCorrecto"
	StatusRejected = "Incorrecto"
)

// Query result values (ResultadoConsulta).
const (
	QueryWithData = "ConDatos"
	QueryNoData   = "SinDatos"
)

// Record status values reported by a status query (EstadoRegistro).
const (
	RecordAccepted           = "Correcta"
	RecordAcceptedWithErrors = "AceptadaConErrores"
	RecordRejected           = "Incorrecta"
	RecordCancelled          = "Anulada"
)

// Operation names appended to the endpoint to build the SOAPAction.
const (
	OpSubmit = "RegFactuSistemaFacturacion"
	OpQuery  = "ConsultaFactuSistemaFacturacion"
)

// Action returns the SOAPAction header value for op on endpoint.
func Action(endpoint, op string) string {
	return endpoint + "?op=" + op
}
