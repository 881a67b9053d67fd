package validation

// Official SAT catalogs for the fields the engine checks by exact membership.
// These lists are fixed by the authority and change only with a new catalog
// revision.

// c_FormaPago
var paymentForms = map[string]string{
	"01": "Efectivo",
	"02": "Cheque nominativo",
	"03": "Transferencia electrónica de fondos",
	"04": "Tarjeta de crédito",
	"28": "Tarjeta de débito",
	"30": "Aplicación de anticipos",
	"99": "Por definir",
}

// c_MetodoPago
var paymentMethods = map[string]string{
	"PUE": "Pago en una sola exhibición",
	"PPD": "Pago en parcialidades o diferido",
}

// c_Moneda (subset accepted for freight invoicing)
var currencies = map[string]string{
	"MXN": "Peso mexicano",
	"USD": "Dólar americano",
	"EUR": "Euro",
	"XXX": "Sin moneda",
}

// c_UsoCFDI
var cfdiUses = map[string]string{
	"G01": "Adquisición de mercancías",
	"G02": "Devoluciones, descuentos o bonificaciones",
	"G03": "Gastos en general",
	"I01": "Construcciones",
	"I02": "Mobiliario y equipo de oficina",
	"I03": "Equipo de transporte",
	"I04": "Equipo de cómputo y accesorios",
	"I08": "Otra maquinaria y equipo",
	"S01": "Sin efectos fiscales",
	"CP01": "Pagos",
}

// c_RegimenFiscal
var fiscalRegimes = map[string]string{
	"601": "General de Ley Personas Morales",
	"603": "Personas Morales con Fines no Lucrativos",
	"605": "Sueldos y Salarios e Ingresos Asimilados a Salarios",
	"606": "Arrendamiento",
	"608": "Demás ingresos",
	"610": "Residentes en el Extranjero sin Establecimiento Permanente en México",
	"611": "Ingresos por Dividendos (socios y accionistas)",
	"612": "Personas Físicas con Actividades Empresariales y Profesionales",
	"614": "Ingresos por intereses",
	"615": "Régimen de los ingresos por obtención de premios",
	"616": "Sin obligaciones fiscales",
	"620": "Sociedades Cooperativas de Producción",
	"621": "Incorporación Fiscal",
	"622": "Actividades Agrícolas, Ganaderas, Silvícolas y Pesqueras",
	"623": "Opcional para Grupos de Sociedades",
	"624": "Coordinados",
	"625": "Régimen de las Actividades Empresariales con ingresos a través de Plataformas Tecnológicas",
	"626": "Régimen Simplificado de Confianza",
}

func inCatalog(catalog map[string]string, code string) bool {
	_, ok := catalog[code]
	return ok
}
