package cfdi

import "encoding/xml"

// Wire structs for the CFDI 4.0 document with the Carta Porte 3.1 complement.
// Attribute names, nesting and conditional presence are fixed by the SAT
// schemas; optional attributes must be omitted entirely, never emitted empty.

const (
	nsCFDI          = "http://www.sat.gob.mx/cfd/4"
	nsCartaPorte    = "http://www.sat.gob.mx/CartaPorte31"
	nsXSI           = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocations = "http://www.sat.gob.mx/cfd/4 http://www.sat.gob.mx/sitio_internet/cfd/4/cfdv40.xsd " +
		"http://www.sat.gob.mx/CartaPorte31 http://www.sat.gob.mx/sitio_internet/cfd/CartaPorte/CartaPorte31.xsd"

	cfdiVersion       = "4.0"
	cartaPorteVersion = "3.1"
)

type comprobanteXML struct {
	XMLName        xml.Name `xml:"cfdi:Comprobante"`
	XMLNSCfdi      string   `xml:"xmlns:cfdi,attr"`
	XMLNSCarta     string   `xml:"xmlns:cartaporte31,attr"`
	XMLNSXsi       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	Version           string `xml:"Version,attr"`
	Serie             string `xml:"Serie,attr,omitempty"`
	Folio             string `xml:"Folio,attr"`
	Fecha             string `xml:"Fecha,attr"`
	SubTotal          string `xml:"SubTotal,attr"`
	Moneda            string `xml:"Moneda,attr"`
	Total             string `xml:"Total,attr"`
	TipoDeComprobante string `xml:"TipoDeComprobante,attr"`
	Exportacion       string `xml:"Exportacion,attr"`
	MetodoPago        string `xml:"MetodoPago,attr,omitempty"`
	FormaPago         string `xml:"FormaPago,attr,omitempty"`
	LugarExpedicion   string `xml:"LugarExpedicion,attr"`

	Emisor      emisorXML      `xml:"cfdi:Emisor"`
	Receptor    receptorXML    `xml:"cfdi:Receptor"`
	Conceptos   conceptosXML   `xml:"cfdi:Conceptos"`
	Complemento complementoXML `xml:"cfdi:Complemento"`
}

type emisorXML struct {
	Rfc           string `xml:"Rfc,attr"`
	Nombre        string `xml:"Nombre,attr"`
	RegimenFiscal string `xml:"RegimenFiscal,attr"`
}

type receptorXML struct {
	Rfc                     string `xml:"Rfc,attr"`
	Nombre                  string `xml:"Nombre,attr"`
	DomicilioFiscalReceptor string `xml:"DomicilioFiscalReceptor,attr"`
	RegimenFiscalReceptor   string `xml:"RegimenFiscalReceptor,attr"`
	UsoCFDI                 string `xml:"UsoCFDI,attr"`
}

type conceptosXML struct {
	Conceptos []conceptoXML `xml:"cfdi:Concepto"`
}

type conceptoXML struct {
	ClaveProdServ string `xml:"ClaveProdServ,attr"`
	Cantidad      string `xml:"Cantidad,attr"`
	ClaveUnidad   string `xml:"ClaveUnidad,attr"`
	Descripcion   string `xml:"Descripcion,attr"`
	ValorUnitario string `xml:"ValorUnitario,attr"`
	Importe       string `xml:"Importe,attr"`
	ObjetoImp     string `xml:"ObjetoImp,attr"`
}

type complementoXML struct {
	CartaPorte cartaPorteXML `xml:"cartaporte31:CartaPorte"`
}

type cartaPorteXML struct {
	Version           string `xml:"Version,attr"`
	IdCCP             string `xml:"IdCCP,attr"`
	TranspInternac    string `xml:"TranspInternac,attr"`
	EntradaSalidaMerc string `xml:"EntradaSalidaMerc,attr,omitempty"`
	PaisOrigenDestino string `xml:"PaisOrigenDestino,attr,omitempty"`
	ViaEntradaSalida  string `xml:"ViaEntradaSalida,attr,omitempty"`
	TotalDistRec      string `xml:"TotalDistRec,attr"`

	Ubicaciones      ubicacionesXML       `xml:"cartaporte31:Ubicaciones"`
	Mercancias       mercanciasXML        `xml:"cartaporte31:Mercancias"`
	FiguraTransporte *figuraTransporteXML `xml:"cartaporte31:FiguraTransporte,omitempty"`
}

type ubicacionesXML struct {
	Ubicaciones []ubicacionXML `xml:"cartaporte31:Ubicacion"`
}

type ubicacionXML struct {
	TipoUbicacion               string `xml:"TipoUbicacion,attr"`
	IDUbicacion                 string `xml:"IDUbicacion,attr"`
	RFCRemitenteDestinatario    string `xml:"RFCRemitenteDestinatario,attr"`
	NombreRemitenteDestinatario string `xml:"NombreRemitenteDestinatario,attr,omitempty"`
	FechaHoraSalidaLlegada      string `xml:"FechaHoraSalidaLlegada,attr"`
	DistanciaRecorrida          string `xml:"DistanciaRecorrida,attr,omitempty"`

	Domicilio *domicilioXML `xml:"cartaporte31:Domicilio,omitempty"`
}

type domicilioXML struct {
	Calle        string `xml:"Calle,attr,omitempty"`
	Colonia      string `xml:"Colonia,attr,omitempty"`
	Localidad    string `xml:"Localidad,attr,omitempty"`
	Municipio    string `xml:"Municipio,attr,omitempty"`
	Estado       string `xml:"Estado,attr"`
	Pais         string `xml:"Pais,attr"`
	CodigoPostal string `xml:"CodigoPostal,attr"`
}

type mercanciasXML struct {
	PesoBrutoTotal     string `xml:"PesoBrutoTotal,attr"`
	UnidadPeso         string `xml:"UnidadPeso,attr"`
	NumTotalMercancias string `xml:"NumTotalMercancias,attr"`

	Mercancias     []mercanciaXML     `xml:"cartaporte31:Mercancia"`
	Autotransporte *autotransporteXML `xml:"cartaporte31:Autotransporte,omitempty"`
}

type mercanciaXML struct {
	BienesTransp         string `xml:"BienesTransp,attr"`
	Descripcion          string `xml:"Descripcion,attr"`
	Cantidad             string `xml:"Cantidad,attr"`
	ClaveUnidad          string `xml:"ClaveUnidad,attr"`
	PesoEnKg             string `xml:"PesoEnKg,attr"`
	ValorMercancia       string `xml:"ValorMercancia,attr,omitempty"`
	Moneda               string `xml:"Moneda,attr,omitempty"`
	MaterialPeligroso    string `xml:"MaterialPeligroso,attr,omitempty"`
	CveMaterialPeligroso string `xml:"CveMaterialPeligroso,attr,omitempty"`
	Embalaje             string `xml:"Embalaje,attr,omitempty"`
	FraccionArancelaria  string `xml:"FraccionArancelaria,attr,omitempty"`

	CantidadTransporta []cantidadTransportaXML `xml:"cartaporte31:CantidadTransporta,omitempty"`
}

type cantidadTransportaXML struct {
	Cantidad  string `xml:"Cantidad,attr"`
	IDOrigen  string `xml:"IDOrigen,attr"`
	IDDestino string `xml:"IDDestino,attr"`
}

type autotransporteXML struct {
	PermSCT       string `xml:"PermSCT,attr"`
	NumPermisoSCT string `xml:"NumPermisoSCT,attr"`

	IdentificacionVehicular identificacionVehicularXML `xml:"cartaporte31:IdentificacionVehicular"`
	Seguros                 segurosXML                 `xml:"cartaporte31:Seguros"`
	Remolques               *remolquesXML              `xml:"cartaporte31:Remolques,omitempty"`
}

type identificacionVehicularXML struct {
	ConfigVehicular string `xml:"ConfigVehicular,attr"`
	PlacaVM         string `xml:"PlacaVM,attr"`
	AnioModeloVM    string `xml:"AnioModeloVM,attr"`
}

type segurosXML struct {
	AseguraRespCivil string `xml:"AseguraRespCivil,attr"`
	PolizaRespCivil  string `xml:"PolizaRespCivil,attr"`
}

type remolquesXML struct {
	Remolques []remolqueXML `xml:"cartaporte31:Remolque"`
}

type remolqueXML struct {
	SubTipoRem string `xml:"SubTipoRem,attr"`
	Placa      string `xml:"Placa,attr"`
}

type figuraTransporteXML struct {
	Figuras []tiposFiguraXML `xml:"cartaporte31:TiposFigura"`
}

type tiposFiguraXML struct {
	TipoFigura   string `xml:"TipoFigura,attr"`
	RFCFigura    string `xml:"RFCFigura,attr"`
	NumLicencia  string `xml:"NumLicencia,attr,omitempty"`
	NombreFigura string `xml:"NombreFigura,attr"`

	Domicilio *domicilioXML `xml:"cartaporte31:Domicilio,omitempty"`
}
