package cfdi

import (
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mode selects how the generator treats unresolved mandatory references.
// Preview substitutes documented safe defaults to keep a best-effort render
// available while the user is still filling the form; Submission refuses.
type Mode string

// Generation modes
const (
	ModePreview    Mode = "preview"
	ModeSubmission Mode = "submission"
)

// Placeholder place-of-issue used only in preview mode when no origin
// location has been captured yet.
const placeholderPostalCode = "00000"

const timestampLayout = "2006-01-02T15:04:05"

// GenerateResult carries either the serialized XML or the list of reasons
// generation was refused. Warnings are advisory and never block.
type GenerateResult struct {
	XML      string   `json:"xml,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether XML was produced
func (r *GenerateResult) OK() bool {
	return len(r.Errors) == 0
}

// Generator serializes a fiscal document into the CFDI 4.0 + Carta Porte 3.1
// wire format. It is pure: no I/O, no retained state.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a document generator
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger.Named("document_generator")}
}

// Generate serializes the document. The document is expected to have passed
// validation; blocking validation faults should be resolved before calling in
// submission mode.
func (g *Generator) Generate(doc *FiscalDocument, mode Mode) *GenerateResult {
	result := &GenerateResult{}

	g.collectAdvisories(doc, result)

	lugarExpedicion := ""
	if origin := doc.OriginLocation(); origin != nil {
		lugarExpedicion = origin.Address.PostalCode
	}
	if lugarExpedicion == "" {
		if mode == ModeSubmission {
			result.Errors = append(result.Errors,
				"no existe una ubicación de tipo origen con código postal; se requiere para el atributo LugarExpedicion")
		} else {
			lugarExpedicion = placeholderPostalCode
			result.Warnings = append(result.Warnings,
				"sin ubicación de origen; se usó el código postal provisional 00000 como lugar de expedición")
		}
	}

	if refs := g.unresolvedTransferRefs(doc); len(refs) > 0 {
		for _, ref := range refs {
			msg := fmt.Sprintf("la mercancía referencia la ubicación %q que no existe en el documento", ref)
			if mode == ModeSubmission {
				result.Errors = append(result.Errors, msg)
			} else {
				result.Warnings = append(result.Warnings, msg)
			}
		}
	}

	if !result.OK() {
		return result
	}

	root := g.buildComprobante(doc, lugarExpedicion)

	data, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		// Only reachable through a marshal-incompatible model change.
		result.Errors = append(result.Errors, fmt.Sprintf("error al serializar el comprobante: %v", err))
		return result
	}

	result.XML = xml.Header + string(data)
	return result
}

// collectAdvisories flags likely authority rejections without blocking
func (g *Generator) collectAdvisories(doc *FiscalDocument, result *GenerateResult) {
	if len(doc.Goods) == 0 {
		result.Warnings = append(result.Warnings,
			"no hay mercancías registradas; la autoridad rechazará un complemento sin mercancías")
	}
	if len(doc.Locations) < 2 {
		result.Warnings = append(result.Warnings,
			"se requieren al menos dos ubicaciones (origen y destino)")
	}
	if len(doc.Actors) == 0 {
		result.Warnings = append(result.Warnings,
			"no hay figuras de transporte registradas")
	}
}

func (g *Generator) unresolvedTransferRefs(doc *FiscalDocument) []string {
	ids := doc.LocationIDs()
	var missing []string
	seen := make(map[string]bool)
	for _, good := range doc.Goods {
		for _, transfer := range good.Transfers {
			for _, ref := range []string{transfer.OriginID, transfer.DestinationID} {
				if ref != "" && !ids[ref] && !seen[ref] {
					seen[ref] = true
					missing = append(missing, ref)
				}
			}
		}
	}
	return missing
}

func (g *Generator) buildComprobante(doc *FiscalDocument, lugarExpedicion string) *comprobanteXML {
	folio := doc.Folio
	if folio == "" {
		folio = strconv.FormatInt(time.Now().Unix(), 10)
	}

	exportacion := "01"
	if doc.International {
		exportacion = "02"
	}

	return &comprobanteXML{
		XMLNSCfdi:      nsCFDI,
		XMLNSCarta:     nsCartaPorte,
		XMLNSXsi:       nsXSI,
		SchemaLocation: schemaLocations,

		Version:           cfdiVersion,
		Serie:             doc.Series,
		Folio:             folio,
		Fecha:             time.Now().Format(timestampLayout),
		SubTotal:          formatMoney(doc.Subtotal),
		Moneda:            doc.Currency,
		Total:             formatMoney(doc.Total),
		TipoDeComprobante: "I",
		Exportacion:       exportacion,
		MetodoPago:        doc.PaymentMethod,
		FormaPago:         doc.PaymentForm,
		LugarExpedicion:   lugarExpedicion,

		Emisor: emisorXML{
			Rfc:           doc.Issuer.RFC,
			Nombre:        doc.Issuer.LegalName,
			RegimenFiscal: doc.Issuer.FiscalRegime,
		},
		Receptor: receptorXML{
			Rfc:                     doc.Recipient.RFC,
			Nombre:                  doc.Recipient.LegalName,
			DomicilioFiscalReceptor: doc.Recipient.FiscalPostalCode,
			RegimenFiscalReceptor:   doc.Recipient.FiscalRegime,
			UsoCFDI:                 doc.Recipient.CFDIUse,
		},
		Conceptos: conceptosXML{
			Conceptos: []conceptoXML{{
				ClaveProdServ: "78101800",
				Cantidad:      "1",
				ClaveUnidad:   "E48",
				Descripcion:   "Servicio de transporte de carga por carretera",
				ValorUnitario: formatMoney(doc.Subtotal),
				Importe:       formatMoney(doc.Subtotal),
				ObjetoImp:     "02",
			}},
		},
		Complemento: complementoXML{
			CartaPorte: g.buildCartaPorte(doc),
		},
	}
}

func (g *Generator) buildCartaPorte(doc *FiscalDocument) cartaPorteXML {
	transpInternac := "No"
	cp := cartaPorteXML{
		Version:      cartaPorteVersion,
		IdCCP:        newIdCCP(),
		TotalDistRec: formatDistance(doc.TotalDistanceKM),
		Ubicaciones:  ubicacionesXML{Ubicaciones: g.buildUbicaciones(doc)},
		Mercancias:   g.buildMercancias(doc),
	}

	if doc.International {
		transpInternac = "Sí"
		cp.EntradaSalidaMerc = doc.EntryExit
		cp.PaisOrigenDestino = doc.OriginDestinationCountry
		cp.ViaEntradaSalida = doc.EntryExitChannel
	}
	cp.TranspInternac = transpInternac

	if len(doc.Actors) > 0 {
		figura := &figuraTransporteXML{}
		for _, actor := range doc.Actors {
			tf := tiposFiguraXML{
				TipoFigura:   actor.Role,
				RFCFigura:    actor.RFC,
				NombreFigura: actor.Name,
			}
			// The authority requires the license only for operators.
			if actor.Role == ActorRoleOperator {
				tf.NumLicencia = actor.LicenseNumber
			}
			if actor.Address.PostalCode != "" {
				tf.Domicilio = buildDomicilio(actor.Address)
			}
			figura.Figuras = append(figura.Figuras, tf)
		}
		cp.FiguraTransporte = figura
	}

	return cp
}

func (g *Generator) buildUbicaciones(doc *FiscalDocument) []ubicacionXML {
	ubicaciones := make([]ubicacionXML, 0, len(doc.Locations))
	for _, loc := range doc.Locations {
		u := ubicacionXML{
			TipoUbicacion:               locationTypeLabel(loc.Type),
			IDUbicacion:                 loc.ID,
			RFCRemitenteDestinatario:    loc.RFC,
			NombreRemitenteDestinatario: loc.Name,
			FechaHoraSalidaLlegada:      loc.Timestamp.Format(timestampLayout),
		}
		// Cumulative distance is only valid on destinations.
		if loc.Type == LocationDestination {
			u.DistanciaRecorrida = formatDistance(loc.DistanceKM)
		}
		if loc.Address.PostalCode != "" {
			u.Domicilio = buildDomicilio(loc.Address)
		}
		ubicaciones = append(ubicaciones, u)
	}
	return ubicaciones
}

func (g *Generator) buildMercancias(doc *FiscalDocument) mercanciasXML {
	mercancias := mercanciasXML{
		PesoBrutoTotal:     formatWeight(doc.TotalWeightKG()),
		UnidadPeso:         "KGM",
		NumTotalMercancias: strconv.Itoa(len(doc.Goods)),
	}

	for _, good := range doc.Goods {
		m := mercanciaXML{
			BienesTransp:   good.ProductCode,
			Descripcion:    good.Description,
			Cantidad:       formatQuantity(good.Quantity),
			ClaveUnidad:    good.UnitCode,
			PesoEnKg:       formatWeight(good.WeightKG),
			ValorMercancia: formatMoney(good.Value),
			Moneda:         good.Currency,
		}
		if good.Hazardous {
			m.MaterialPeligroso = "Sí"
			m.CveMaterialPeligroso = good.HazardousCode
			m.Embalaje = good.PackagingCode
		}
		if doc.International {
			m.FraccionArancelaria = good.TariffCode
		}
		for _, transfer := range good.Transfers {
			m.CantidadTransporta = append(m.CantidadTransporta, cantidadTransportaXML{
				Cantidad:  formatQuantity(transfer.Quantity),
				IDOrigen:  transfer.OriginID,
				IDDestino: transfer.DestinationID,
			})
		}
		mercancias.Mercancias = append(mercancias.Mercancias, m)
	}

	if doc.Transport.PlateNumber != "" {
		auto := &autotransporteXML{
			PermSCT:       doc.Transport.PermitType,
			NumPermisoSCT: doc.Transport.PermitNumber,
			IdentificacionVehicular: identificacionVehicularXML{
				ConfigVehicular: doc.Transport.VehicleConfig,
				PlacaVM:         doc.Transport.PlateNumber,
				AnioModeloVM:    strconv.Itoa(doc.Transport.ModelYear),
			},
			Seguros: segurosXML{
				AseguraRespCivil: doc.Transport.InsuranceCompany,
				PolizaRespCivil:  doc.Transport.InsurancePolicy,
			},
		}
		if len(doc.Transport.Trailers) > 0 {
			remolques := &remolquesXML{}
			for _, trailer := range doc.Transport.Trailers {
				remolques.Remolques = append(remolques.Remolques, remolqueXML{
					SubTipoRem: trailer.SubType,
					Placa:      trailer.Plate,
				})
			}
			auto.Remolques = remolques
		}
		mercancias.Autotransporte = auto
	}

	return mercancias
}

func buildDomicilio(addr Address) *domicilioXML {
	country := addr.Country
	if country == "" {
		country = "MEX"
	}
	return &domicilioXML{
		Calle:        addr.Street,
		Colonia:      addr.Neighborhood,
		Localidad:    addr.Locality,
		Municipio:    addr.Municipality,
		Estado:       addr.State,
		Pais:         country,
		CodigoPostal: addr.PostalCode,
	}
}

func locationTypeLabel(t LocationType) string {
	switch t {
	case LocationOrigin:
		return "Origen"
	case LocationDestination:
		return "Destino"
	default:
		return "Paso Intermedio"
	}
}

// newIdCCP builds the complement identifier: an RFC-4122 string whose first
// three characters the schema fixes to CCC.
func newIdCCP() string {
	return "CCC" + uuid.NewString()[3:]
}

// formatMoney renders a monetary amount with the authority's 2-decimal precision
func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatWeight renders kilograms with 3 decimals
func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// formatDistance renders kilometers with 2 decimals
func formatDistance(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatQuantity renders a quantity with up to 6 decimals, trimming trailing
// zeros so integral quantities stay integral
func formatQuantity(v float64) string {
	rounded := math.Round(v*1e6) / 1e6
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
