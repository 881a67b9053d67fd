package validation

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/cfdi"
	"github.com/fletera/fiscal-engine/internal/database"
	"github.com/fletera/fiscal-engine/internal/standardize"
)

var (
	rfcPattern        = regexp.MustCompile(`^[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}$`)
	postalCodePattern = regexp.MustCompile(`^\d{5}$`)
)

// IdentityStore is the subset of the identity repository the engine needs
type IdentityStore interface {
	SandboxIdentity(ctx context.Context, rfc string) (*database.SandboxIdentity, error)
	ProductionIdentity(ctx context.Context, tenantID, rfc string) (*database.ProductionIdentity, error)
}

// Engine validates a candidate fiscal document against the authority rule set
// and the tenant's source-of-truth identity. It is a pure function of the
// document, the tenant configuration and the identity tables: it never
// mutates its input and accumulates every fault it finds.
type Engine struct {
	identities IdentityStore
	logger     *zap.Logger
}

// NewEngine creates a validation engine
func NewEngine(identities IdentityStore, logger *zap.Logger) *Engine {
	return &Engine{
		identities: identities,
		logger:     logger.Named("validation_engine"),
	}
}

// Validate runs the full rule set. Only a missing source of truth
// short-circuits; every other check runs to completion so the user sees all
// faults at once. Infrastructure failures become a single critical fault
// rather than an error.
func (e *Engine) Validate(ctx context.Context, doc *cfdi.FiscalDocument, tenantCfg *database.TenantConfig) (*Result, error) {
	environment := EnvironmentSandbox
	if tenantCfg.Environment == string(EnvironmentProduction) {
		environment = EnvironmentProduction
	}

	result := &Result{
		Environment: environment,
		Faults:      []Fault{},
	}

	sot, fault := e.resolveSourceOfTruth(ctx, environment, tenantCfg)
	if fault != nil {
		result.Faults = append(result.Faults, *fault)
		result.Valid = false
		return result, nil
	}
	result.SourceOfTruth = sot

	e.checkIssuerIdentity(doc, sot, result)
	e.checkRecipient(doc, result)
	e.checkCatalogMembership(doc, result)
	e.checkAmounts(doc, result)
	e.collectWarnings(doc, result)

	result.Valid = len(result.BlockingFaults()) == 0
	return result, nil
}

// resolveSourceOfTruth fetches the one identity record the tenant may issue
// under. In sandbox that is the official test-identity catalog; in production
// the tenant's previously validated identity.
func (e *Engine) resolveSourceOfTruth(ctx context.Context, env Environment, tenantCfg *database.TenantConfig) (*SourceOfTruthRecord, *Fault) {
	if env == EnvironmentSandbox {
		identity, err := e.identities.SandboxIdentity(ctx, tenantCfg.IssuerRFC)
		if err != nil {
			return nil, e.infrastructureFault(err)
		}
		if identity == nil {
			return nil, &Fault{
				Field:       "emisor",
				Actual:      tenantCfg.IssuerRFC,
				Expected:    "un RFC del catálogo oficial de identidades de prueba",
				Source:      "catálogo de identidades sandbox",
				Remediation: "En Configuración fiscal seleccione uno de los RFC de prueba publicados por la autoridad para el ambiente sandbox.",
				Severity:    SeverityCritical,
			}
		}
		return &SourceOfTruthRecord{
			TaxID:        identity.RFC,
			LegalName:    identity.LegalName,
			FiscalRegime: identity.FiscalRegime,
			PostalCode:   identity.PostalCode,
			Origin:       OriginSandboxCatalog,
		}, nil
	}

	identity, err := e.identities.ProductionIdentity(ctx, tenantCfg.TenantID, tenantCfg.IssuerRFC)
	if err != nil {
		return nil, e.infrastructureFault(err)
	}
	if identity == nil {
		return nil, &Fault{
			Field:       "emisor",
			Actual:      tenantCfg.IssuerRFC,
			Expected:    "una identidad validada ante la autoridad",
			Source:      "identidades de producción del contribuyente",
			Remediation: "En Configuración fiscal complete la validación de su identidad fiscal antes de timbrar en producción.",
			Severity:    SeverityCritical,
		}
	}
	return &SourceOfTruthRecord{
		TaxID:        identity.RFC,
		LegalName:    identity.LegalName,
		FiscalRegime: identity.FiscalRegime,
		PostalCode:   identity.PostalCode,
		Origin:       OriginTenantConfiguration,
	}, nil
}

func (e *Engine) infrastructureFault(err error) *Fault {
	e.logger.Error("Identity lookup failed", zap.Error(err))
	return &Fault{
		Field:       "sistema",
		Expected:    "acceso a las tablas de identidades",
		Source:      "infraestructura",
		Remediation: "No fue posible consultar la identidad fiscal; intente de nuevo en unos minutos.",
		Severity:    SeverityCritical,
	}
}

// checkIssuerIdentity compares the document issuer against the source of
// truth. The legal-name comparison is normalized because a cosmetic mismatch
// here is the most common cause of authority rejection.
func (e *Engine) checkIssuerIdentity(doc *cfdi.FiscalDocument, sot *SourceOfTruthRecord, result *Result) {
	if doc.Issuer.RFC != sot.TaxID {
		result.Faults = append(result.Faults, Fault{
			Field:       "rfc_emisor",
			Actual:      doc.Issuer.RFC,
			Expected:    sot.TaxID,
			Source:      sot.Origin,
			Remediation: fmt.Sprintf("El RFC del emisor debe ser %s, el registrado en su configuración fiscal.", sot.TaxID),
			Severity:    SeverityCritical,
		})
	}

	if !standardize.Equal(doc.Issuer.LegalName, sot.LegalName) {
		result.Faults = append(result.Faults, Fault{
			Field:       "nombre_emisor",
			Actual:      doc.Issuer.LegalName,
			Expected:    sot.LegalName,
			Source:      sot.Origin,
			Remediation: fmt.Sprintf("Capture la razón social exactamente como está registrada ante la autoridad: %q.", sot.LegalName),
			Severity:    SeverityCritical,
		})
	}
}

func (e *Engine) checkRecipient(doc *cfdi.FiscalDocument, result *Result) {
	if !rfcPattern.MatchString(doc.Recipient.RFC) {
		result.Faults = append(result.Faults, Fault{
			Field:       "rfc_receptor",
			Actual:      doc.Recipient.RFC,
			Expected:    "un RFC con formato válido (AAAA999999XXX)",
			Source:      "formato RFC",
			Remediation: "Verifique el RFC del cliente: 3 o 4 letras, 6 dígitos de fecha y 3 caracteres de homoclave.",
			Severity:    SeverityError,
		})
	}

	// The schema requires the recipient's fiscal postal code unconditionally.
	if doc.Recipient.FiscalPostalCode == "" {
		result.Faults = append(result.Faults, Fault{
			Field:       "domicilio_fiscal_receptor",
			Expected:    "el código postal del domicilio fiscal del receptor",
			Source:      "esquema CFDI 4.0",
			Remediation: "Capture el código postal del domicilio fiscal del cliente tal como aparece en su constancia de situación fiscal.",
			Severity:    SeverityCritical,
		})
	} else if !postalCodePattern.MatchString(doc.Recipient.FiscalPostalCode) {
		result.Faults = append(result.Faults, Fault{
			Field:       "domicilio_fiscal_receptor",
			Actual:      doc.Recipient.FiscalPostalCode,
			Expected:    "un código postal de 5 dígitos",
			Source:      "esquema CFDI 4.0",
			Remediation: "El código postal del receptor debe tener exactamente 5 dígitos.",
			Severity:    SeverityCritical,
		})
	}
}

func (e *Engine) checkCatalogMembership(doc *cfdi.FiscalDocument, result *Result) {
	checks := []struct {
		field   string
		value   string
		catalog map[string]string
		source  string
	}{
		{"forma_pago", doc.PaymentForm, paymentForms, "catálogo c_FormaPago"},
		{"metodo_pago", doc.PaymentMethod, paymentMethods, "catálogo c_MetodoPago"},
		{"moneda", doc.Currency, currencies, "catálogo c_Moneda"},
		{"uso_cfdi", doc.Recipient.CFDIUse, cfdiUses, "catálogo c_UsoCFDI"},
		{"regimen_fiscal_emisor", doc.Issuer.FiscalRegime, fiscalRegimes, "catálogo c_RegimenFiscal"},
		{"regimen_fiscal_receptor", doc.Recipient.FiscalRegime, fiscalRegimes, "catálogo c_RegimenFiscal"},
	}

	for _, check := range checks {
		if !inCatalog(check.catalog, check.value) {
			result.Faults = append(result.Faults, Fault{
				Field:       check.field,
				Actual:      check.value,
				Expected:    fmt.Sprintf("un código del %s", check.source),
				Source:      check.source,
				Remediation: fmt.Sprintf("Seleccione un valor válido del %s.", check.source),
				Severity:    SeverityError,
			})
		}
	}
}

func (e *Engine) checkAmounts(doc *cfdi.FiscalDocument, result *Result) {
	if doc.Subtotal < 0 {
		result.Faults = append(result.Faults, Fault{
			Field:       "subtotal",
			Actual:      fmt.Sprintf("%.2f", doc.Subtotal),
			Expected:    "un monto no negativo",
			Source:      "reglas de montos",
			Remediation: "El subtotal no puede ser negativo.",
			Severity:    SeverityError,
		})
	}
	if doc.Total < 0 {
		result.Faults = append(result.Faults, Fault{
			Field:       "total",
			Actual:      fmt.Sprintf("%.2f", doc.Total),
			Expected:    "un monto no negativo",
			Source:      "reglas de montos",
			Remediation: "El total no puede ser negativo.",
			Severity:    SeverityError,
		})
	}
	if doc.Total < doc.Subtotal {
		result.Faults = append(result.Faults, Fault{
			Field:       "total",
			Actual:      fmt.Sprintf("%.2f", doc.Total),
			Expected:    fmt.Sprintf("un total mayor o igual al subtotal (%.2f)", doc.Subtotal),
			Source:      "reglas de montos",
			Remediation: "El total debe ser mayor o igual al subtotal.",
			Severity:    SeverityError,
		})
	}
}

func (e *Engine) collectWarnings(doc *cfdi.FiscalDocument, result *Result) {
	if len(doc.Goods) > 5 {
		result.Faults = append(result.Faults, Fault{
			Field:       "mercancias",
			Actual:      fmt.Sprintf("%d partidas", len(doc.Goods)),
			Expected:    "hasta 5 partidas por viaje",
			Source:      "recomendación operativa",
			Remediation: "Revise la distribución de carga; más de 5 partidas suele indicar que conviene dividir el viaje.",
			Severity:    SeverityWarning,
		})
	}

	for _, loc := range doc.Locations {
		if loc.Latitude == nil || loc.Longitude == nil {
			result.Faults = append(result.Faults, Fault{
				Field:       "ubicaciones",
				Actual:      fmt.Sprintf("ubicación %s sin coordenadas", loc.ID),
				Expected:    "coordenadas GPS en cada ubicación",
				Source:      "recomendación operativa",
				Remediation: "Agregue las coordenadas GPS de la ubicación para facilitar verificaciones en carretera.",
				Severity:    SeverityWarning,
			})
			break
		}
	}
}
