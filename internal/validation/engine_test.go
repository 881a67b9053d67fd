package validation

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/cfdi"
	"github.com/fletera/fiscal-engine/internal/database"
)

type fakeIdentityStore struct {
	sandbox    map[string]*database.SandboxIdentity
	production map[string]*database.ProductionIdentity
	err        error
}

func (s *fakeIdentityStore) SandboxIdentity(_ context.Context, rfc string) (*database.SandboxIdentity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sandbox[rfc], nil
}

func (s *fakeIdentityStore) ProductionIdentity(_ context.Context, tenantID, rfc string) (*database.ProductionIdentity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.production[tenantID+"/"+rfc], nil
}

func newTestStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		sandbox: map[string]*database.SandboxIdentity{
			"EKU9003173C9": {
				RFC:          "EKU9003173C9",
				LegalName:    "ESCUELA KEMPER URGATE",
				FiscalRegime: "601",
				PostalCode:   "42501",
			},
		},
		production: map[string]*database.ProductionIdentity{
			"tenant-1/TLN040512QG3": {
				TenantID:     "tenant-1",
				RFC:          "TLN040512QG3",
				LegalName:    "Transportes López del Norte SA de CV",
				FiscalRegime: "601",
				PostalCode:   "64000",
			},
		},
	}
}

func sandboxTenant() *database.TenantConfig {
	return &database.TenantConfig{
		TenantID:    "tenant-1",
		Environment: "sandbox",
		IssuerRFC:   "EKU9003173C9",
	}
}

func validDocument() *cfdi.FiscalDocument {
	lat, lon := 19.3467, -99.1871
	return &cfdi.FiscalDocument{
		Issuer: cfdi.Issuer{
			RFC:          "EKU9003173C9",
			LegalName:    "ESCUELA KEMPER URGATE",
			FiscalRegime: "601",
		},
		Recipient: cfdi.Recipient{
			RFC:              "XAXX010101000",
			LegalName:        "PUBLICO EN GENERAL",
			FiscalPostalCode: "01000",
			FiscalRegime:     "616",
			CFDIUse:          "S01",
		},
		PaymentForm:   "03",
		PaymentMethod: "PUE",
		Currency:      "MXN",
		Subtotal:      12500,
		Total:         14500,
		Locations: []cfdi.Location{
			{Type: cfdi.LocationOrigin, ID: "OR000001", Timestamp: time.Now(), Latitude: &lat, Longitude: &lon},
			{Type: cfdi.LocationDestination, ID: "DE000001", Timestamp: time.Now(), Latitude: &lat, Longitude: &lon},
		},
		Goods: []cfdi.Good{{ProductCode: "31181701", Quantity: 10, WeightKG: 120}},
	}
}

func newTestEngine(store IdentityStore) *Engine {
	return NewEngine(store, zap.NewNop())
}

func faultsForField(result *Result, field string) []Fault {
	var faults []Fault
	for _, f := range result.Faults {
		if f.Field == field {
			faults = append(faults, f)
		}
	}
	return faults
}

func TestEngine_Validate(t *testing.T) {
	t.Run("Valid Document Passes", func(t *testing.T) {
		engine := newTestEngine(newTestStore())

		result, err := engine.Validate(context.Background(), validDocument(), sandboxTenant())
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, EnvironmentSandbox, result.Environment)
		require.NotNil(t, result.SourceOfTruth)
		assert.Equal(t, OriginSandboxCatalog, result.SourceOfTruth.Origin)
		assert.Empty(t, result.BlockingFaults())
	})

	t.Run("Missing Source Of Truth Short Circuits", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		tenant := sandboxTenant()
		tenant.IssuerRFC = "ZZZ010101ZZ9"

		result, err := engine.Validate(context.Background(), validDocument(), tenant)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.Faults, 1)
		assert.Equal(t, SeverityCritical, result.Faults[0].Severity)
		assert.Contains(t, result.Faults[0].Remediation, "Configuración fiscal")
		assert.Nil(t, result.SourceOfTruth)
	})

	t.Run("Cosmetic Name Difference Is Not A Fault", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.Issuer.LegalName = "  Escuela   Kémper Urgate "

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		assert.Empty(t, faultsForField(result, "nombre_emisor"))
		assert.True(t, result.Valid)
	})

	t.Run("Genuine Name Difference Is Critical", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.Issuer.LegalName = "ESCUELA KEMPER"

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		faults := faultsForField(result, "nombre_emisor")
		require.Len(t, faults, 1)
		assert.Equal(t, SeverityCritical, faults[0].Severity)
		assert.Equal(t, "ESCUELA KEMPER URGATE", faults[0].Expected)
		assert.False(t, result.Valid)
	})

	t.Run("Issuer RFC Mismatch Is Critical", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.Issuer.RFC = "AAA010101AA1"

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		faults := faultsForField(result, "rfc_emisor")
		require.Len(t, faults, 1)
		assert.Equal(t, SeverityCritical, faults[0].Severity)
	})

	t.Run("Missing Recipient Postal Code Is Exactly One Critical Fault", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.Recipient.FiscalPostalCode = ""
		// Break unrelated fields too; the postal-code fault must be independent.
		doc.PaymentForm = "XX"
		doc.Currency = "ZZZ"

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		faults := faultsForField(result, "domicilio_fiscal_receptor")
		require.Len(t, faults, 1)
		assert.Equal(t, SeverityCritical, faults[0].Severity)
		assert.False(t, result.Valid)
	})

	t.Run("Malformed Recipient Postal Code Is Critical", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.Recipient.FiscalPostalCode = "123"

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		faults := faultsForField(result, "domicilio_fiscal_receptor")
		require.Len(t, faults, 1)
		assert.Equal(t, SeverityCritical, faults[0].Severity)
	})

	t.Run("Invalid Recipient RFC Format", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.Recipient.RFC = "not-an-rfc"

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		faults := faultsForField(result, "rfc_receptor")
		require.Len(t, faults, 1)
		assert.Equal(t, SeverityError, faults[0].Severity)
	})

	t.Run("Catalog Mismatches Accumulate", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.PaymentForm = "77"
		doc.PaymentMethod = "XYZ"
		doc.Currency = "BTC"
		doc.Recipient.CFDIUse = "Z99"

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Len(t, faultsForField(result, "forma_pago"), 1)
		assert.Len(t, faultsForField(result, "metodo_pago"), 1)
		assert.Len(t, faultsForField(result, "moneda"), 1)
		assert.Len(t, faultsForField(result, "uso_cfdi"), 1)
		for _, f := range result.BlockingFaults() {
			assert.NotEmpty(t, f.Remediation)
			assert.NotEmpty(t, f.Source)
		}
	})

	t.Run("Total Below Subtotal", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.Total = 1000
		doc.Subtotal = 2000

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		faults := faultsForField(result, "total")
		require.Len(t, faults, 1)
		assert.Equal(t, SeverityError, faults[0].Severity)
	})

	t.Run("Warnings Do Not Block", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		doc.Goods = make([]cfdi.Good, 7)
		for i := range doc.Goods {
			doc.Goods[i] = cfdi.Good{ProductCode: "31181701", Quantity: 1, WeightKG: 10}
		}

		result, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		assert.True(t, result.Valid)
		warnings := faultsForField(result, "mercancias")
		require.Len(t, warnings, 1)
		assert.Equal(t, SeverityWarning, warnings[0].Severity)
	})

	t.Run("Production Environment Uses Validated Identity", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		tenant := &database.TenantConfig{
			TenantID:    "tenant-1",
			Environment: "production",
			IssuerRFC:   "TLN040512QG3",
		}
		doc := validDocument()
		doc.Issuer.RFC = "TLN040512QG3"
		doc.Issuer.LegalName = "TRANSPORTES LOPEZ DEL NORTE SA DE CV"

		result, err := engine.Validate(context.Background(), doc, tenant)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, EnvironmentProduction, result.Environment)
		require.NotNil(t, result.SourceOfTruth)
		assert.Equal(t, OriginTenantConfiguration, result.SourceOfTruth.Origin)
	})

	t.Run("Infrastructure Failure Becomes Single Critical Fault", func(t *testing.T) {
		engine := newTestEngine(&fakeIdentityStore{err: errors.New("connection refused")})

		result, err := engine.Validate(context.Background(), validDocument(), sandboxTenant())
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.Faults, 1)
		assert.Equal(t, SeverityCritical, result.Faults[0].Severity)
		assert.Equal(t, "sistema", result.Faults[0].Field)
	})

	t.Run("Input Document Is Never Mutated", func(t *testing.T) {
		engine := newTestEngine(newTestStore())
		doc := validDocument()
		original := *doc

		_, err := engine.Validate(context.Background(), doc, sandboxTenant())
		require.NoError(t, err)
		assert.Equal(t, original.Issuer, doc.Issuer)
		assert.Equal(t, original.Recipient, doc.Recipient)
	})
}
