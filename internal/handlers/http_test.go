package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/catalog"
	"github.com/fletera/fiscal-engine/internal/cfdi"
	"github.com/fletera/fiscal-engine/internal/database"
	"github.com/fletera/fiscal-engine/internal/stamping"
	"github.com/fletera/fiscal-engine/internal/validation"
)

type fakeResolver struct {
	entry    *catalog.CatalogEntry
	relation *catalog.RelationResult
	err      error
}

func (f *fakeResolver) Resolve(_ context.Context, postalCode string) (*catalog.CatalogEntry, error) {
	if len(postalCode) != 5 {
		return nil, catalog.ErrInvalidPostalCode
	}
	return f.entry, f.err
}

func (f *fakeResolver) ValidateRelation(_ context.Context, _, _, _ string) (*catalog.RelationResult, error) {
	return f.relation, f.err
}

type fakeValidator struct {
	result *validation.Result
	err    error
}

func (f *fakeValidator) Validate(_ context.Context, _ *cfdi.FiscalDocument, _ *database.TenantConfig) (*validation.Result, error) {
	return f.result, f.err
}

type fakeGenerator struct {
	result *cfdi.GenerateResult
	calls  int
	mode   cfdi.Mode
}

func (f *fakeGenerator) Generate(_ *cfdi.FiscalDocument, mode cfdi.Mode) *cfdi.GenerateResult {
	f.calls++
	f.mode = mode
	return f.result
}

type fakeStamper struct {
	result *stamping.StampingResult
	calls  int
	lastID string
	last   stamping.StampRequest
}

func (f *fakeStamper) Stamp(_ context.Context, documentID string, req stamping.StampRequest) *stamping.StampingResult {
	f.calls++
	f.lastID = documentID
	f.last = req
	return f.result
}

type fakeTenants struct {
	configs map[string]*database.TenantConfig
	err     error
}

func (f *fakeTenants) TenantConfig(_ context.Context, tenantID string) (*database.TenantConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.configs[tenantID], nil
}

type pipelineFakes struct {
	resolver  *fakeResolver
	validator *fakeValidator
	generator *fakeGenerator
	stamper   *fakeStamper
	tenants   *fakeTenants
}

func newPipelineFakes() *pipelineFakes {
	return &pipelineFakes{
		resolver: &fakeResolver{},
		validator: &fakeValidator{result: &validation.Result{
			Valid:       true,
			Faults:      []validation.Fault{},
			Environment: validation.EnvironmentSandbox,
		}},
		generator: &fakeGenerator{result: &cfdi.GenerateResult{XML: "<xml/>"}},
		stamper: &fakeStamper{result: &stamping.StampingResult{
			Success: true,
			Proof:   &stamping.StampProof{UUID: "uuid-1"},
		}},
		tenants: &fakeTenants{configs: map[string]*database.TenantConfig{
			"tenant-1": {
				TenantID:             "tenant-1",
				Environment:          "sandbox",
				IssuerRFC:            "EKU9003173C9",
				UseCustomCertificate: true,
			},
		}},
	}
}

func newTestRouter(f *pipelineFakes) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewFiscalHandler(f.resolver, f.validator, f.generator, f.stamper, f.tenants, nil, zap.NewNop())
	handler.RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func documentBody() map[string]interface{} {
	return map[string]interface{}{
		"tenant_id": "tenant-1",
		"document": map[string]interface{}{
			"issuer":    map[string]interface{}{"rfc": "EKU9003173C9"},
			"recipient": map[string]interface{}{"rfc": "XAXX010101000"},
		},
	}
}

func TestResolvePostalCode(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		fakes := newPipelineFakes()
		fakes.resolver.entry = &catalog.CatalogEntry{
			PostalCode: "01000",
			StateCode:  "09",
			StateName:  "Ciudad de México",
		}
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodGet, "/api/v1/catalogs/postal-codes/01000", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		var entry catalog.CatalogEntry
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &entry))
		assert.Equal(t, "Ciudad de México", entry.StateName)
	})

	t.Run("Not Found", func(t *testing.T) {
		router := newTestRouter(newPipelineFakes())
		recorder := doJSON(t, router, http.MethodGet, "/api/v1/catalogs/postal-codes/99999", nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("Malformed Code", func(t *testing.T) {
		router := newTestRouter(newPipelineFakes())
		recorder := doJSON(t, router, http.MethodGet, "/api/v1/catalogs/postal-codes/123", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestValidateRelation(t *testing.T) {
	fakes := newPipelineFakes()
	fakes.resolver.relation = &catalog.RelationResult{
		Valid:  false,
		Errors: []string{"el estado \"Jalisco\" no corresponde al código postal 01000; se esperaba Ciudad de México (09)"},
	}
	router := newTestRouter(fakes)

	recorder := doJSON(t, router, http.MethodPost, "/api/v1/catalogs/postal-codes/01000/validate-relation", map[string]string{
		"state":        "Jalisco",
		"municipality": "Álvaro Obregón",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result catalog.RelationResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}

func TestValidateDocument(t *testing.T) {
	t.Run("Returns Fault List", func(t *testing.T) {
		fakes := newPipelineFakes()
		fakes.validator.result = &validation.Result{
			Valid: false,
			Faults: []validation.Fault{{
				Field:    "rfc_emisor",
				Severity: validation.SeverityCritical,
			}},
			Environment: validation.EnvironmentSandbox,
		}
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/validate", documentBody())
		require.Equal(t, http.StatusOK, recorder.Code)

		var result validation.Result
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
		assert.False(t, result.Valid)
		require.Len(t, result.Faults, 1)
	})

	t.Run("Unknown Tenant", func(t *testing.T) {
		router := newTestRouter(newPipelineFakes())
		body := documentBody()
		body["tenant_id"] = "tenant-missing"

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/validate", body)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("Missing Tenant ID", func(t *testing.T) {
		router := newTestRouter(newPipelineFakes())
		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/validate", map[string]interface{}{
			"document": map[string]interface{}{},
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestGenerateDocument(t *testing.T) {
	t.Run("Defaults To Submission", func(t *testing.T) {
		fakes := newPipelineFakes()
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/generate", documentBody())
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, cfdi.ModeSubmission, fakes.generator.mode)
	})

	t.Run("Preview Mode Via Query", func(t *testing.T) {
		fakes := newPipelineFakes()
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/generate?mode=preview", documentBody())
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, cfdi.ModePreview, fakes.generator.mode)
	})

	t.Run("Refusal Is Unprocessable", func(t *testing.T) {
		fakes := newPipelineFakes()
		fakes.generator.result = &cfdi.GenerateResult{Errors: []string{"sin ubicación de origen"}}
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/generate?mode=submission", documentBody())
		assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	})
}

func TestStampDocument(t *testing.T) {
	t.Run("Forwards Tenant Certificate Preference", func(t *testing.T) {
		fakes := newPipelineFakes()
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-9/stamp", map[string]string{
			"tenant_id":    "tenant-1",
			"document_xml": "<xml/>",
		})
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "doc-9", fakes.stamper.lastID)
		assert.Equal(t, "EKU9003173C9", fakes.stamper.last.IssuerRFC)
		assert.True(t, fakes.stamper.last.UseCustomCertificate)
	})

	t.Run("Rejection Is Unprocessable", func(t *testing.T) {
		fakes := newPipelineFakes()
		fakes.stamper.result = &stamping.StampingResult{
			Success: false,
			Error:   &stamping.StampError{Code: "CFDI40147"},
		}
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-9/stamp", map[string]string{
			"tenant_id":    "tenant-1",
			"document_xml": "<xml/>",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	})
}

func TestProcessDocument(t *testing.T) {
	t.Run("Full Pipeline", func(t *testing.T) {
		fakes := newPipelineFakes()
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/process", documentBody())
		require.Equal(t, http.StatusOK, recorder.Code)

		var response ProcessResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		require.NotNil(t, response.Validation)
		require.NotNil(t, response.Generation)
		require.NotNil(t, response.Stamping)
		assert.Equal(t, "uuid-1", response.Stamping.Proof.UUID)
		assert.Equal(t, cfdi.ModeSubmission, fakes.generator.mode)
		assert.Equal(t, 1, fakes.stamper.calls)
	})

	t.Run("Blocking Faults Skip Generation And Stamping", func(t *testing.T) {
		fakes := newPipelineFakes()
		fakes.validator.result = &validation.Result{
			Valid: false,
			Faults: []validation.Fault{{
				Field:    "nombre_emisor",
				Severity: validation.SeverityCritical,
			}},
			Environment: validation.EnvironmentSandbox,
		}
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/process", documentBody())
		require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

		var response ProcessResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.NotNil(t, response.Validation)
		assert.Nil(t, response.Generation)
		assert.Nil(t, response.Stamping)
		assert.Zero(t, fakes.generator.calls)
		assert.Zero(t, fakes.stamper.calls)
	})

	t.Run("Generation Refusal Skips Stamping", func(t *testing.T) {
		fakes := newPipelineFakes()
		fakes.generator.result = &cfdi.GenerateResult{Errors: []string{"sin ubicación de origen"}}
		router := newTestRouter(fakes)

		recorder := doJSON(t, router, http.MethodPost, "/api/v1/documents/doc-1/process", documentBody())
		require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

		var response ProcessResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		assert.NotNil(t, response.Generation)
		assert.Nil(t, response.Stamping)
		assert.Zero(t, fakes.stamper.calls)
	})
}
