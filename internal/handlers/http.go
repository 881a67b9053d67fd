package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/catalog"
	"github.com/fletera/fiscal-engine/internal/cfdi"
	"github.com/fletera/fiscal-engine/internal/database"
	"github.com/fletera/fiscal-engine/internal/metrics"
	"github.com/fletera/fiscal-engine/internal/stamping"
	"github.com/fletera/fiscal-engine/internal/validation"
)

// CatalogResolver resolves postal codes and checks claimed relations
type CatalogResolver interface {
	Resolve(ctx context.Context, postalCode string) (*catalog.CatalogEntry, error)
	ValidateRelation(ctx context.Context, postalCode, claimedState, claimedMunicipality string) (*catalog.RelationResult, error)
}

// DocumentValidator runs the fiscal rule set against a document
type DocumentValidator interface {
	Validate(ctx context.Context, doc *cfdi.FiscalDocument, tenantCfg *database.TenantConfig) (*validation.Result, error)
}

// DocumentGenerator serializes a document to the wire format
type DocumentGenerator interface {
	Generate(doc *cfdi.FiscalDocument, mode cfdi.Mode) *cfdi.GenerateResult
}

// Stamper submits a serialized document for certification
type Stamper interface {
	Stamp(ctx context.Context, documentID string, req stamping.StampRequest) *stamping.StampingResult
}

// TenantStore looks up tenant fiscal configurations
type TenantStore interface {
	TenantConfig(ctx context.Context, tenantID string) (*database.TenantConfig, error)
}

// FiscalHandler handles the fiscal pipeline HTTP API
type FiscalHandler struct {
	resolver  CatalogResolver
	validator DocumentValidator
	generator DocumentGenerator
	stamper   Stamper
	tenants   TenantStore
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewFiscalHandler creates the fiscal pipeline handler
func NewFiscalHandler(
	resolver CatalogResolver,
	validator DocumentValidator,
	generator DocumentGenerator,
	stamper Stamper,
	tenants TenantStore,
	collector *metrics.Collector,
	logger *zap.Logger,
) *FiscalHandler {
	return &FiscalHandler{
		resolver:  resolver,
		validator: validator,
		generator: generator,
		stamper:   stamper,
		tenants:   tenants,
		collector: collector,
		logger:    logger.Named("http_handler"),
	}
}

// RegisterRoutes registers all fiscal pipeline routes
func (h *FiscalHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	api.GET("/catalogs/postal-codes/:code", h.ResolvePostalCode)
	api.POST("/catalogs/postal-codes/:code/validate-relation", h.ValidateRelation)

	api.POST("/documents/validate", h.ValidateDocument)
	api.POST("/documents/generate", h.GenerateDocument)
	api.POST("/documents/:id/stamp", h.StampDocument)
	api.POST("/documents/:id/process", h.ProcessDocument)
}

// HealthCheck reports service liveness
func (h *FiscalHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "fiscal-engine",
		"timestamp": time.Now().UTC(),
	})
}

// ResolvePostalCode resolves a postal code to its administrative hierarchy
func (h *FiscalHandler) ResolvePostalCode(c *gin.Context) {
	code := c.Param("code")

	entry, err := h.resolver.Resolve(c.Request.Context(), code)
	if err == catalog.ErrInvalidPostalCode {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Postal code resolution failed", zap.String("postal_code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve postal code"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "postal code not found in any catalog"})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ValidateRelation checks the claimed state/municipality against a postal code
func (h *FiscalHandler) ValidateRelation(c *gin.Context) {
	code := c.Param("code")

	var request struct {
		State        string `json:"state"`
		Municipality string `json:"municipality"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.resolver.ValidateRelation(c.Request.Context(), code, request.State, request.Municipality)
	if err != nil {
		h.logger.Error("Relation validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate relation"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type documentEnvelope struct {
	TenantID string              `json:"tenant_id" binding:"required"`
	Document cfdi.FiscalDocument `json:"document" binding:"required"`
}

func (h *FiscalHandler) tenantConfig(c *gin.Context, tenantID string) *database.TenantConfig {
	tenantCfg, err := h.tenants.TenantConfig(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("Tenant lookup failed", zap.String("tenant_id", tenantID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tenant configuration"})
		return nil
	}
	if tenantCfg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tenant"})
		return nil
	}
	return tenantCfg
}

// ValidateDocument runs the rule set and returns the full fault list
func (h *FiscalHandler) ValidateDocument(c *gin.Context) {
	var request documentEnvelope
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantCfg := h.tenantConfig(c, request.TenantID)
	if tenantCfg == nil {
		return
	}

	started := time.Now()
	result, err := h.validator.Validate(c.Request.Context(), &request.Document, tenantCfg)
	if err != nil {
		h.logger.Error("Validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate document"})
		return
	}
	h.collector.ObserveStage("validation", time.Since(started))
	h.collector.RecordValidation(result.Valid, result.SeverityCounts())

	c.JSON(http.StatusOK, result)
}

// GenerateDocument serializes a document. The mode query parameter selects
// preview semantics; the default is strict submission.
func (h *FiscalHandler) GenerateDocument(c *gin.Context) {
	var request documentEnvelope
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := cfdi.ModeSubmission
	if c.Query("mode") == string(cfdi.ModePreview) {
		mode = cfdi.ModePreview
	}

	started := time.Now()
	result := h.generator.Generate(&request.Document, mode)
	h.collector.ObserveStage("generation", time.Since(started))
	h.collector.RecordGeneration(string(mode), result.OK())

	status := http.StatusOK
	if !result.OK() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

// StampDocument submits an already-serialized document for certification
func (h *FiscalHandler) StampDocument(c *gin.Context) {
	documentID := c.Param("id")

	var request struct {
		TenantID    string `json:"tenant_id" binding:"required"`
		DocumentXML string `json:"document_xml" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantCfg := h.tenantConfig(c, request.TenantID)
	if tenantCfg == nil {
		return
	}

	result := h.stampDocument(c.Request.Context(), documentID, request.DocumentXML, tenantCfg)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (h *FiscalHandler) stampDocument(ctx context.Context, documentID, documentXML string, tenantCfg *database.TenantConfig) *stamping.StampingResult {
	started := time.Now()
	result := h.stamper.Stamp(ctx, documentID, stamping.StampRequest{
		DocumentXML:          documentXML,
		IssuerRFC:            tenantCfg.IssuerRFC,
		UseCustomCertificate: tenantCfg.UseCustomCertificate,
	})
	h.collector.ObserveStage("stamping", time.Since(started))

	outcome := "certified"
	if !result.Success {
		outcome = "rejected"
		if result.Error != nil && result.Error.Retryable {
			outcome = "unavailable"
		}
	}
	h.collector.RecordStamping(outcome)
	return result
}

// ProcessResponse is the aggregate outcome of a full pipeline run
type ProcessResponse struct {
	Validation *validation.Result       `json:"validation"`
	Generation *cfdi.GenerateResult     `json:"generation,omitempty"`
	Stamping   *stamping.StampingResult `json:"stamping,omitempty"`
}

// ProcessDocument runs the full pipeline: validate, generate in submission
// mode, stamp. Each stage gates the next; a document with blocking faults is
// never serialized and never reaches the provider.
func (h *FiscalHandler) ProcessDocument(c *gin.Context) {
	documentID := c.Param("id")

	var request documentEnvelope
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantCfg := h.tenantConfig(c, request.TenantID)
	if tenantCfg == nil {
		return
	}

	response := &ProcessResponse{}

	started := time.Now()
	validationResult, err := h.validator.Validate(c.Request.Context(), &request.Document, tenantCfg)
	if err != nil {
		h.logger.Error("Validation failed", zap.String("document_id", documentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate document"})
		return
	}
	h.collector.ObserveStage("validation", time.Since(started))
	h.collector.RecordValidation(validationResult.Valid, validationResult.SeverityCounts())
	response.Validation = validationResult

	if !validationResult.Valid {
		c.JSON(http.StatusUnprocessableEntity, response)
		return
	}

	started = time.Now()
	generateResult := h.generator.Generate(&request.Document, cfdi.ModeSubmission)
	h.collector.ObserveStage("generation", time.Since(started))
	h.collector.RecordGeneration(string(cfdi.ModeSubmission), generateResult.OK())
	response.Generation = generateResult

	if !generateResult.OK() {
		c.JSON(http.StatusUnprocessableEntity, response)
		return
	}

	response.Stamping = h.stampDocument(c.Request.Context(), documentID, generateResult.XML, tenantCfg)

	status := http.StatusOK
	if !response.Stamping.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, response)
}
