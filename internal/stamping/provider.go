package stamping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/config"
)

// StampRequest is the submission envelope sent to the certification provider
type StampRequest struct {
	DocumentXML          string `json:"documento_xml"`
	IssuerRFC            string `json:"rfc_emisor"`
	UseCustomCertificate bool   `json:"certificado_propio"`
}

// Client is the certification-provider surface the orchestrator depends on.
// A returned error means the provider could not be reached; a rejection from
// the provider itself arrives as a StampingResult with Success false.
type Client interface {
	Stamp(ctx context.Context, req StampRequest) (*StampingResult, error)
}

// HTTPClient talks to the certification provider over its JSON API
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a certification-provider client
func NewHTTPClient(cfg config.StampingConfig, logger *zap.Logger) *HTTPClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    cfg.ProviderURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("stamping_provider"),
	}
}

// The provider answers with a discriminated union: exito selects between the
// certification artifacts and the rejection detail.
type providerResponse struct {
	Exito  bool `json:"exito"`
	Timbre *struct {
		UUID              string    `json:"uuid"`
		SelloCFD          string    `json:"sello_cfd"`
		SelloSAT          string    `json:"sello_sat"`
		CadenaOriginal    string    `json:"cadena_original"`
		CodigoQR          string    `json:"codigo_qr"`
		FechaTimbrado     time.Time `json:"fecha_timbrado"`
		NumeroCertificado string    `json:"numero_certificado"`
	} `json:"timbre,omitempty"`
	Error *struct {
		Codigo  string `json:"codigo"`
		Mensaje string `json:"mensaje"`
		Detalle string `json:"detalle"`
	} `json:"error,omitempty"`
}

// Stamp submits the document for certification
func (c *HTTPClient) Stamp(ctx context.Context, req StampRequest) (*StampingResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stamping request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stamp", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build stamping request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stamping request failed: %w", err)
	}
	defer resp.Body.Close()

	// The provider uses HTTP 200 for both outcomes and signals rejection in
	// the payload. Any other status is a provider-side infrastructure issue.
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certification provider returned status %d", resp.StatusCode)
	}

	var payload providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	if !payload.Exito {
		if payload.Error == nil {
			return nil, fmt.Errorf("provider rejected the document without an error payload")
		}
		c.logger.Info("Provider rejected document",
			zap.String("code", payload.Error.Codigo),
			zap.String("message", payload.Error.Mensaje))
		return &StampingResult{
			Success: false,
			Error: &StampError{
				Code:      payload.Error.Codigo,
				Message:   payload.Error.Mensaje,
				Detail:    payload.Error.Detalle,
				Retryable: false,
			},
		}, nil
	}

	if payload.Timbre == nil {
		return nil, fmt.Errorf("provider reported success without certification artifacts")
	}

	return &StampingResult{
		Success: true,
		Proof: &StampProof{
			UUID:            payload.Timbre.UUID,
			DigitalSeal:     payload.Timbre.SelloCFD,
			AuthoritySeal:   payload.Timbre.SelloSAT,
			OriginalChain:   payload.Timbre.CadenaOriginal,
			QRPayload:       payload.Timbre.CodigoQR,
			Timestamp:       payload.Timbre.FechaTimbrado,
			CertificateUsed: payload.Timbre.NumeroCertificado,
		},
	}, nil
}
