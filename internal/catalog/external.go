package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/config"
)

// ExternalClient queries the third-party postal-code service. It is only
// invoked when both local tables miss.
type ExternalClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewExternalClient creates a client for the external postal-code service
func NewExternalClient(cfg config.CatalogConfig, logger *zap.Logger) *ExternalClient {
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExternalClient{
		baseURL:    cfg.ExternalURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("external_postal_client"),
	}
}

type externalNeighborhood struct {
	Name           string `json:"name"`
	SettlementType string `json:"settlement_type"`
}

type externalResponse struct {
	PostalCode       string                 `json:"postal_code"`
	StateCode        string                 `json:"state_code"`
	StateName        string                 `json:"state_name"`
	MunicipalityCode string                 `json:"municipality_code"`
	MunicipalityName string                 `json:"municipality_name"`
	Locality         string                 `json:"locality"`
	Zone             string                 `json:"zone"`
	Neighborhoods    []externalNeighborhood `json:"neighborhoods"`
}

// Lookup queries the external service for a postal code. A nil entry with a
// nil error means the service does not know the code.
func (c *ExternalClient) Lookup(ctx context.Context, postalCode string) (*CatalogEntry, error) {
	url := fmt.Sprintf("%s/postal-codes/%s", c.baseURL, postalCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build postal lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postal lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("postal lookup returned status %d", resp.StatusCode)
	}

	var payload externalResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode postal lookup response: %w", err)
	}

	entry := &CatalogEntry{
		PostalCode:       payload.PostalCode,
		StateCode:        payload.StateCode,
		StateName:        payload.StateName,
		MunicipalityCode: payload.MunicipalityCode,
		MunicipalityName: payload.MunicipalityName,
		Locality:         payload.Locality,
		Zone:             payload.Zone,
	}
	for _, n := range payload.Neighborhoods {
		entry.Neighborhoods = append(entry.Neighborhoods, Neighborhood(n))
	}

	c.logger.Debug("Resolved postal code from external service",
		zap.String("postal_code", postalCode))
	return entry, nil
}
