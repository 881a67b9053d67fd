package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SandboxIdentity is one entry of the official sandbox test-identity catalog
type SandboxIdentity struct {
	RFC          string `db:"rfc"`
	LegalName    string `db:"legal_name"`
	FiscalRegime string `db:"fiscal_regime"`
	PostalCode   string `db:"postal_code"`
}

// ProductionIdentity is a tenant identity previously validated against the tax
// authority out-of-band. It is the only identity a tenant may issue under in
// production.
type ProductionIdentity struct {
	TenantID     string    `db:"tenant_id"`
	RFC          string    `db:"rfc"`
	LegalName    string    `db:"legal_name"`
	FiscalRegime string    `db:"fiscal_regime"`
	PostalCode   string    `db:"postal_code"`
	ValidatedAt  time.Time `db:"validated_at"`
}

// TenantConfig is the tenant's fiscal configuration record
type TenantConfig struct {
	TenantID             string `db:"tenant_id"`
	Environment          string `db:"environment"` // sandbox, production
	IssuerRFC            string `db:"issuer_rfc"`
	IssuerLegalName      string `db:"issuer_legal_name"`
	FiscalRegime         string `db:"fiscal_regime"`
	PostalCode           string `db:"postal_code"`
	UseCustomCertificate bool   `db:"use_custom_certificate"`
}

// IdentityRepository handles sandbox/production identity and tenant lookups
type IdentityRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *sqlx.DB, logger *zap.Logger) *IdentityRepository {
	return &IdentityRepository{
		db:     db,
		logger: logger.Named("identity_repository"),
	}
}

// SandboxIdentity looks up an RFC in the sandbox test-identity catalog.
// A nil result means the RFC is not a registered test identity.
func (r *IdentityRepository) SandboxIdentity(ctx context.Context, rfc string) (*SandboxIdentity, error) {
	query := `
		SELECT rfc, legal_name, fiscal_regime, postal_code
		FROM sandbox_identities
		WHERE rfc = $1`

	var identity SandboxIdentity
	err := r.db.GetContext(ctx, &identity, query, rfc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sandbox identities")
	}
	return &identity, nil
}

// ProductionIdentity looks up a tenant's validated production identity by RFC
func (r *IdentityRepository) ProductionIdentity(ctx context.Context, tenantID, rfc string) (*ProductionIdentity, error) {
	query := `
		SELECT tenant_id, rfc, legal_name, fiscal_regime, postal_code, validated_at
		FROM production_identities
		WHERE tenant_id = $1 AND rfc = $2`

	var identity ProductionIdentity
	err := r.db.GetContext(ctx, &identity, query, tenantID, rfc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query production identities")
	}
	return &identity, nil
}

// TenantConfig returns the tenant's fiscal configuration record
func (r *IdentityRepository) TenantConfig(ctx context.Context, tenantID string) (*TenantConfig, error) {
	query := `
		SELECT tenant_id, environment, issuer_rfc, issuer_legal_name,
		       fiscal_regime, postal_code, use_custom_certificate
		FROM tenant_configurations
		WHERE tenant_id = $1`

	var cfg TenantConfig
	err := r.db.GetContext(ctx, &cfg, query, tenantID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tenant configuration")
	}
	return &cfg, nil
}
