package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PrimaryPostalRow is one row of the denormalized postal-code table. The table
// carries full administrative names and one row per neighborhood.
type PrimaryPostalRow struct {
	PostalCode       string         `db:"postal_code"`
	StateCode        string         `db:"state_code"`
	StateName        string         `db:"state_name"`
	MunicipalityCode string         `db:"municipality_code"`
	MunicipalityName string         `db:"municipality_name"`
	Locality         sql.NullString `db:"locality"`
	Neighborhood     string         `db:"neighborhood"`
	SettlementType   string         `db:"settlement_type"`
	Zone             sql.NullString `db:"zone"`
}

// SecondaryPostalRow is one row of the code-only postal-code table. Names must
// be joined from the state and municipality catalogs.
type SecondaryPostalRow struct {
	PostalCode       string         `db:"postal_code"`
	StateCode        string         `db:"state_code"`
	MunicipalityCode string         `db:"municipality_code"`
	Locality         sql.NullString `db:"locality"`
	Zone             sql.NullString `db:"zone"`
}

// NeighborhoodRow is one neighborhood from the settlements catalog
type NeighborhoodRow struct {
	Name           string `db:"name"`
	SettlementType string `db:"settlement_type"`
}

// PostalCodeRepository handles postal-code and administrative catalog lookups
type PostalCodeRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostalCodeRepository creates a new postal code repository
func NewPostalCodeRepository(db *sqlx.DB, logger *zap.Logger) *PostalCodeRepository {
	return &PostalCodeRepository{
		db:     db,
		logger: logger.Named("postal_repository"),
	}
}

// PrimaryRows returns all denormalized rows for a postal code, one per
// neighborhood. An empty slice means the code is absent from the primary table.
func (r *PostalCodeRepository) PrimaryRows(ctx context.Context, postalCode string) ([]PrimaryPostalRow, error) {
	query := `
		SELECT postal_code, state_code, state_name, municipality_code,
		       municipality_name, locality, neighborhood, settlement_type, zone
		FROM postal_codes_primary
		WHERE postal_code = $1
		ORDER BY neighborhood`

	var rows []PrimaryPostalRow
	if err := r.db.SelectContext(ctx, &rows, query, postalCode); err != nil {
		return nil, errors.Wrap(err, "failed to query primary postal table")
	}
	return rows, nil
}

// SecondaryRow returns the code-only row for a postal code, or nil when absent
func (r *PostalCodeRepository) SecondaryRow(ctx context.Context, postalCode string) (*SecondaryPostalRow, error) {
	query := `
		SELECT postal_code, state_code, municipality_code, locality, zone
		FROM postal_codes_secondary
		WHERE postal_code = $1`

	var row SecondaryPostalRow
	err := r.db.GetContext(ctx, &row, query, postalCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query secondary postal table")
	}
	return &row, nil
}

// StateName resolves an official state code to its name
func (r *PostalCodeRepository) StateName(ctx context.Context, stateCode string) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name,
		`SELECT name FROM states WHERE code = $1`, stateCode)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to query states catalog")
	}
	return name, nil
}

// MunicipalityName resolves a state code + municipality code pair to its name
func (r *PostalCodeRepository) MunicipalityName(ctx context.Context, stateCode, municipalityCode string) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name,
		`SELECT name FROM municipalities WHERE state_code = $1 AND code = $2`,
		stateCode, municipalityCode)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to query municipalities catalog")
	}
	return name, nil
}

// Neighborhoods returns the settlements registered for a postal code
func (r *PostalCodeRepository) Neighborhoods(ctx context.Context, postalCode string) ([]NeighborhoodRow, error) {
	query := `
		SELECT name, settlement_type
		FROM neighborhoods
		WHERE postal_code = $1
		ORDER BY name`

	var rows []NeighborhoodRow
	if err := r.db.SelectContext(ctx, &rows, query, postalCode); err != nil {
		return nil, errors.Wrap(err, "failed to query neighborhoods catalog")
	}
	return rows, nil
}
