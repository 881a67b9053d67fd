package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/config"
	"github.com/fletera/fiscal-engine/internal/database"
	"github.com/fletera/fiscal-engine/internal/metrics"
	"github.com/fletera/fiscal-engine/internal/standardize"
)

var postalCodePattern = regexp.MustCompile(`^\d{5}$`)

// ErrInvalidPostalCode is returned before any lookup when the postal code is
// not a 5-digit string
var ErrInvalidPostalCode = fmt.Errorf("postal code must be a 5-digit string")

// PostalStore is the subset of the postal-code repository the resolver needs
type PostalStore interface {
	PrimaryRows(ctx context.Context, postalCode string) ([]database.PrimaryPostalRow, error)
	SecondaryRow(ctx context.Context, postalCode string) (*database.SecondaryPostalRow, error)
	StateName(ctx context.Context, stateCode string) (string, error)
	MunicipalityName(ctx context.Context, stateCode, municipalityCode string) (string, error)
	Neighborhoods(ctx context.Context, postalCode string) ([]database.NeighborhoodRow, error)
}

// ExternalSource is the network fallback for postal-code resolution
type ExternalSource interface {
	Lookup(ctx context.Context, postalCode string) (*CatalogEntry, error)
}

// source is one layer of the resolution chain. Each layer can fully answer the
// query; the first hit wins.
type source struct {
	name   string
	lookup func(ctx context.Context, postalCode string) (*CatalogEntry, error)
}

// Resolver resolves postal codes to their official administrative hierarchy
// through a layered source chain: in-memory cache, optional Redis shared
// cache, primary denormalized table, secondary coded table, external service.
type Resolver struct {
	store     PostalStore
	cache     *entryCache
	redis     *redis.Client
	sources   []source
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewResolver creates a catalog resolver with its own cache. The redis client
// and external source may be nil, in which case those layers are skipped.
func NewResolver(
	store PostalStore,
	redisClient *redis.Client,
	external ExternalSource,
	cfg config.CatalogConfig,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Resolver {
	r := &Resolver{
		store:     store,
		cache:     newEntryCache(cfg.CacheCapacity),
		redis:     redisClient,
		collector: collector,
		logger:    logger.Named("catalog_resolver"),
	}

	r.sources = []source{
		{name: "primary_table", lookup: r.lookupPrimary},
		{name: "secondary_table", lookup: r.lookupSecondary},
	}
	if external != nil && cfg.ExternalLookup {
		r.sources = append(r.sources, source{name: "external_service", lookup: external.Lookup})
	}

	return r
}

// Resolve resolves a postal code to its catalog entry. A nil entry with a nil
// error means the code was not found in any layer.
func (r *Resolver) Resolve(ctx context.Context, postalCode string) (*CatalogEntry, error) {
	if !postalCodePattern.MatchString(postalCode) {
		return nil, ErrInvalidPostalCode
	}

	if entry := r.cache.get(postalCode); entry != nil {
		r.collector.RecordResolution("memory_cache")
		return entry, nil
	}

	if entry := r.redisGet(ctx, postalCode); entry != nil {
		r.cache.put(entry)
		r.collector.RecordResolution("redis_cache")
		return entry, nil
	}

	for _, src := range r.sources {
		entry, err := src.lookup(ctx, postalCode)
		if err != nil {
			r.logger.Warn("Postal code source failed",
				zap.String("source", src.name),
				zap.String("postal_code", postalCode),
				zap.Error(err))
			return nil, fmt.Errorf("source %s failed: %w", src.name, err)
		}
		if entry != nil {
			r.cache.put(entry)
			r.redisSet(ctx, entry)
			r.collector.RecordResolution(src.name)
			return entry, nil
		}
	}

	r.collector.RecordResolution("not_found")
	return nil, nil
}

// ValidateRelation resolves a postal code and compares the claimed state and
// municipality (name or official code, case and accent insensitive) against
// the resolved values. Each mismatched field produces one error.
func (r *Resolver) ValidateRelation(ctx context.Context, postalCode, claimedState, claimedMunicipality string) (*RelationResult, error) {
	if !postalCodePattern.MatchString(postalCode) {
		return &RelationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("el código postal %q no tiene el formato de 5 dígitos", postalCode)},
		}, nil
	}

	entry, err := r.Resolve(ctx, postalCode)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &RelationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("el código postal %s no existe en los catálogos oficiales", postalCode)},
		}, nil
	}

	result := &RelationResult{Valid: true, Matched: entry}

	if claimedState != "" && !matchesNameOrCode(claimedState, entry.StateName, entry.StateCode) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(
			"el estado %q no corresponde al código postal %s; se esperaba %s (%s)",
			claimedState, postalCode, entry.StateName, entry.StateCode))
	}

	if claimedMunicipality != "" && !matchesNameOrCode(claimedMunicipality, entry.MunicipalityName, entry.MunicipalityCode) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(
			"el municipio %q no corresponde al código postal %s; se esperaba %s (%s)",
			claimedMunicipality, postalCode, entry.MunicipalityName, entry.MunicipalityCode))
	}

	if claimedState == "" {
		result.Warnings = append(result.Warnings, "no se proporcionó estado para validar")
	}
	if claimedMunicipality == "" {
		result.Warnings = append(result.Warnings, "no se proporcionó municipio para validar")
	}

	return result, nil
}

// Neighborhoods returns the settlements registered for a postal code, for
// callers that only need the list (form autocomplete). Resolution and caching
// behave exactly as Resolve.
func (r *Resolver) Neighborhoods(ctx context.Context, postalCode string) ([]Neighborhood, error) {
	entry, err := r.Resolve(ctx, postalCode)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.Neighborhoods, nil
}

// ClearCache empties the in-memory cache
func (r *Resolver) ClearCache() {
	r.cache.clear()
}

// CacheSize returns the number of cached entries
func (r *Resolver) CacheSize() int {
	return r.cache.len()
}

func matchesNameOrCode(claimed, name, code string) bool {
	return standardize.Equal(claimed, name) || standardize.Equal(claimed, code)
}

// lookupPrimary builds an entry from the denormalized table: administrative
// fields from the first row, neighborhoods from the full set.
func (r *Resolver) lookupPrimary(ctx context.Context, postalCode string) (*CatalogEntry, error) {
	rows, err := r.store.PrimaryRows(ctx, postalCode)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	first := rows[0]
	entry := &CatalogEntry{
		PostalCode:       first.PostalCode,
		StateCode:        first.StateCode,
		StateName:        first.StateName,
		MunicipalityCode: first.MunicipalityCode,
		MunicipalityName: first.MunicipalityName,
		Locality:         first.Locality.String,
		Zone:             first.Zone.String,
	}
	for _, row := range rows {
		entry.Neighborhoods = append(entry.Neighborhoods, Neighborhood{
			Name:           row.Neighborhood,
			SettlementType: row.SettlementType,
		})
	}
	return entry, nil
}

// lookupSecondary builds an entry from the code-only table, joining names from
// the state and municipality catalogs and neighborhoods from the settlements
// catalog.
func (r *Resolver) lookupSecondary(ctx context.Context, postalCode string) (*CatalogEntry, error) {
	row, err := r.store.SecondaryRow(ctx, postalCode)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	stateName, err := r.store.StateName(ctx, row.StateCode)
	if err != nil {
		return nil, err
	}
	municipalityName, err := r.store.MunicipalityName(ctx, row.StateCode, row.MunicipalityCode)
	if err != nil {
		return nil, err
	}

	entry := &CatalogEntry{
		PostalCode:       row.PostalCode,
		StateCode:        row.StateCode,
		StateName:        stateName,
		MunicipalityCode: row.MunicipalityCode,
		MunicipalityName: municipalityName,
		Locality:         row.Locality.String,
		Zone:             row.Zone.String,
	}

	neighborhoods, err := r.store.Neighborhoods(ctx, postalCode)
	if err != nil {
		return nil, err
	}
	for _, n := range neighborhoods {
		entry.Neighborhoods = append(entry.Neighborhoods, Neighborhood{
			Name:           n.Name,
			SettlementType: n.SettlementType,
		})
	}
	return entry, nil
}

func redisKey(postalCode string) string {
	return "catalog:postal_code:" + postalCode
}

func (r *Resolver) redisGet(ctx context.Context, postalCode string) *CatalogEntry {
	if r.redis == nil {
		return nil
	}
	data, err := r.redis.Get(ctx, redisKey(postalCode)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("Redis cache read failed", zap.Error(err))
		}
		return nil
	}
	var entry CatalogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.logger.Warn("Failed to decode cached catalog entry", zap.Error(err))
		return nil
	}
	return &entry
}

func (r *Resolver) redisSet(ctx context.Context, entry *CatalogEntry) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	// Postal-code mappings are static; no expiry.
	if err := r.redis.Set(ctx, redisKey(entry.PostalCode), data, 0).Err(); err != nil {
		r.logger.Warn("Redis cache write failed", zap.Error(err))
	}
}
