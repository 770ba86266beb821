// Package bootstrap builds the analysis core from configuration. Both the
// service and the CLI start from here.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/ej-indicator-service/internal/adapter/ejscreen"
	"github.com/couchcryptid/ej-indicator-service/internal/adapter/nominatim"
	"github.com/couchcryptid/ej-indicator-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/ej-indicator-service/internal/analysis"
	"github.com/couchcryptid/ej-indicator-service/internal/config"
	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

// Core is the configured normalizer, fallback table and assembler.
type Core struct {
	Normalizer *domain.Normalizer
	Fallback   *domain.FallbackTable
	Assembler  *analysis.Assembler
}

// NewNormalizer loads ceilings for the configured schema.
func NewNormalizer(cfg *config.Config) (*domain.Normalizer, error) {
	ceilings, err := config.LoadCeilings(cfg.Schema, cfg.CeilingsPath)
	if err != nil {
		return nil, fmt.Errorf("load ceilings: %w", err)
	}
	n, err := domain.NewNormalizer(cfg.Schema, ceilings)
	if err != nil {
		return nil, fmt.Errorf("build normalizer: %w", err)
	}
	return n, nil
}

// NewFallbackTable loads the configured fallback table (embedded when no
// path is set) and scores it with n.
func NewFallbackTable(cfg *config.Config, n *domain.Normalizer) (*domain.FallbackTable, error) {
	table, err := domain.LoadFallbackTableFile(cfg.FallbackTablePath, n)
	if err != nil {
		return nil, fmt.Errorf("load fallback table: %w", err)
	}
	return table, nil
}

// NewSource returns the indicator source chain for the configured schema.
func NewSource(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*analysis.SourceChain, error) {
	var src domain.IndicatorSource
	switch cfg.Schema {
	case domain.SchemaScreening:
		src = ejscreen.NewClient(cfg.EJScreenURL, cfg.UpstreamTimeout, metrics, logger)
	default:
		src = openmeteo.NewClient(cfg.OpenMeteoURL, cfg.UpstreamTimeout, metrics, logger)
	}
	return analysis.NewSourceChain(cfg.Schema, logger, src)
}

// NewCore wires resolver, source, normalizer and fallback table into an
// Assembler. A fallback table without a default entry fails here.
func NewCore(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*Core, error) {
	n, err := NewNormalizer(cfg)
	if err != nil {
		return nil, err
	}
	table, err := NewFallbackTable(cfg, n)
	if err != nil {
		return nil, err
	}

	client := nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.UpstreamTimeout, metrics, logger)
	var resolver domain.Resolver = client
	if cfg.GeocodeCacheSize > 0 {
		resolver = nominatim.NewCachedResolver(client, cfg.GeocodeCacheSize)
	}

	source, err := NewSource(cfg, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("build indicator source: %w", err)
	}

	a, err := analysis.New(resolver, source, n, table, analysis.Options{
		StageTimeout: cfg.UpstreamTimeout,
		LiveLookups:  cfg.LiveLookupsEnabled,
	}, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("build assembler: %w", err)
	}
	return &Core{Normalizer: n, Fallback: table, Assembler: a}, nil
}
