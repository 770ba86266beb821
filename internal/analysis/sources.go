package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

// SourceChain consults indicator providers of one schema in order and
// returns the first success. It implements domain.IndicatorSource.
type SourceChain struct {
	schema  domain.Schema
	sources []domain.IndicatorSource
	logger  *slog.Logger
}

// NewSourceChain rejects an empty chain and any provider whose schema
// differs from schema, so every record it returns has a fixed axis set.
func NewSourceChain(schema domain.Schema, logger *slog.Logger, sources ...domain.IndicatorSource) (*SourceChain, error) {
	if len(sources) == 0 {
		return nil, errors.New("source chain needs at least one provider")
	}
	for _, s := range sources {
		if s.Schema() != schema {
			return nil, fmt.Errorf("provider %s serves schema %s, chain is %s", s.Name(), s.Schema(), schema)
		}
	}
	return &SourceChain{schema: schema, sources: sources, logger: logger}, nil
}

func (c *SourceChain) Name() string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

func (c *SourceChain) Schema() domain.Schema { return c.schema }

// Fetch returns the first provider's successful record, tagged with the
// provider name, or the last provider's error.
func (c *SourceChain) Fetch(ctx context.Context, lat, lon float64) (domain.RawIndicatorRecord, error) {
	var lastErr error
	for _, s := range c.sources {
		rec, err := s.Fetch(ctx, lat, lon)
		if err == nil {
			if rec.Provider == "" {
				rec.Provider = s.Name()
			}
			return rec, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.logger.Debug("indicator provider failed, trying next", "provider", s.Name(), "error", err)
	}
	return domain.RawIndicatorRecord{}, lastErr
}
