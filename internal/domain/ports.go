package domain

import "context"

// Resolver turns free text into a geocoded location.
type Resolver interface {
	Resolve(ctx context.Context, query LocationQuery) (ResolvedLocation, error)
}

// IndicatorSource fetches raw indicators for a coordinate pair.
type IndicatorSource interface {
	Name() string
	Schema() Schema
	Fetch(ctx context.Context, lat, lon float64) (RawIndicatorRecord, error)
}
