package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrEmptyQuery is returned for blank input. It is input validation and is
// rejected before the pipeline runs.
var ErrEmptyQuery = errors.New("please enter a location")

// LocationQuery is the trimmed, non-empty text a user submitted.
type LocationQuery string

// NewLocationQuery trims s and rejects empty input.
func NewLocationQuery(s string) (LocationQuery, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyQuery
	}
	return LocationQuery(s), nil
}

func (q LocationQuery) String() string { return string(q) }

// Key is the lowercase, trimmed form used for fallback matching.
func (q LocationQuery) Key() string {
	return strings.ToLower(strings.TrimSpace(string(q)))
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewGeo rejects NaN and infinities and validates latitude in [-90, 90] and longitude in [-180, 180].
func NewGeo(lat, lon float64) (Geo, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Geo{}, fmt.Errorf("coordinate (%v, %v) is not a finite number", lat, lon)
	}
	if lat < -90 || lat > 90 {
		return Geo{}, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Geo{}, fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	return Geo{Lat: lat, Lon: lon}, nil
}

// ResolvedLocation is a geocoded place. Geo is nil when no coordinates are
// known, so latitude and longitude are always present together or not at all.
type ResolvedLocation struct {
	DisplayName  string `json:"display_name"`
	FullName     string `json:"full_name,omitempty"`
	Geo          *Geo   `json:"geo,omitempty"`
	CanonicalKey string `json:"canonical_key,omitempty"`
}

// HasCoordinates reports whether the location carries a coordinate pair.
func (l ResolvedLocation) HasCoordinates() bool {
	return l.Geo != nil
}

// shortName returns the first comma-separated segment of a geocoder display
// name, falling back to the whole trimmed string.
func shortName(displayName string) string {
	first, _, _ := strings.Cut(displayName, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return strings.TrimSpace(displayName)
	}
	return first
}

// NewResolvedLocation builds a location from a geocoder display name and a
// validated coordinate pair.
func NewResolvedLocation(displayName string, geo Geo) ResolvedLocation {
	return ResolvedLocation{
		DisplayName: shortName(displayName),
		FullName:    strings.TrimSpace(displayName),
		Geo:         &geo,
	}
}
