package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawIndicatorRecord holds provider measurements in provider-native units,
// keyed by indicator. Every present value is finite, non-negative and rounded.
type RawIndicatorRecord struct {
	Schema   Schema                `json:"schema"`
	Provider string                `json:"provider,omitempty"`
	Values   map[Indicator]float64 `json:"values"`
}

// NewRawIndicatorRecord returns an empty record for schema.
func NewRawIndicatorRecord(schema Schema) RawIndicatorRecord {
	return RawIndicatorRecord{Schema: schema, Values: make(map[Indicator]float64)}
}

// Get returns the value for ind, or 0 when absent.
func (r RawIndicatorRecord) Get(ind Indicator) float64 {
	return r.Values[ind]
}

// Set stores a sanitized, rounded value.
func (r RawIndicatorRecord) Set(ind Indicator, v float64) {
	r.Values[ind] = math.Round(sanitizeMeasurement(v))
}

// sanitizeMeasurement maps NaN, infinities and negatives to 0.
func sanitizeMeasurement(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// FieldMapping binds one canonical indicator to a provider field.
//
// RequiresNonZero names a gate field: when set, the indicator only takes the
// provider value if the gate field is present and non-zero, otherwise it
// takes Default.
type FieldMapping struct {
	Indicator       Indicator
	Field           string
	Default         float64
	RequiresNonZero string
}

// FieldLookup returns a provider field as a number, and false when the field
// is absent or not numeric.
type FieldLookup func(field string) (float64, bool)

// ApplyFieldMappings builds a record from a provider payload. Every mapped
// indicator is present in the result.
func ApplyFieldMappings(schema Schema, mappings []FieldMapping, lookup FieldLookup) RawIndicatorRecord {
	rec := NewRawIndicatorRecord(schema)
	for _, m := range mappings {
		v := m.Default
		if m.RequiresNonZero != "" {
			if gate, ok := lookup(m.RequiresNonZero); !ok || gate == 0 {
				rec.Set(m.Indicator, v)
				continue
			}
		}
		if got, ok := lookup(m.Field); ok {
			v = got
		}
		rec.Set(m.Indicator, v)
	}
	return rec
}

// NumberFromJSON decodes a JSON number or a numeric JSON string. null,
// booleans, objects, unparsable strings and non-finite values such as "NaN"
// report false.
func NumberFromJSON(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// LookupJSONFields adapts a decoded JSON object to a FieldLookup.
func LookupJSONFields(fields map[string]json.RawMessage) FieldLookup {
	return func(field string) (float64, bool) {
		raw, ok := fields[field]
		if !ok {
			return 0, false
		}
		return NumberFromJSON(raw)
	}
}
