package domain

import (
	"fmt"
	"math"
)

// Ceilings maps each axis to the raw value that scores 100.
type Ceilings map[Indicator]float64

// DefaultCeilings returns the built-in ceilings for schema.
func DefaultCeilings(schema Schema) Ceilings {
	switch schema {
	case SchemaAirQuality:
		return Ceilings{PM25: 35, PM10: 50, Ozone: 80, NO2: 40, SO2: 20}
	case SchemaScreening:
		c := Ceilings{}
		for _, ind := range schema.Indicators() {
			c[ind] = 100
		}
		c[PopulationDensity] = 10000
		return c
	default:
		return Ceilings{}
	}
}

// Score is one axis value in a normalized vector.
type Score struct {
	Axis  Indicator `json:"axis"`
	Label string    `json:"label"`
	Value float64   `json:"value"`
}

// NormalizedScoreVector is an ordered score list whose length and axis order
// are fixed by the schema.
type NormalizedScoreVector []Score

// Values returns the bare scores in axis order.
func (v NormalizedScoreVector) Values() []float64 {
	out := make([]float64, len(v))
	for i, s := range v {
		out[i] = s.Value
	}
	return out
}

// Value returns the score for ind, or 0 when the axis is absent.
func (v NormalizedScoreVector) Value(ind Indicator) float64 {
	for _, s := range v {
		if s.Axis == ind {
			return s.Value
		}
	}
	return 0
}

// Headline holds the dashboard summary tiles for an air-quality result.
type Headline struct {
	FineParticles    float64 `json:"fine_particles"`
	HealthRiskPct    int     `json:"health_risk_pct"`
	PollutionPct     int     `json:"pollution_pct"`
	OzoneLevel       float64 `json:"ozone_level"`
	FineParticleUnit string  `json:"fine_particle_unit"`
	OzoneUnit        string  `json:"ozone_unit"`
}

// Normalizer scales raw records of one schema to [0, 100].
type Normalizer struct {
	schema   Schema
	axes     []Axis
	ceilings Ceilings
}

// NewNormalizer validates that every axis of schema has a positive finite
// ceiling. Axes absent from ceilings take the schema default.
func NewNormalizer(schema Schema, ceilings Ceilings) (*Normalizer, error) {
	if _, err := ParseSchema(string(schema)); err != nil {
		return nil, err
	}
	defaults := DefaultCeilings(schema)
	resolved := make(Ceilings, len(defaults))
	for _, ind := range schema.Indicators() {
		c, ok := ceilings[ind]
		if !ok {
			c = defaults[ind]
		}
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("ceiling for %s must be a positive number, got %v", ind, c)
		}
		resolved[ind] = c
	}
	return &Normalizer{schema: schema, axes: schema.Axes(), ceilings: resolved}, nil
}

// Schema reports which schema this normalizer accepts.
func (n *Normalizer) Schema() Schema { return n.schema }

// Axes returns the axis list in vector order.
func (n *Normalizer) Axes() []Axis {
	out := make([]Axis, len(n.axes))
	copy(out, n.axes)
	return out
}

// Ceiling returns the configured ceiling for ind.
func (n *Normalizer) Ceiling(ind Indicator) float64 { return n.ceilings[ind] }

// Normalize maps raw onto the axis vector. It is pure and total: missing
// indicators score 0, and each score is clamp(raw/ceiling*100, 0, 100)
// rounded to one decimal.
func (n *Normalizer) Normalize(raw RawIndicatorRecord) NormalizedScoreVector {
	out := make(NormalizedScoreVector, len(n.axes))
	for i, a := range n.axes {
		out[i] = Score{
			Axis:  a.Indicator,
			Label: a.Label,
			Value: scale(raw.Get(a.Indicator), n.ceilings[a.Indicator]),
		}
	}
	return out
}

// Headline derives the summary tiles. It returns nil for schemas without
// particulate readings.
func (n *Normalizer) Headline(raw RawIndicatorRecord) *Headline {
	if n.schema != SchemaAirQuality {
		return nil
	}
	pm25 := sanitizeMeasurement(raw.Get(PM25))
	pm10 := sanitizeMeasurement(raw.Get(PM10))
	return &Headline{
		FineParticles:    pm25,
		HealthRiskPct:    percentOf(pm25, n.ceilings[PM25]),
		PollutionPct:     percentOf(pm10, n.ceilings[PM10]),
		OzoneLevel:       sanitizeMeasurement(raw.Get(Ozone)),
		FineParticleUnit: "µg/m³",
		OzoneUnit:        "ppb",
	}
}

func scale(v, ceiling float64) float64 {
	v = sanitizeMeasurement(v)
	s := v / ceiling * 100
	if s > 100 {
		return 100
	}
	return math.Round(s*10) / 10
}

// maxHeadlinePct bounds headline percentages so absurd readings still fit an int.
const maxHeadlinePct = 1_000_000

// percentOf is round(v/ceiling*100), unclamped above 100 but capped at
// maxHeadlinePct.
func percentOf(v, ceiling float64) int {
	pct := v / ceiling * 100
	if math.IsNaN(pct) || pct < 0 {
		return 0
	}
	if pct > maxHeadlinePct {
		return maxHeadlinePct
	}
	return int(math.Round(pct))
}
