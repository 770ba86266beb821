package domain

import "fmt"

// Indicator names one environmental burden metric tracked through the pipeline.
type Indicator string

// Air-quality indicators (Open-Meteo "current" block).
const (
	PM25  Indicator = "pm25"
	PM10  Indicator = "pm10"
	Ozone Indicator = "o3"
	NO2   Indicator = "no2"
	SO2   Indicator = "so2"
)

// Screening indicators (EJScreen attributes).
const (
	AsthmaScore          Indicator = "aiScore"
	PMScore              Indicator = "pmScore"
	DiseaseScore         Indicator = "diseaseScore"
	TrafficScore         Indicator = "ptdeScore"
	LowIncomeScore       Indicator = "lowIncomeScore"
	PercentPersonOfColor Indicator = "percentPersonOfColor"
	PercentLowIncome     Indicator = "percentLowIncome"
	PercentMinority      Indicator = "percentMinority"
	PopulationDensity    Indicator = "populationDensity"
)

// Schema identifies which indicator set a record carries and a normalizer scores.
type Schema string

const (
	SchemaAirQuality Schema = "air_quality"
	SchemaScreening  Schema = "screening"
)

// Axis is one labelled position in a score vector.
type Axis struct {
	Indicator Indicator `json:"indicator"`
	Label     string    `json:"label"`
}

var schemaAxes = map[Schema][]Axis{
	SchemaAirQuality: {
		{Indicator: PM25, Label: "PM2.5 (Fine Particles)"},
		{Indicator: PM10, Label: "PM10 (Coarse Particles)"},
		{Indicator: Ozone, Label: "Ozone Level"},
		{Indicator: NO2, Label: "NO2 Emissions"},
		{Indicator: SO2, Label: "SO2 Emissions"},
	},
	SchemaScreening: {
		{Indicator: AsthmaScore, Label: "Asthma Rate"},
		{Indicator: PMScore, Label: "Particulate Matter"},
		{Indicator: DiseaseScore, Label: "Respiratory Hazard"},
		{Indicator: TrafficScore, Label: "Traffic Proximity"},
		{Indicator: LowIncomeScore, Label: "Linguistic Isolation"},
		{Indicator: PercentPersonOfColor, Label: "People of Color"},
		{Indicator: PercentLowIncome, Label: "Low Income"},
		{Indicator: PercentMinority, Label: "Minority"},
		{Indicator: PopulationDensity, Label: "Population Density"},
	},
}

// ParseSchema validates a schema name from configuration.
func ParseSchema(s string) (Schema, error) {
	schema := Schema(s)
	if _, ok := schemaAxes[schema]; !ok {
		return "", fmt.Errorf("unknown indicator schema %q (want %q or %q)", s, SchemaAirQuality, SchemaScreening)
	}
	return schema, nil
}

// Axes returns the schema's axes in vector order. The slice is a copy.
func (s Schema) Axes() []Axis {
	axes := schemaAxes[s]
	out := make([]Axis, len(axes))
	copy(out, axes)
	return out
}

// Indicators returns the schema's indicators in vector order.
func (s Schema) Indicators() []Indicator {
	axes := schemaAxes[s]
	out := make([]Indicator, len(axes))
	for i, a := range axes {
		out[i] = a.Indicator
	}
	return out
}
