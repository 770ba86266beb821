// Package domain models environmental-justice indicator analysis for a
// single user-supplied location.
//
// # Data Sources
//
// Locations are geocoded against an OpenStreetMap Nominatim search endpoint.
// Only the top candidate is used; its display_name is split on commas and the
// first segment becomes the short display name ("Chicago, Cook County,
// Illinois, United States" -> "Chicago").
//
// Indicator measurements come from one of two schemas:
//
//	air_quality  Open-Meteo air quality API, "current" block.
//	             pm25, pm10, o3, no2, so2 (µg/m³ as reported upstream;
//	             ozone is presented as ppb on the dashboard).
//	screening    EPA EJScreen mapper API, features[0].attributes.
//	             aiScore, pmScore, diseaseScore, ptdeScore, lowIncomeScore,
//	             percentPersonOfColor, percentLowIncome, percentMinority,
//	             populationDensity.
//
// The two schemas are not reconciled. A process normalizes exactly one of
// them, selected at startup, so the score vector keeps the same length and
// axis order for every analysis.
//
// # Ingestion Conventions
//
// Provider fields are mapped to indicators through static [FieldMapping]
// tables. A field that is absent, null, non-numeric, negative, NaN or
// infinite takes the mapping's default, which is 0 for every shipped
// mapping. Values are rounded to the nearest integer to match upstream
// reporting granularity. A missing field therefore reads the same as a
// genuinely clean measurement; this understates burden where upstream data
// is missing and is a known product ambiguity.
//
// # Normalization
//
// Each axis is scored as raw / ceiling * 100 and clamped to [0, 100]. The
// ceilings approximate elevated-concern thresholds and are configuration:
//
//	pm25  35 µg/m³   (24h PM2.5 NAAQS)
//	pm10  50 µg/m³   (WHO 24h guideline)
//	o3    80         (≈ 8h ozone NAAQS, ppb)
//	no2   40         (WHO annual guideline)
//	so2   20         (WHO 24h guideline, 2005)
//
// Screening indicators are already percentiles and use a ceiling of 100;
// population density uses 10000 people per square mile. This is a
// simplified proxy, not the official EJScreen index formula.
//
// # Fallback
//
// When geocoding or indicator retrieval fails, the result is taken from a
// static [FallbackTable] matched by lowercase substring containment against
// postal codes and city names. Unmatched queries get the table's default
// entry, so analysis always produces something presentable.
package domain
