package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fallback_table.yaml
var defaultFallbackYAML []byte

// FallbackEntry is a static stand-in result. Key is the token that matched
// the query and is empty for the default entry.
type FallbackEntry struct {
	Key          string                `json:"key,omitempty"`
	Keys         []string              `json:"keys,omitempty"`
	Name         string                `json:"name"`
	Geo          Geo                   `json:"geo"`
	Raw          RawIndicatorRecord    `json:"raw"`
	Scores       NormalizedScoreVector `json:"scores"`
	StoredScores bool                  `json:"stored_scores"`
	Default      bool                  `json:"default"`
}

// Location returns the entry as a resolved location.
func (e FallbackEntry) Location() ResolvedLocation {
	geo := e.Geo
	return ResolvedLocation{
		DisplayName:  e.Name,
		FullName:     e.Name,
		Geo:          &geo,
		CanonicalKey: e.Key,
	}
}

// Vector returns a copy of the entry's scores.
func (e FallbackEntry) Vector() NormalizedScoreVector {
	out := make(NormalizedScoreVector, len(e.Scores))
	copy(out, e.Scores)
	return out
}

type fallbackFile struct {
	Entries []fallbackFileEntry `yaml:"entries"`
}

type fallbackFileEntry struct {
	Keys    []string                         `yaml:"keys"`
	Name    string                           `yaml:"name"`
	Lat     float64                          `yaml:"lat"`
	Lon     float64                          `yaml:"lon"`
	Default bool                             `yaml:"default"`
	Raw     map[Schema]map[Indicator]float64 `yaml:"raw"`
	Scores  map[Schema][]float64             `yaml:"scores"`
}

// FallbackTable is the process-wide, read-only table of stand-in results for
// one schema.
type FallbackTable struct {
	normalizer *Normalizer
	entries    []FallbackEntry
	def        FallbackEntry
}

// DefaultFallbackTable loads the embedded table.
func DefaultFallbackTable(n *Normalizer) (*FallbackTable, error) {
	return LoadFallbackTable(defaultFallbackYAML, n)
}

// LoadFallbackTableFile loads a table from path, or the embedded table when
// path is empty.
func LoadFallbackTableFile(path string, n *Normalizer) (*FallbackTable, error) {
	if path == "" {
		return DefaultFallbackTable(n)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback table: %w", err)
	}
	return LoadFallbackTable(data, n)
}

// LoadFallbackTable parses YAML table data. Entries without stored scores for
// the normalizer's schema are scored through the normalizer. Exactly one
// default entry is required.
func LoadFallbackTable(data []byte, n *Normalizer) (*FallbackTable, error) {
	if n == nil {
		return nil, errors.New("fallback table requires a normalizer")
	}
	var f fallbackFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fallback table: %w", err)
	}

	t := &FallbackTable{normalizer: n}
	seen := make(map[string]string)
	defaults := 0
	for i, fe := range f.Entries {
		entry, err := buildFallbackEntry(fe, n)
		if err != nil {
			return nil, fmt.Errorf("fallback entry %d (%q): %w", i, fe.Name, err)
		}
		if entry.Default {
			defaults++
			t.def = entry
			continue
		}
		for _, k := range entry.Keys {
			if prev, dup := seen[k]; dup {
				return nil, fmt.Errorf("fallback key %q used by both %q and %q", k, prev, entry.Name)
			}
			seen[k] = entry.Name
		}
		t.entries = append(t.entries, entry)
	}
	switch defaults {
	case 0:
		return nil, errors.New("fallback table has no default entry")
	case 1:
	default:
		return nil, fmt.Errorf("fallback table has %d default entries, want 1", defaults)
	}
	return t, nil
}

func buildFallbackEntry(fe fallbackFileEntry, n *Normalizer) (FallbackEntry, error) {
	schema := n.Schema()
	if strings.TrimSpace(fe.Name) == "" {
		return FallbackEntry{}, errors.New("name is required")
	}
	geo, err := NewGeo(fe.Lat, fe.Lon)
	if err != nil {
		return FallbackEntry{}, err
	}

	entry := FallbackEntry{Name: fe.Name, Geo: geo, Default: fe.Default}
	for _, k := range fe.Keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return FallbackEntry{}, errors.New("empty key")
		}
		entry.Keys = append(entry.Keys, k)
	}
	if !fe.Default && len(entry.Keys) == 0 {
		return FallbackEntry{}, errors.New("non-default entry needs at least one key")
	}

	axes := n.Axes()
	known := make(map[Indicator]bool, len(axes))
	for _, a := range axes {
		known[a.Indicator] = true
	}
	raw := NewRawIndicatorRecord(schema)
	for ind, v := range fe.Raw[schema] {
		if !known[ind] {
			return FallbackEntry{}, fmt.Errorf("indicator %q is not part of schema %s", ind, schema)
		}
		raw.Set(ind, v)
	}
	entry.Raw = raw

	stored, ok := fe.Scores[schema]
	if !ok {
		entry.Scores = n.Normalize(raw)
		return entry, nil
	}
	if len(stored) != len(axes) {
		return FallbackEntry{}, fmt.Errorf("%d stored scores, schema %s has %d axes", len(stored), schema, len(axes))
	}
	entry.Scores = make(NormalizedScoreVector, len(axes))
	for i, a := range axes {
		v := stored[i]
		if math.IsNaN(v) || v < 0 || v > 100 {
			return FallbackEntry{}, fmt.Errorf("stored score for %s out of range: %v", a.Indicator, v)
		}
		entry.Scores[i] = Score{Axis: a.Indicator, Label: a.Label, Value: v}
	}
	entry.StoredScores = true
	return entry, nil
}

// Schema reports the schema the table was scored for.
func (t *FallbackTable) Schema() Schema { return t.normalizer.Schema() }

// Lookup returns the first entry, in declaration order, with a key contained
// in the lowercased, trimmed query, or the default entry.
func (t *FallbackTable) Lookup(query string) FallbackEntry {
	if e, ok := t.Match(query); ok {
		return e
	}
	return t.Default()
}

// Match is Lookup without the default: it reports false when no key matches.
func (t *FallbackTable) Match(query string) (FallbackEntry, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return FallbackEntry{}, false
	}
	for _, e := range t.entries {
		for _, k := range e.Keys {
			if strings.Contains(q, k) {
				e.Key = k
				e.Scores = e.Vector()
				return e, true
			}
		}
	}
	return FallbackEntry{}, false
}

// Default returns the designated default entry.
func (t *FallbackTable) Default() FallbackEntry {
	d := t.def
	d.Scores = d.Vector()
	return d
}

// Entries returns all keyed entries followed by the default.
func (t *FallbackTable) Entries() []FallbackEntry {
	out := make([]FallbackEntry, 0, len(t.entries)+1)
	for _, e := range t.entries {
		e.Scores = e.Vector()
		out = append(out, e)
	}
	return append(out, t.Default())
}

// Validate re-normalizes each entry's raw values and reports every stored
// score that differs from the computed one by more than tolerance.
func (t *FallbackTable) Validate(tolerance float64) []error {
	var errs []error
	for _, e := range t.Entries() {
		if !e.StoredScores {
			continue
		}
		computed := t.normalizer.Normalize(e.Raw)
		for i, s := range e.Scores {
			if diff := math.Abs(s.Value - computed[i].Value); diff > tolerance {
				errs = append(errs, fmt.Errorf("%s: %s stored %.1f, computed %.1f",
					e.Name, s.Axis, s.Value, computed[i].Value))
			}
		}
	}
	return errs
}
