package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

// LoadCeilings resolves normalization ceilings for schema: built-in defaults,
// then an optional flat YAML file (indicator: ceiling), then CEILING_<AXIS>
// environment overrides such as CEILING_PM25=40.
func LoadCeilings(schema domain.Schema, path string) (domain.Ceilings, error) {
	v := viper.New()
	for ind, c := range domain.DefaultCeilings(schema) {
		v.SetDefault(string(ind), c)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read ceilings file: %w", err)
		}
	}

	v.SetEnvPrefix("CEILING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	ceilings := make(domain.Ceilings)
	var errs []string
	for _, ind := range schema.Indicators() {
		key := string(ind)
		c := v.GetFloat64(key)
		if c <= 0 {
			errs = append(errs, fmt.Sprintf("ceiling %s must be positive, got %q", key, v.GetString(key)))
			continue
		}
		ceilings[ind] = c
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("ceilings validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return ceilings, nil
}
