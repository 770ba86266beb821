package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ej-indicator-service/internal/bootstrap"
	"github.com/couchcryptid/ej-indicator-service/internal/config"
	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
)

var analyzeFlags struct {
	offline bool
	schema  string
	compact bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <location>",
	Short: "Analyze one location and print the result as JSON",
	Long: `Run the resolve, fetch and normalize pipeline once and print the
AnalysisResult. Upstream failures still print a FALLBACK result.

Usage:
  ejctl analyze "Chicago, IL"
  ejctl analyze 60601 --offline          # fallback table only
  ejctl analyze Houston --schema screening`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.BoolVar(&analyzeFlags.offline, "offline", false, "Skip live lookups and answer from the fallback table")
	f.StringVar(&analyzeFlags.schema, "schema", "", "Indicator schema: air_quality or screening (default: $INDICATOR_SCHEMA)")
	f.BoolVar(&analyzeFlags.compact, "compact", false, "Print single-line JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	q, err := domain.NewLocationQuery(strings.Join(args, " "))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(analyzeFlags.schema)
	if err != nil {
		return err
	}
	if analyzeFlags.offline {
		cfg.LiveLookupsEnabled = false
	}

	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel, "text")
	core, err := bootstrap.NewCore(cfg, observability.NewMetricsForTesting(), logger)
	if err != nil {
		return err
	}

	res := core.Assembler.Analyze(cmd.Context(), q)
	return writeJSON(cmd, res, analyzeFlags.compact)
}

// loadConfig reads the environment configuration, overriding the schema
// when one is given.
func loadConfig(schema string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if schema != "" {
		s, err := domain.ParseSchema(schema)
		if err != nil {
			return nil, err
		}
		cfg.Schema = s
	}
	return cfg, nil
}

func writeJSON(cmd *cobra.Command, v any, compact bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
