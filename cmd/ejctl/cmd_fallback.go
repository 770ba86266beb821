package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ej-indicator-service/internal/bootstrap"
	"github.com/couchcryptid/ej-indicator-service/internal/domain"
)

var fallbackFlags struct {
	file      string
	schema    string
	tolerance float64
}

var fallbackCmd = &cobra.Command{
	Use:   "fallback",
	Short: "Inspect and validate the fallback table",
}

var fallbackValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the fallback table loads and its stored scores match its raw values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := loadFallbackTable()
		if err != nil {
			return err
		}
		errs := table.Validate(fallbackFlags.tolerance)
		for _, e := range errs {
			fmt.Fprintln(cmd.OutOrStdout(), "FAIL", e)
		}
		if len(errs) > 0 {
			return fmt.Errorf("fallback table has %d score mismatches", len(errs))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK %d entries, schema %s, tolerance %.1f\n",
			len(table.Entries()), table.Schema(), fallbackFlags.tolerance)
		return nil
	},
}

var fallbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fallback entries with their keys and scores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := loadFallbackTable()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Name\tKeys\tLat\tLon\tScores\n")
		fmt.Fprintf(w, "----\t----\t---\t---\t------\n")
		for _, e := range table.Entries() {
			keys := strings.Join(e.Keys, ",")
			if e.Default {
				keys = "(default)"
			}
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%s\n", e.Name, keys, e.Geo.Lat, e.Geo.Lon, formatScores(e.Scores))
		}
		return w.Flush()
	},
}

func init() {
	pf := fallbackCmd.PersistentFlags()
	pf.StringVar(&fallbackFlags.file, "file", "", "Fallback table YAML (default: $FALLBACK_TABLE_PATH or the embedded table)")
	pf.StringVar(&fallbackFlags.schema, "schema", "", "Indicator schema (default: $INDICATOR_SCHEMA)")
	fallbackValidateCmd.Flags().Float64Var(&fallbackFlags.tolerance, "tolerance", 1, "Allowed difference between stored and computed scores")

	fallbackCmd.AddCommand(fallbackValidateCmd)
	fallbackCmd.AddCommand(fallbackListCmd)
}

func loadFallbackTable() (*domain.FallbackTable, error) {
	cfg, err := loadConfig(fallbackFlags.schema)
	if err != nil {
		return nil, err
	}
	if fallbackFlags.file != "" {
		cfg.FallbackTablePath = fallbackFlags.file
	}
	n, err := bootstrap.NewNormalizer(cfg)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewFallbackTable(cfg, n)
}

func formatScores(v domain.NormalizedScoreVector) string {
	parts := make([]string, len(v))
	for i, s := range v {
		parts[i] = fmt.Sprintf("%s=%.1f", s.Axis, s.Value)
	}
	return strings.Join(parts, " ")
}
