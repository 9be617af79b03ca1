package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kwindex/kwindex/internal/output"
	"github.com/kwindex/kwindex/pkg/keywords"
)

func newSearchCmd() *cobra.Command {
	var columns []string
	var noVerify bool
	var acceptStale bool

	cmd := &cobra.Command{
		Use:   "search <file> <query>",
		Short: "Search a Parquet file's keyword index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataPath, query := args[0], args[1]
			adapter := resolveAdapter(dataPath)

			verify := true
			if cfg, err := loadEffectiveConfig(dataPath); err == nil {
				verify = cfg.Verify
			}
			if cmd.Flags().Changed("no-verify") {
				verify = !noVerify
			}

			opts := keywords.SearchOptions{
				Columns:     columns,
				Verify:      verify,
				AcceptStale: acceptStale,
			}

			result, err := keywords.Search(cmd.Context(), adapter, dataPath, query, opts, logger)
			if err != nil {
				return withExitCode(1, err)
			}

			out := output.New(cmd.OutOrStdout())

			if result.NoMatch {
				out.Status("", fmt.Sprintf("no matches for %q", query))
				return withExitCode(3, fmt.Errorf("no matches for %q", query))
			}

			printMatch(out, "verified", result.Verified)
			printMatch(out, "candidate (unverified against source)", result.Candidate)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Restrict the search to these columns")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Disable the source-file fallback for inconclusive phrase matches (overrides the verify config value)")
	cmd.Flags().BoolVar(&acceptStale, "accept-stale", false, "Skip the freshness check against the current data file")

	return cmd
}

func printMatch(out *output.Writer, label string, m *keywords.Match) {
	if m == nil {
		return
	}
	out.Statusf("", "%s: %d occurrence(s) across %d column(s)", label, m.TotalOccurrences, len(m.Columns))
	for _, col := range m.Columns {
		rows := m.RowsByColumn[col]
		out.Statusf("", "  %s: %d row(s)", col, len(rows))
		for _, r := range rows {
			out.Statusf("", "    row_group=%d row=%d", r.RowGroup, r.Row)
		}
	}
}
