package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kwindex/kwindex/internal/container"
	"github.com/kwindex/kwindex/internal/output"
)

func newIndexInfoCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index-info <file>",
		Short: "Show an index sidecar's configuration and column statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataPath := args[0]
			adapter := resolveAdapter(dataPath)

			reader, err := container.OpenReader(cmd.Context(), adapter, dataPath+".index")
			if err != nil {
				return withExitCode(1, err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reader.Header)
			}

			out := output.New(cmd.OutOrStdout())
			h := reader.Header
			out.Statusf("", "source size: %d bytes", h.Source.Size)
			if h.Source.ETag != "" {
				out.Statusf("", "source etag: %s", h.Source.ETag)
			}
			out.Statusf("", "false positive rate: %.4f", h.Config.FalsePositiveRate)
			out.Statusf("", "chunk size: %d", h.Config.ChunkSize)
			out.Statusf("", "delimiter table version: %d", h.Config.DelimiterTableVersion)
			out.Statusf("", "columns: %d", len(h.ColumnPool))
			for _, c := range h.ColumnPool {
				out.Statusf("", "  [%d] %s", c.ID, c.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output index info as JSON")

	return cmd
}
