package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/output"
	"github.com/kwindex/kwindex/pkg/keywords"
)

func newIndexCmd() *cobra.Command {
	var excluded []string
	var fpr float64
	var chunkSize int
	var bloomThreshold int

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Build a keyword index sidecar for a Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataPath := args[0]

			cfg, err := loadEffectiveConfig(dataPath)
			if err != nil {
				return withExitCode(2, err)
			}

			opts := keywords.BuildOptions{
				Excluded:              cfg.ExcludedColumns,
				FalsePositiveRate:     cfg.FalsePositiveRate,
				ChunkSize:             cfg.ChunkSize,
				BloomThreshold:        cfg.BloomThreshold,
				DelimiterTableVersion: uint16(cfg.DelimiterTableVersion),
			}
			if len(excluded) > 0 {
				opts.Excluded = excluded
			}
			if cmd.Flags().Changed("fpr") {
				opts.FalsePositiveRate = fpr
			}
			if cmd.Flags().Changed("chunk-size") {
				opts.ChunkSize = chunkSize
			}
			if cmd.Flags().Changed("bloom-threshold") {
				opts.BloomThreshold = bloomThreshold
			}

			out := output.New(cmd.OutOrStdout())
			adapter := resolveAdapter(dataPath)

			if err := keywords.BuildAndSaveIndex(cmd.Context(), adapter, dataPath, opts, logger); err != nil {
				if kwerrors.GetCode(err) == kwerrors.ErrCodeConfigInvalid {
					return withExitCode(2, err)
				}
				return withExitCode(1, err)
			}

			out.Success(fmt.Sprintf("Built index for %s", dataPath))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&excluded, "exclude", nil, "String columns to exclude from shredding")
	cmd.Flags().Float64Var(&fpr, "fpr", 0, "Bloom filter false positive rate (default 0.01)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Keywords per directory chunk (default 4096)")
	cmd.Flags().IntVar(&bloomThreshold, "bloom-threshold", 0, "Distinct keyword count at or above which a column uses a bloom filter")

	return cmd
}
