package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
	"github.com/kwindex/kwindex/internal/output"
	"github.com/kwindex/kwindex/pkg/keywords"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check whether a file's keyword index is still fresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataPath := args[0]
			adapter := resolveAdapter(dataPath)
			out := output.New(cmd.OutOrStdout())

			err := keywords.ValidateIndex(cmd.Context(), adapter, dataPath)
			if err == nil {
				out.Success(fmt.Sprintf("index for %s is fresh", dataPath))
				return nil
			}

			switch kwerrors.GetCode(err) {
			case kwerrors.ErrCodeStaleIndex:
				out.Warning(fmt.Sprintf("index for %s is stale", dataPath))
				return withExitCode(4, err)
			case kwerrors.ErrCodeMissingIndex:
				out.Error(fmt.Sprintf("no index found for %s", dataPath))
				return withExitCode(5, err)
			default:
				return withExitCode(1, err)
			}
		},
	}

	return cmd
}
