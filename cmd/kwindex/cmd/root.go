// Package cmd provides the CLI commands for kwindex.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kwindex/kwindex/internal/logging"
	"github.com/kwindex/kwindex/pkg/version"
)

var (
	debugMode      bool
	logger         *slog.Logger
	loggingCleanup func()
)

// NewRootCmd creates the root command for the kwindex CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kwindex",
		Short: "Pre-computed keyword index over Parquet columnar files",
		Long: `kwindex builds a compact sidecar index over a Parquet file's string
columns, and answers substring/phrase keyword queries against it without
scanning the source file row by row.`,
		Version:           version.Version,
		PersistentPreRunE: startLogging,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}
	root.SetVersionTemplate("kwindex version {{.Version}}\n")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "Write debug logs to ~/.kwindex/logs/")

	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newIndexInfoCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		logger = nil
		return nil
	}
	l, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	logger = l
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
