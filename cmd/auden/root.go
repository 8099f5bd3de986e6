package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/auden/internal/config"
	"github.com/dshills/auden/pkg/auden"
)

var (
	cfgFile string
	dataDir string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "auden",
	Short: "Semantic search over local directories",
	Long: `Auden indexes source and documentation files into embedding vectors
and answers similarity queries scoped to a directory.

Example usage:
  auden index .                        # Index current directory
  auden search -n 5 "retry backoff"    # Search it
  auden serve                          # Serve MCP tools on stdio`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		cfg, err = config.Resolve(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// stdout belongs to command output and the MCP protocol
		logger = config.NewLogger(cfg.Logging, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "index data directory (default is ~/.auden)")

	rootCmd.AddCommand(serveCmd, indexCmd, statusCmd, searchCmd, versionCmd)
}

func openIndex() (*auden.Index, error) {
	return auden.New(cfg.DataDir, auden.WithConfig(cfg), auden.WithLogger(logger))
}

// pathArg returns the directory argument, defaulting to the working directory
func pathArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return os.Getwd()
}
