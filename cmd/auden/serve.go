package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/auden/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve index_directory, indexing_status and search_directory as MCP tools on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		idx, err := openIndex()
		if err != nil {
			return err
		}
		defer idx.Close()

		server := mcp.NewServer(idx, logger)
		err = server.Serve(ctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			logger.Info("server stopped")
			return nil
		}
		return err
	},
}
