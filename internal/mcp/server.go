package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/auden/internal/indexer"
	"github.com/dshills/auden/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "auden"
	// ServerVersion is the current server version
	ServerVersion = "0.1.0"
)

// Engine is what the tools call into. *auden.Index implements it.
type Engine interface {
	StartIndexing(path string) (*indexer.Job, bool, error)
	IndexingStatus(ctx context.Context, path string) (indexer.Status, error)
	SearchDirectory(ctx context.Context, path string, n int, query string) ([]types.SearchResult, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	engine Engine
	logger *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:    mcpServer,
		engine: engine,
		logger: logger.With("component", "mcp"),
	}
	s.registerTools()

	return s
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed.
// Logs must not be written to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("serving MCP", "name", ServerName, "version", ServerVersion)
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexDirectoryTool(), s.handleIndexDirectory)
	s.mcp.AddTool(indexingStatusTool(), s.handleIndexingStatus)
	s.mcp.AddTool(searchDirectoryTool(), s.handleSearchDirectory)
}
