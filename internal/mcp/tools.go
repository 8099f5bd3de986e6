package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/auden/internal/indexer"
	"github.com/dshills/auden/internal/searcher"
	"github.com/dshills/auden/pkg/types"
)

// MCP error codes
const (
	CodeOK                      = 0
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Path does not exist or cannot be read
	ErrorCodeIndexingInProgress = -32002 // Informational: a job is already running
	ErrorCodeNotIndexed         = -32003 // Directory has never completed a pass
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const defaultResults = 10

// IndexReply answers index_directory
type IndexReply struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
}

// StatusReply answers indexing_status
type StatusReply struct {
	Status         string `json:"status"`
	Outstanding    int64  `json:"outstanding"`
	ChunksEmbedded int64  `json:"chunks_embedded,omitempty"`
	ChunksReused   int64  `json:"chunks_reused,omitempty"`
	ChunksFailed   int64  `json:"chunks_failed,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SearchReply answers search_directory
type SearchReply struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Results []ResultEntry `json:"results"`
}

// ResultEntry is one search hit on the wire
type ResultEntry struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	StartByte  int     `json:"start_byte"`
	EndByte    int     `json:"end_byte"`
	Similarity float64 `json:"similarity"`
}

// handleIndexDirectory handles the index_directory tool invocation
func (s *Server) handleIndexDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	if err := validatePath(path); err != nil {
		return nil, pathError(err)
	}

	job, started, err := s.engine.StartIndexing(path)
	if err != nil {
		if errors.Is(err, indexer.ErrRootUnreadable) {
			return nil, pathError(err)
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to start indexing", map[string]interface{}{
			"error": err.Error(),
		})
	}

	reply := IndexReply{
		Code:   CodeOK,
		Status: string(job.State()),
		JobID:  job.ID,
	}
	if !started {
		reply.Code = ErrorCodeIndexingInProgress
	}

	s.logger.Debug("index_directory", "path", path, "started", started, "job", job.ID)
	return mcp.NewToolResultText(formatJSON(reply)), nil
}

// handleIndexingStatus handles the indexing_status tool invocation
func (s *Server) handleIndexingStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	// A deleted root still has a status, so only the form is checked
	if !filepath.IsAbs(path) {
		return nil, pathError(ErrPathNotAbsolute)
	}

	status, err := s.engine.IndexingStatus(ctx, path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	reply := StatusReply{
		Status:         string(status.State),
		Outstanding:    status.Outstanding,
		ChunksEmbedded: status.ChunksEmbedded,
		ChunksReused:   status.ChunksReused,
		ChunksFailed:   status.ChunksFailed,
		Error:          status.Error,
	}
	return mcp.NewToolResultText(formatJSON(reply)), nil
}

// handleSearchDirectory handles the search_directory tool invocation.
// Caller errors are reported in the reply's code and message.
func (s *Server) handleSearchDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	query := getStringDefault(args, "query", "")
	n := getIntDefault(args, "n", defaultResults)

	results, err := s.engine.SearchDirectory(ctx, path, n, query)
	if err != nil {
		reply := SearchReply{
			Code:    searchErrorCode(err),
			Message: err.Error(),
			Results: []ResultEntry{},
		}
		return mcp.NewToolResultText(formatJSON(reply)), nil
	}

	reply := SearchReply{
		Code:    CodeOK,
		Message: fmt.Sprintf("%d results", len(results)),
		Results: toEntries(results),
	}
	return mcp.NewToolResultText(formatJSON(reply)), nil
}

func searchErrorCode(err error) int {
	switch {
	case errors.Is(err, searcher.ErrNotIndexed):
		return ErrorCodeNotIndexed
	case errors.Is(err, searcher.ErrEmptyQuery):
		return ErrorCodeEmptyQuery
	case errors.Is(err, searcher.ErrInvalidLimit):
		return ErrorCodeInvalidParams
	default:
		return ErrorCodeInternalError
	}
}

func toEntries(results []types.SearchResult) []ResultEntry {
	entries := make([]ResultEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, ResultEntry{
			ID:         r.ChunkID,
			Path:       r.Path,
			StartByte:  r.StartByte,
			EndByte:    r.EndByte,
			Similarity: r.Similarity,
		})
	}
	return entries
}

// Helper functions

func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	return path, nil
}

func pathError(err error) error {
	code := ErrorCodeInvalidParams
	if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrPathNotReadable) || errors.Is(err, indexer.ErrRootUnreadable) {
		code = ErrorCodePathNotFound
	}
	return newMCPError(code, "invalid path", map[string]interface{}{
		"param":  "path",
		"reason": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is a readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a reply as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
