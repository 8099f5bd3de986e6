package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDirectoryTool returns the tool definition for index_directory
func indexDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_directory",
		Description: "Start indexing a directory for semantic search. Returns immediately; poll indexing_status for progress.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to index",
				},
			},
			Required: []string{"path"},
		},
	}
}

// indexingStatusTool returns the tool definition for indexing_status
func indexingStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "indexing_status",
		Description: "Report the indexing state of a directory and how many chunks are still awaiting embedding",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory",
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchDirectoryTool returns the tool definition for search_directory
func searchDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_directory",
		Description: "Find the chunks of an indexed directory most similar to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed directory",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"n": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     defaultResults,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}
