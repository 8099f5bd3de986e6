// Package mcp exposes the index over the Model Context Protocol (MCP).
//
// Three tools are registered:
//   - index_directory: start indexing a directory; returns at once
//   - indexing_status: state and outstanding chunk count of a directory
//   - search_directory: nearest chunks of an indexed directory to a query
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries only protocol messages.
//
// # Tool: index_directory
//
//	{"name": "index_directory", "arguments": {"path": "/path/to/project"}}
//
//	{"code": 0, "status": "indexing", "job_id": "..."}
//
// A code of -32002 means a job for the directory was already running and
// the reply describes that job.
//
// # Tool: indexing_status
//
//	{"name": "indexing_status", "arguments": {"path": "/path/to/project"}}
//
//	{"status": "indexing", "outstanding": 42}
//
// Status is one of idle, indexing, completed, failed.
//
// # Tool: search_directory
//
//	{"name": "search_directory", "arguments": {"path": "/path/to/project", "query": "retry with backoff", "n": 5}}
//
//	{
//	  "code": 0,
//	  "message": "2 results",
//	  "results": [
//	    {"id": "9f2c...", "path": "/path/to/project/retry.go", "start_byte": 120, "end_byte": 940, "similarity": 0.83}
//	  ]
//	}
//
// Caller errors are reported in code and message rather than as protocol
// errors: -32003 not indexed, -32004 empty query, -32602 invalid n.
// Malformed arguments and bad paths on index_directory are protocol errors
// carrying an MCPError code.
package mcp
