// Package mcp implements the Model Context Protocol (MCP) server for ctxpack.
//
// The server exposes three tools to coding agents:
//   - get_relevant_context: an entry symbol and its callees, packed to a budget
//   - get_diff_context: the symbols a unified diff touches, their callers and callees
//   - get_symbol_context_pack: like get_relevant_context with callers, deduplicated per session
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The server is started via the serve command:
//
//	ctxpack serve
//
// Every call names its project by absolute path. The project is opened for
// the duration of the call: configuration is read from .ctxpack.yaml, the
// index is loaded from the snapshot cache or rebuilt, and the state database
// under the state directory records what each session has received.
//
// # Tool: get_symbol_context_pack
//
//	Request:
//	{
//	  "project": "/abs/path/to/project",
//	  "symbol": "pkg/server.go:Server.Start",
//	  "budget": 2000,
//	  "session_id": "optional-session-id"
//	}
//
//	Response:
//	{
//	  "session_id": "2f1c...",
//	  "slices": [{"id": "...", "representation": "full", "relevance": "entry", ...}],
//	  "signatures_only": [],
//	  "budget_used": 1840,
//	  "unchanged": [],
//	  "cache_stats": {"hits": 0, "misses": 6, "hit_rate": 0}
//	}
//
// Symbols the session already holds in their current form come back with
// representation "omitted" and are listed under "unchanged".
//
// # Errors
//
// Invalid parameters return JSON-RPC errors:
//   - -32602: Invalid params (missing project, bad depth, budget or format)
//   - -32603: Internal error
//   - -32001: Project path does not exist or is not a directory
//   - -32002: Diff touches no indexed symbol
//   - -32003: Project could not be indexed
//   - -32004: Empty symbol
//
// An ambiguous symbol is not a protocol error. The tool result is flagged
// IsError and carries error_code -32005 with the candidate ids, so the agent
// can retry with a qualified name or allow_ambiguous.
package mcp
