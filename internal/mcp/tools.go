package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ctxpack/internal/contextpack"
	"github.com/dshills/ctxpack/internal/format"
	"github.com/dshills/ctxpack/internal/project"
	"github.com/dshills/ctxpack/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound = -32001 // Specified path is not a readable directory
	ErrorCodeEmptyDiff       = -32002 // Diff touches no indexed symbol
	ErrorCodeIndexFailed     = -32003 // Project could not be indexed
	ErrorCodeEmptySymbol     = -32004 // Symbol parameter is empty
	ErrorCodeAmbiguousEntry  = -32005 // Symbol matches more than one definition
)

const (
	maxDepth      = 10
	defaultFormat = format.JSON
	budgetUnset   = -1
)

// packArgs are the parameters shared by every pack tool
type packArgs struct {
	project  string
	depth    int
	budget   int
	language string
	format   format.Format
}

// handleGetRelevantContext handles the get_relevant_context tool invocation
func (s *Server) handleGetRelevantContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	common, err := parsePackArgs(args)
	if err != nil {
		return nil, err
	}
	symbol, err := requireSymbol(args)
	if err != nil {
		return nil, err
	}

	return s.runPack(ctx, common, func(svc *contextpack.Service, req contextpack.Request) (*types.PackResult, error) {
		req.Entry = symbol
		req.AllowAmbiguous = getBoolDefault(args, "allow_ambiguous", false)
		return svc.GetRelevantContext(ctx, req)
	})
}

// handleGetDiffContext handles the get_diff_context tool invocation
func (s *Server) handleGetDiffContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	common, err := parsePackArgs(args)
	if err != nil {
		return nil, err
	}

	diff, ok := args["diff"].(string)
	if !ok || diff == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "diff parameter is required", map[string]interface{}{
			"param":  "diff",
			"reason": "missing or empty",
		})
	}

	return s.runPack(ctx, common, func(svc *contextpack.Service, req contextpack.Request) (*types.PackResult, error) {
		req.Diff = []byte(diff)
		return svc.GetDiffContext(ctx, req)
	})
}

// handleGetSymbolContextPack handles the get_symbol_context_pack tool invocation
func (s *Server) handleGetSymbolContextPack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	common, err := parsePackArgs(args)
	if err != nil {
		return nil, err
	}
	symbol, err := requireSymbol(args)
	if err != nil {
		return nil, err
	}

	return s.runPack(ctx, common, func(svc *contextpack.Service, req contextpack.Request) (*types.PackResult, error) {
		req.Entry = symbol
		req.AllowAmbiguous = getBoolDefault(args, "allow_ambiguous", false)
		req.SessionID = getStringDefault(args, "session_id", "")
		return svc.GetSymbolContextPack(ctx, req)
	})
}

// runPack opens the project, runs one pack operation and renders the result
func (s *Server) runPack(ctx context.Context, args packArgs, run func(*contextpack.Service, contextpack.Request) (*types.PackResult, error)) (*mcp.CallToolResult, error) {
	p, err := project.Open(ctx, args.project, project.Options{Language: args.language, Logger: s.logger})
	if err != nil {
		return nil, newMCPError(ErrorCodeIndexFailed, "failed to open project", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			s.logger.Warn("failed to close project", "project", args.project, "error", cerr)
		}
	}()

	req := contextpack.Request{
		Depth:  p.Config.Depth,
		Budget: p.Config.TokenBudget(),
	}
	if args.depth > 0 {
		req.Depth = args.depth
	}
	if args.budget != budgetUnset {
		req.Budget = types.TokenBudget(args.budget)
	}

	res, err := run(p.Service, req)
	if errors.Is(err, contextpack.ErrEmptyDiff) {
		return nil, newMCPError(ErrorCodeEmptyDiff, "diff touches no indexed symbol", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to build context pack", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if res.Ambiguous != nil {
		return ambiguousResult(res.Ambiguous), nil
	}

	text, err := format.String(res, args.format)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to render context pack", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.logger.Debug("context pack built",
		"project", p.Root,
		"slices", len(res.Pack.Slices),
		"tokens", res.Pack.BudgetUsed,
		"cache_hit", p.CacheHit)

	return mcp.NewToolResultText(text), nil
}

// ambiguousResult reports an ambiguous entry as a tool error so the agent
// can retry with a qualified name
func ambiguousResult(amb *types.AmbiguousResult) *mcp.CallToolResult {
	response := map[string]interface{}{
		"error_code": ErrorCodeAmbiguousEntry,
		"code":       amb.Code,
		"message":    fmt.Sprintf("%q matches %d symbols; pass a qualified name or allow_ambiguous", amb.Token, len(amb.Candidates)),
		"token":      amb.Token,
		"candidates": amb.Candidates,
	}
	result := mcp.NewToolResultText(formatJSON(response))
	result.IsError = true
	return result
}

// parsePackArgs validates the parameters every pack tool accepts
func parsePackArgs(args map[string]interface{}) (packArgs, error) {
	path, ok := args["project"].(string)
	if !ok || path == "" {
		return packArgs{}, newMCPError(ErrorCodeInvalidParams, "project parameter is required", map[string]interface{}{
			"param":  "project",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrNotDirectory) {
			code = ErrorCodeProjectNotFound
		}
		return packArgs{}, newMCPError(code, "invalid project path", map[string]interface{}{
			"param":  "project",
			"reason": err.Error(),
		})
	}

	depth := getIntDefault(args, "depth", 0)
	if depth < 0 || depth > maxDepth {
		return packArgs{}, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("depth must be between 1 and %d", maxDepth), map[string]interface{}{
			"param": "depth",
			"value": depth,
		})
	}

	budget := budgetUnset
	if _, present := args["budget"]; present {
		budget = getIntDefault(args, "budget", 0)
		if budget < 0 {
			return packArgs{}, newMCPError(ErrorCodeInvalidParams, "budget must not be negative", map[string]interface{}{
				"param": "budget",
				"value": budget,
			})
		}
	}

	language := getStringDefault(args, "language", "")
	if language == "auto" {
		language = ""
	}

	f, err := format.Parse(getStringDefault(args, "format", string(defaultFormat)))
	if err != nil {
		return packArgs{}, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
			"param":  "format",
			"reason": err.Error(),
		})
	}

	return packArgs{
		project:  path,
		depth:    depth,
		budget:   budget,
		language: language,
		format:   f,
	}, nil
}

// requireSymbol extracts the non-empty symbol parameter
func requireSymbol(args map[string]interface{}) (string, error) {
	symbol, ok := args["symbol"].(string)
	if !ok || symbol == "" {
		return "", newMCPError(ErrorCodeEmptySymbol, "symbol parameter is required and cannot be empty", map[string]interface{}{
			"param":  "symbol",
			"reason": "missing or empty",
		})
	}
	return symbol, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a project path is an absolute, readable directory
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

// formatJSON formats data as JSON string
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault gets a boolean value with a default
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault gets an integer value with a default
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault gets a string value with a default
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation errors
var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
