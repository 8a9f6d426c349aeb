package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// commonPackProperties are shared by every pack tool
func commonPackProperties() map[string]interface{} {
	return map[string]interface{}{
		"project": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the project root",
		},
		"depth": map[string]interface{}{
			"type":        "integer",
			"description": "Call-graph hops to follow from the entry or diff (default from config, usually 2)",
			"minimum":     1,
			"maximum":     10,
		},
		"budget": map[string]interface{}{
			"type":        "integer",
			"description": "Token budget for the pack. Omit for the configured default; 0 keeps only the top signature",
		},
		"language": map[string]interface{}{
			"type":        "string",
			"description": "Restrict indexing to one language",
			"enum":        []string{"auto", "go", "python"},
			"default":     "auto",
		},
		"format": map[string]interface{}{
			"type":        "string",
			"description": "Output format",
			"enum":        []string{"json", "text"},
			"default":     "json",
		},
	}
}

// getRelevantContextTool returns the tool definition for get_relevant_context
func getRelevantContextTool() mcp.Tool {
	props := commonPackProperties()
	props["symbol"] = map[string]interface{}{
		"type":        "string",
		"description": "Entry symbol: path:Qualified.Name, file:Name, Qualified.Name or a raw name",
	}
	props["allow_ambiguous"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Pick the lexicographically first match when the symbol is ambiguous",
		"default":     false,
	}

	return mcp.Tool{
		Name:        "get_relevant_context",
		Description: "Return a token-budgeted context pack for a symbol and the functions it calls",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"project", "symbol"},
		},
	}
}

// getDiffContextTool returns the tool definition for get_diff_context
func getDiffContextTool() mcp.Tool {
	props := commonPackProperties()
	props["diff"] = map[string]interface{}{
		"type":        "string",
		"description": "Unified diff (git diff output) against the project's current files",
	}

	return mcp.Tool{
		Name:        "get_diff_context",
		Description: "Return a context pack for the symbols a diff touches, their callers and callees",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"project", "diff"},
		},
	}
}

// getSymbolContextPackTool returns the tool definition for get_symbol_context_pack
func getSymbolContextPackTool() mcp.Tool {
	props := commonPackProperties()
	props["symbol"] = map[string]interface{}{
		"type":        "string",
		"description": "Entry symbol: path:Qualified.Name, file:Name, Qualified.Name or a raw name",
	}
	props["allow_ambiguous"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Pick the lexicographically first match when the symbol is ambiguous",
		"default":     false,
	}
	props["session_id"] = map[string]interface{}{
		"type":        "string",
		"description": "Session to deduplicate against. Symbols already delivered unchanged are omitted. A new id is returned when absent",
	}

	return mcp.Tool{
		Name:        "get_symbol_context_pack",
		Description: "Return a delta-aware context pack for a symbol with its callers and callees",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"project", "symbol"},
		},
	}
}
