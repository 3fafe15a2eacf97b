package gateway

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DiscoverTool returns the MCP tool definition for discover_tools.
func DiscoverTool() mcp.Tool {
	return mcp.Tool{
		Name:        "discover_tools",
		Description: "Search the gateway catalog for tools relevant to the current task. Provide a natural-language query (and optionally extra conversation context), narrow with tags, and cap the result count with limit; results come back ranked with relevance scores. Call this before provision_tools or execute_tool.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural-language description of the task you need a tool for.",
				},
				"context": map[string]any{
					"type":        "string",
					"description": "Additional conversation context to refine the ranking.",
				},
				"tags": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Restrict candidates to tools sharing at least one of these tags.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results, between 1 and 50. Defaults to 10.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// ProvisionTool returns the MCP tool definition for provision_tools.
func ProvisionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "provision_tools",
		Description: "Select a bounded set of catalog tools for active use. Pass explicit toolIds from discover_tools results, or omit them to let the gating policy pick; maxTools caps the count and contextTokens caps the summed token estimate. The response lists full tool definitions plus aggregate cost metadata.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"toolIds": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Specific tool IDs to provision, in priority order.",
				},
				"maxTools": map[string]any{
					"type":        "integer",
					"description": "Maximum number of tools to select.",
				},
				"contextTokens": map[string]any{
					"type":        "integer",
					"description": "Token budget the selection's estimated tokens must fit within.",
				},
			},
			"required": []string{},
		},
	}
}

// ExecuteTool returns the MCP tool definition for execute_tool.
func ExecuteTool() mcp.Tool {
	return mcp.Tool{
		Name:        "execute_tool",
		Description: "Invoke a catalog tool on its backend server and return the backend's result verbatim. Use the toolId exactly as returned by discover_tools or provision_tools, with arguments matching the tool's parameter schema.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"toolId": map[string]any{
					"type":        "string",
					"description": "Catalog tool ID, e.g. context7_resolve-library-id.",
				},
				"arguments": map[string]any{
					"type":        "object",
					"description": "Arguments forwarded to the tool, matching its parameter schema.",
				},
			},
			"required": []string{"toolId"},
		},
	}
}

// RegisterTool returns the MCP tool definition for register_tool.
func RegisterTool() mcp.Tool {
	return mcp.Tool{
		Name:        "register_tool",
		Description: "Manually add a tool record to the catalog, for tools that no connected backend advertises. Omit id to derive it from server and name. Registered tools are discoverable immediately; execution still requires a live backend of the same server name.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Catalog ID. Defaults to {server}_{name}.",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "Tool name as the backend knows it.",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "What the tool does. Tools without one are hidden from discovery.",
				},
				"parameters": map[string]any{
					"type":        "object",
					"description": "JSON Schema of the tool's input.",
				},
				"server": map[string]any{
					"type":        "string",
					"description": "Backend server that owns the tool. Defaults to custom.",
				},
				"tags": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Capability tags used for discovery filtering.",
				},
				"estimatedTokens": map[string]any{
					"type":        "integer",
					"description": "Token cost estimate. Derived from the definition when omitted.",
				},
			},
			"required": []string{"name"},
		},
	}
}

// AddBackendTool returns the MCP tool definition for add_backend.
func AddBackendTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_backend",
		Description: "Register a new MCP backend server, connect to it, and pull its tools into the catalog in one step. The command is spawned as a stdio subprocess. Registration is persisted even when the first connect fails, so a later restart retries it.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Backend name, letters, digits, underscore or dash only.",
				},
				"command": map[string]any{
					"type":        "string",
					"description": "Executable to spawn, e.g. npx.",
				},
				"args": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Command arguments.",
				},
				"env": map[string]any{
					"type":        "object",
					"description": "Extra environment variables for the subprocess.",
				},
			},
			"required": []string{"name", "command"},
		},
	}
}

// ListBackendsTool returns the MCP tool definition for list_backends.
func ListBackendsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_backends",
		Description: "List every registered backend with its connection state, cached tool count, and last connection error if any.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	}
}

// ClearCatalogTool returns the MCP tool definition for clear_catalog.
func ClearCatalogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_catalog",
		Description: "Remove every tool from the catalog and reset the provisioned set. Backend sessions stay connected; re-run discovery against them to repopulate. Intended for administrative cleanup and test hygiene.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []string{},
		},
	}
}
