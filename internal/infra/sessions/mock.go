package sessions

import "github.com/modelcontextprotocol/go-sdk/mcp"

const mockModeReason = "transport disabled (mock mode)"

// mockTools synthesizes static descriptors for well-known backends so
// discovery keeps functioning without a live dependency. Unknown backend
// names get an empty list.
func mockTools(backend string) []*mcp.Tool {
	if backend != "context7" {
		return nil
	}
	return []*mcp.Tool{
		{
			Name:        "resolve-library-id",
			Description: "Resolves package/product name to Context7-compatible library ID",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"libraryName": map[string]any{"type": "string"},
				},
			},
		},
		{
			Name:        "get-library-docs",
			Description: "Fetches up-to-date docs for a library",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"context7CompatibleLibraryID": map[string]any{"type": "string"},
				},
			},
		},
	}
}
