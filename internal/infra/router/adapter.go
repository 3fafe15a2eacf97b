package router

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"toolgate/internal/domain"
)

// normalizeDescriptor is the single point where backend descriptor shapes
// become the canonical raw form; nothing downstream inspects SDK types. A
// descriptor without a usable description normalizes to a nil Description,
// which discovery skips.
func normalizeDescriptor(tool *mcp.Tool) domain.RawTool {
	if tool == nil {
		return domain.RawTool{}
	}
	raw := domain.RawTool{Name: tool.Name}
	if tool.Description != "" {
		raw.Description = domain.Desc(tool.Description)
	}
	if tool.InputSchema != nil {
		if encoded, err := json.Marshal(tool.InputSchema); err == nil && string(encoded) != "null" {
			raw.InputSchema = encoded
		}
	}
	return raw
}

// buildTool turns a normalized descriptor into a catalog record owned by
// backend. Caller guarantees Name and Description are present.
func buildTool(backend string, raw domain.RawTool) domain.Tool {
	parameters := raw.InputSchema
	if len(parameters) == 0 {
		parameters = json.RawMessage(`{}`)
	}
	description := *raw.Description
	return domain.Tool{
		ID:              backend + "_" + raw.Name,
		Name:            raw.Name,
		Description:     raw.Description,
		Parameters:      parameters,
		Server:          backend,
		Tags:            ExtractTags(description),
		EstimatedTokens: EstimateTokens(description, parameters),
	}
}
