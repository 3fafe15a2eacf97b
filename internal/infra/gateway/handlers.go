package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/discovery"
	"toolgate/internal/infra/gating"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/telemetry"
)

// Handler failures surface as IsError tool results, never as protocol
// errors: the calling agent should always see the taxonomy code and message
// as content it can reason about.

func (s *Server) handleDiscover(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const op = "gateway.discover_tools"
	var params discoverParams
	if err := decodeParams(req, &params); err != nil {
		return errorResult(domain.E(domain.CodeValidation, op, "malformed arguments", err)), nil
	}
	if strings.TrimSpace(params.Query) == "" {
		return errorResult(domain.E(domain.CodeValidation, op, "", domain.ErrEmptyQuery)), nil
	}
	if params.Limit != 0 && (params.Limit < domain.MinSearchLimit || params.Limit > domain.MaxSearchLimit) {
		message := fmt.Sprintf("limit must be between %d and %d", domain.MinSearchLimit, domain.MaxSearchLimit)
		return errorResult(domain.E(domain.CodeValidation, op, message, nil)), nil
	}

	matches, err := s.discovery.Search(ctx, discovery.Request{
		Query:   params.Query,
		Context: params.Context,
		Tags:    params.Tags,
		Limit:   params.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	result := discoverResult{
		Tools:     make([]discoveredTool, 0, len(matches)),
		QueryID:   uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, match := range matches {
		result.Tools = append(result.Tools, discoveredTool{
			ToolID:          match.Tool.ID,
			Name:            match.Tool.Name,
			Description:     match.Tool.DescriptionText(),
			Score:           match.Score,
			MatchedTags:     match.MatchedTags,
			EstimatedTokens: match.Tool.EstimatedTokens,
			Server:          match.Tool.Server,
		})
	}
	telemetry.LoggerWithRequest(ctx, s.logger).Debug("discover served",
		telemetry.QueryIDField(result.QueryID),
		telemetry.CountField(len(result.Tools)))
	return textResult(result), nil
}

func (s *Server) handleProvision(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const op = "gateway.provision_tools"
	var params provisionParams
	if err := decodeParams(req, &params); err != nil {
		return errorResult(domain.E(domain.CodeValidation, op, "malformed arguments", err)), nil
	}
	if params.MaxTools < 0 {
		return errorResult(domain.E(domain.CodeValidation, op, "maxTools must not be negative", nil)), nil
	}
	if params.ContextTokens < 0 {
		return errorResult(domain.E(domain.CodeValidation, op, "contextTokens must not be negative", nil)), nil
	}

	selection := s.gating.Select(ctx, gating.Request{
		ToolIDs:     params.ToolIDs,
		MaxTools:    params.MaxTools,
		TokenBudget: params.ContextTokens,
	})

	result := provisionResult{
		Tools: make([]provisionedTool, 0, len(selection.Tools)),
		Metadata: provisionMetadata{
			TotalTokens:   selection.TotalTokens,
			TotalTools:    selection.TotalTools,
			GatingApplied: true,
			Policy:        selection.Policy,
		},
	}
	for _, tool := range selection.Tools {
		s.router.Provision(tool.ID)
		result.Tools = append(result.Tools, provisionedTool{
			Name:        tool.Name,
			Description: tool.DescriptionText(),
			Parameters:  wireParameters(tool.Parameters),
			TokenCount:  tool.EstimatedTokens,
			Server:      tool.Server,
		})
	}
	return textResult(result), nil
}

func (s *Server) handleExecute(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const op = "gateway.execute_tool"
	var params executeParams
	if err := decodeParams(req, &params); err != nil {
		return errorResult(domain.E(domain.CodeValidation, op, "malformed arguments", err)), nil
	}
	if strings.TrimSpace(params.ToolID) == "" {
		return errorResult(domain.E(domain.CodeValidation, op, "toolId is required", nil)), nil
	}

	// The backend result passes through verbatim, IsError included.
	result, err := s.router.Execute(ctx, params.ToolID, params.Arguments)
	if err != nil {
		return errorResult(err), nil
	}
	return result, nil
}

func (s *Server) handleRegister(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const op = "gateway.register_tool"
	var params registerParams
	if err := decodeParams(req, &params); err != nil {
		return errorResult(domain.E(domain.CodeValidation, op, "malformed arguments", err)), nil
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return errorResult(domain.E(domain.CodeValidation, op, "name is required", nil)), nil
	}

	server := strings.TrimSpace(params.Server)
	if server == "" {
		server = "custom"
	}
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = server + "_" + name
	}
	parameters := params.Parameters
	if len(parameters) == 0 {
		parameters = json.RawMessage(`{}`)
	}

	description := ""
	if params.Description != nil {
		description = *params.Description
	}
	tags := params.Tags
	if len(tags) == 0 {
		tags = router.ExtractTags(description)
	}
	estimated := params.EstimatedTokens
	if estimated <= 0 {
		estimated = router.EstimateTokens(description, parameters)
	}

	tool := domain.Tool{
		ID:              id,
		Name:            name,
		Description:     params.Description,
		Parameters:      parameters,
		Server:          server,
		Tags:            tags,
		EstimatedTokens: estimated,
	}
	if err := s.router.Catalog().Add(tool); err != nil {
		return errorResult(err), nil
	}
	// Re-registering an ID can change its text, so the embedding goes stale.
	s.discovery.InvalidateTool(id)

	telemetry.LoggerWithRequest(ctx, s.logger).Info("tool registered",
		telemetry.ToolField(id),
		telemetry.BackendField(server))
	return textResult(registerResult{Status: "success", ToolID: id}), nil
}

func (s *Server) handleAddBackend(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const op = "gateway.add_backend"
	var params addBackendParams
	if err := decodeParams(req, &params); err != nil {
		return errorResult(domain.E(domain.CodeValidation, op, "malformed arguments", err)), nil
	}
	name := strings.TrimSpace(params.Name)
	if !domain.ValidBackendName(name) {
		message := fmt.Sprintf("backend name must match %s", domain.BackendNamePattern)
		return errorResult(domain.E(domain.CodeValidation, op, message, nil)), nil
	}
	if strings.TrimSpace(params.Command) == "" {
		return errorResult(domain.E(domain.CodeValidation, op, "command is required", nil)), nil
	}

	config := domain.BackendConfig{
		Command: params.Command,
		Args:    params.Args,
		Env:     params.Env,
	}
	if s.registrar != nil {
		if err := s.registrar.Put(domain.Registration{Name: name, Config: config}); err != nil {
			telemetry.LoggerWithRequest(ctx, s.logger).Warn("backend registration not persisted",
				telemetry.BackendField(name),
				zap.Error(err))
		}
	}

	if err := s.sessions.Connect(ctx, name, config); err != nil {
		return textResult(addBackendResult{
			Status:          "error",
			Message:         fmt.Sprintf("registered %s but connect failed: %v", name, err),
			Server:          name,
			ToolsDiscovered: []string{},
		}), nil
	}

	s.router.DiscoverBackend(name)
	discovered := s.backendToolNames(name)
	return textResult(addBackendResult{
		Status:          "success",
		Message:         fmt.Sprintf("Added %s with %d tools", name, len(discovered)),
		Server:          name,
		ToolsDiscovered: discovered,
		TotalTools:      len(discovered),
	}), nil
}

func (s *Server) handleListBackends(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statuses := s.sessions.Statuses()
	result := listBackendsResult{Backends: make([]backendSummary, 0, len(statuses))}
	for _, status := range statuses {
		result.Backends = append(result.Backends, backendSummary{
			Name:      status.Name,
			Connected: status.Connected,
			ToolCount: status.ToolCount,
			LastError: status.LastError,
		})
	}
	return textResult(result), nil
}

func (s *Server) handleClearCatalog(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog := s.router.Catalog()
	tools := catalog.List()
	for _, tool := range tools {
		s.discovery.InvalidateTool(tool.ID)
	}
	catalog.Clear()
	s.router.Reset()

	telemetry.LoggerWithRequest(ctx, s.logger).Info("catalog cleared", telemetry.CountField(len(tools)))
	return textResult(clearCatalogResult{Status: "success", ClearedTools: len(tools)}), nil
}

func (s *Server) backendToolNames(backend string) []string {
	names := make([]string, 0)
	for _, tool := range s.router.Catalog().List() {
		if tool.Server == backend {
			names = append(names, tool.Name)
		}
	}
	sort.Strings(names)
	return names
}

func decodeParams(req *mcp.CallToolRequest, dst any) error {
	raw := req.Params.Arguments
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// wireParameters guarantees a usable schema on the wire: tools registered
// without one advertise the permissive object schema instead of an empty
// document.
func wireParameters(parameters json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(parameters))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return parameters
}

func textResult(v any) *mcp.CallToolResult {
	payload, err := json.Marshal(v)
	if err != nil {
		return errorResult(domain.E(domain.CodeExecution, "gateway.encode_response", "", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
