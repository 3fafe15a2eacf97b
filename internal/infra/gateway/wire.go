package gateway

import (
	"encoding/json"
)

// Wire shapes for the meta-tool surface. Field names follow the catalog's
// external contract, so they stay camelCase regardless of Go conventions.

type discoverParams struct {
	Query   string   `json:"query"`
	Context string   `json:"context,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

type discoveredTool struct {
	ToolID          string   `json:"toolId"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Score           float64  `json:"score"`
	MatchedTags     []string `json:"matchedTags"`
	EstimatedTokens int      `json:"estimatedTokens"`
	Server          string   `json:"server"`
}

type discoverResult struct {
	Tools     []discoveredTool `json:"tools"`
	QueryID   string           `json:"queryId"`
	Timestamp string           `json:"timestamp"`
}

type provisionParams struct {
	ToolIDs       []string `json:"toolIds,omitempty"`
	MaxTools      int      `json:"maxTools,omitempty"`
	ContextTokens int      `json:"contextTokens,omitempty"`
}

type provisionedTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	TokenCount  int             `json:"tokenCount"`
	Server      string          `json:"server"`
}

type provisionMetadata struct {
	TotalTokens   int    `json:"totalTokens"`
	TotalTools    int    `json:"totalTools"`
	GatingApplied bool   `json:"gatingApplied"`
	Policy        string `json:"policy,omitempty"`
}

type provisionResult struct {
	Tools    []provisionedTool `json:"tools"`
	Metadata provisionMetadata `json:"metadata"`
}

type executeParams struct {
	ToolID    string         `json:"toolId"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type registerParams struct {
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name"`
	Description     *string         `json:"description,omitempty"`
	Parameters      json.RawMessage `json:"parameters,omitempty"`
	Server          string          `json:"server,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	EstimatedTokens int             `json:"estimatedTokens,omitempty"`
}

type registerResult struct {
	Status string `json:"status"`
	ToolID string `json:"toolId"`
}

type addBackendParams struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

type addBackendResult struct {
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	Server          string   `json:"server"`
	ToolsDiscovered []string `json:"toolsDiscovered"`
	TotalTools      int      `json:"totalTools"`
}

type backendSummary struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"toolCount"`
	LastError string `json:"lastError,omitempty"`
}

type listBackendsResult struct {
	Backends []backendSummary `json:"backends"`
}

type clearCatalogResult struct {
	Status       string `json:"status"`
	ClearedTools int    `json:"clearedTools"`
}
