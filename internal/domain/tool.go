package domain

import "encoding/json"

// Tool is the canonical catalog record for one backend tool.
//
// ID is globally unique and immutable after creation; the "{backend}_{rawName}"
// convention keeps identically named tools from different backends apart.
// Description must be non-nil for the tool to be searchable; a tool without a
// description stays in the catalog but is excluded from discovery.
type Tool struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     *string         `json:"description"`
	Parameters      json.RawMessage `json:"parameters,omitempty"`
	Server          string          `json:"server,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	EstimatedTokens int             `json:"estimatedTokens"`
	UsageCount      int             `json:"usageCount"`
}

// Searchable reports whether the tool qualifies for discovery scoring.
func (t Tool) Searchable() bool {
	return t.ID != "" && t.Name != "" && t.Description != nil
}

// DescriptionText returns the description or "" when absent.
func (t Tool) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// HasTag reports whether tag is present on the tool.
func (t Tool) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// Desc wraps a literal description so it can sit in a *string field.
func Desc(s string) *string {
	return &s
}

// ToolMatch is one discovery result. Never persisted.
type ToolMatch struct {
	Tool        Tool     `json:"tool"`
	Score       float64  `json:"score"`
	MatchedTags []string `json:"matchedTags"`
}

// Route maps a catalog tool ID to the backend and remote tool name that
// implement it. A Route can always be rebuilt from the Tool record.
type Route struct {
	Server     string `json:"server"`
	RemoteName string `json:"remoteName"`
}

// RawTool is the normalized form of a backend tool descriptor. Every
// descriptor, whatever shape the backend advertised it in, passes through
// exactly one adapter into this form before the router touches it.
type RawTool struct {
	Name        string
	Description *string
	InputSchema json.RawMessage
}
