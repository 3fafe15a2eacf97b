package gating

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

const defaultAdvisorModel = "gpt-4o-mini"

// AdvisorConfig selects the chat model behind the advisor policy.
type AdvisorConfig struct {
	Provider     string
	Model        string
	APIKey       string
	APIKeyEnvVar string
	BaseURL      string
	MaxTools     int
}

// Advisor asks a chat model to choose the provisioning set from the
// candidate catalog. It is a Ranker: any failure surfaces as an error and
// the engine falls back to its deterministic policy.
type Advisor struct {
	config  AdvisorConfig
	model   model.ToolCallingChatModel
	metrics domain.Metrics
	logger  *zap.Logger
}

// NewAdvisor creates the advisor and its chat model. The API key may be
// given inline or named via an environment variable.
func NewAdvisor(ctx context.Context, config AdvisorConfig, metrics domain.Metrics, logger *zap.Logger) (*Advisor, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}
	if config.Model == "" {
		config.Model = defaultAdvisorModel
	}

	chatModel, err := initializeModel(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("initialize model: %w", err)
	}

	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{
		config:  config,
		model:   chatModel,
		metrics: metrics,
		logger:  logger.Named("advisor"),
	}, nil
}

// initializeModel creates the chat model based on configuration.
func initializeModel(ctx context.Context, config AdvisorConfig) (model.ToolCallingChatModel, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		envVar := strings.TrimSpace(config.APIKeyEnvVar)
		if envVar == "" {
			return nil, fmt.Errorf("API key is required: set advisor.apiKey or advisor.apiKeyEnvVar")
		}
		apiKey = os.Getenv(envVar)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in env var %s", envVar)
		}
	}

	switch config.Provider {
	case "openai", "":
		cfg := &openai.ChatModelConfig{
			Model:  config.Model,
			APIKey: apiKey,
		}
		if config.BaseURL != "" {
			cfg.BaseURL = config.BaseURL
		}
		return openai.NewChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

// Rank asks the model for up to maxTools tool IDs out of candidates. IDs
// are validated against the candidate set; an unknown ID fails the whole
// ranking so the caller never provisions something the model invented.
func (a *Advisor) Rank(ctx context.Context, candidates []domain.Tool, maxTools int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	limit := maxTools
	if limit <= 0 {
		limit = a.config.MaxTools
	}
	if limit <= 0 {
		limit = domain.DefaultMaxTools
	}

	messages := []*schema.Message{
		schema.SystemMessage(advisorSystemPrompt),
		schema.UserMessage(buildAdvisorPrompt(candidates, limit)),
	}

	started := time.Now()
	response, err := a.model.Generate(ctx, messages)
	a.metrics.ObserveAdvisorLatency(a.config.Provider, a.config.Model, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("advisor generate: %w", err)
	}
	a.observeTokenUsage(response)

	ids, err := parseSelectedIDs(response.Content, candidates)
	if err != nil {
		return nil, err
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// buildAdvisorPrompt lists the candidates with their usage history.
func buildAdvisorPrompt(candidates []domain.Tool, limit int) string {
	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, tool := range candidates {
		fmt.Fprintf(&sb, "- %s (used %d times): %s\n", tool.ID, tool.UsageCount, tool.DescriptionText())
	}
	fmt.Fprintf(&sb, "\nSelect at most %d tools that give an agent the most useful working set.\n", limit)
	sb.WriteString("Return only a JSON array of tool ids. Do not include any other text.")
	return sb.String()
}

// parseSelectedIDs extracts tool IDs from the model response. Duplicates
// keep their first position; any ID outside the candidate set is an error.
func parseSelectedIDs(response string, candidates []domain.Tool) ([]string, error) {
	valid := make(map[string]bool, len(candidates))
	for _, tool := range candidates {
		valid[tool.ID] = true
	}

	var ids []string
	if err := json.Unmarshal([]byte(response), &ids); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	result := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	invalid := make([]string, 0)
	for _, id := range ids {
		if !valid[id] {
			invalid = append(invalid, id)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid tool ids: %s", strings.Join(invalid, ", "))
	}
	return result, nil
}

func (a *Advisor) observeTokenUsage(response *schema.Message) {
	if response == nil || response.ResponseMeta == nil || response.ResponseMeta.Usage == nil {
		return
	}
	tokens := response.ResponseMeta.Usage.TotalTokens
	if tokens <= 0 {
		return
	}
	a.metrics.ObserveAdvisorTokens(a.config.Provider, a.config.Model, tokens)
}

const advisorSystemPrompt = `You are a tool provisioning assistant. Given a list of available tools with usage history, select the subset that gives an agent the most useful working set within the stated limit.

Output only a JSON array of tool ids. Do not include any extra text or formatting.
Example: ["server_tool1", "server_tool2"]

Prefer tools with a track record of use and avoid near-duplicates of each other.`
