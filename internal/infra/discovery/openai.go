package discovery

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// EmbedderConfig selects the remote embedding backend for semantic scoring.
type EmbedderConfig struct {
	Provider     string
	Model        string
	APIKey       string
	APIKeyEnvVar string
	BaseURL      string
	Timeout      time.Duration
}

// NewEmbedder creates the embedder based on configuration. The API key may
// be given inline or named via an environment variable.
func NewEmbedder(ctx context.Context, config EmbedderConfig) (embedding.Embedder, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		envVar := strings.TrimSpace(config.APIKeyEnvVar)
		if envVar == "" {
			return nil, fmt.Errorf("API key is required: set embedding.apiKey or embedding.apiKeyEnvVar")
		}
		apiKey = os.Getenv(envVar)
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in env var %s", envVar)
		}
	}

	model := config.Model
	if model == "" {
		model = defaultEmbeddingModel
	}

	switch config.Provider {
	case "openai", "":
		cfg := &openai.EmbeddingConfig{
			Model:  model,
			APIKey: apiKey,
		}
		if config.BaseURL != "" {
			cfg.BaseURL = config.BaseURL
		}
		if config.Timeout > 0 {
			cfg.Timeout = config.Timeout
		}
		return openai.NewEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Provider)
	}
}
