package domain

import "regexp"

// BackendNamePattern constrains backend identifiers.
const BackendNamePattern = `^[A-Za-z0-9_-]+$`

var backendNamePattern = regexp.MustCompile(BackendNamePattern)

// ValidBackendName reports whether name is usable as a backend identifier.
// Backend names become tool ID prefixes, so the charset stays conservative.
func ValidBackendName(name string) bool {
	return backendNamePattern.MatchString(name)
}

// Settings is the validated daemon configuration.
type Settings struct {
	Backends              []Registration
	ConnectTimeoutSeconds int
	ExecuteTimeoutSeconds int
	MockMode              bool
	SeedDemoTools         bool
	WatchConfig           bool
	StorePath             string
	Gating                GatingSettings
	Advisor               AdvisorSettings
	Embedding             EmbeddingSettings
	Observability         ObservabilitySettings
}

// GatingSettings selects the no-filter provisioning order.
type GatingSettings struct {
	Policy string
}

// AdvisorSettings configures the optional LLM-backed gating policy.
type AdvisorSettings struct {
	Enabled      bool
	Provider     string
	Model        string
	APIKey       string
	APIKeyEnvVar string
	BaseURL      string
	MaxTools     int
}

// EmbeddingSettings configures the optional remote embedder for discovery.
type EmbeddingSettings struct {
	Enabled        bool
	Provider       string
	Model          string
	APIKey         string
	APIKeyEnvVar   string
	BaseURL        string
	TimeoutSeconds int
}

// ObservabilitySettings configures the metrics and health HTTP listener.
type ObservabilitySettings struct {
	ListenAddress string
	EnableMetrics bool
	EnableHealthz bool
}
