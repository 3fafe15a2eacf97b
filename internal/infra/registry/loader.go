package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"toolgate/internal/domain"
)

// Loader reads gateway settings from a YAML file.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("registry")}
}

func newSettingsViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setSettingsDefaults(v)
	return v
}

func setSettingsDefaults(v *viper.Viper) {
	v.SetDefault("connectTimeoutSeconds", domain.DefaultConnectTimeoutSeconds)
	v.SetDefault("executeTimeoutSeconds", domain.DefaultExecuteTimeoutSeconds)
	v.SetDefault("gating.policy", domain.DefaultGatingPolicy)
	v.SetDefault("advisor.maxTools", domain.DefaultMaxTools)
	v.SetDefault("embedding.timeoutSeconds", domain.DefaultEmbedTimeoutSeconds)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListen)
	v.SetDefault("observability.enableMetrics", true)
	v.SetDefault("observability.enableHealthz", true)
}

type rawSettings struct {
	Backends              []rawBackend             `mapstructure:"backends"`
	ConnectTimeoutSeconds int                      `mapstructure:"connectTimeoutSeconds"`
	ExecuteTimeoutSeconds int                      `mapstructure:"executeTimeoutSeconds"`
	MockMode              bool                     `mapstructure:"mockMode"`
	SeedDemoTools         bool                     `mapstructure:"seedDemoTools"`
	WatchConfig           bool                     `mapstructure:"watchConfig"`
	StorePath             string                   `mapstructure:"storePath"`
	Gating                rawGatingSettings        `mapstructure:"gating"`
	Advisor               rawModelSettings         `mapstructure:"advisor"`
	Embedding             rawModelSettings         `mapstructure:"embedding"`
	Observability         rawObservabilitySettings `mapstructure:"observability"`
}

type rawBackend struct {
	Name     string            `mapstructure:"name"`
	Command  string            `mapstructure:"command"`
	Args     []string          `mapstructure:"args"`
	Env      map[string]string `mapstructure:"env"`
	Disabled bool              `mapstructure:"disabled"`
}

type rawGatingSettings struct {
	Policy string `mapstructure:"policy"`
}

type rawModelSettings struct {
	Enabled        bool   `mapstructure:"enabled"`
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"apiKey"`
	APIKeyEnvVar   string `mapstructure:"apiKeyEnvVar"`
	BaseURL        string `mapstructure:"baseURL"`
	MaxTools       int    `mapstructure:"maxTools"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

type rawObservabilitySettings struct {
	ListenAddress string `mapstructure:"listenAddress"`
	EnableMetrics bool   `mapstructure:"enableMetrics"`
	EnableHealthz bool   `mapstructure:"enableHealthz"`
}

// Load reads, expands and validates the settings file at path. Validation
// collects every problem before failing so one pass fixes a whole file.
func (l *Loader) Load(ctx context.Context, path string) (domain.Settings, error) {
	if path == "" {
		return domain.Settings{}, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read config: %w", err)
	}

	expanded, missing, err := expandEnv(data)
	if err != nil {
		return domain.Settings{}, err
	}
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config",
			zap.String("path", path),
			zap.Strings("missing", missing),
		)
	}

	v := newSettingsViper()
	if err := v.ReadConfig(bytes.NewBuffer(expanded)); err != nil {
		return domain.Settings{}, fmt.Errorf("parse config: %w", err)
	}

	var raw rawSettings
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Settings{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}

	settings, errs := normalizeSettings(raw)
	if len(errs) > 0 {
		return domain.Settings{}, errors.New(strings.Join(errs, "; "))
	}
	return settings, nil
}

func normalizeSettings(raw rawSettings) (domain.Settings, []string) {
	var errs []string

	if raw.ConnectTimeoutSeconds <= 0 {
		errs = append(errs, "connectTimeoutSeconds must be > 0")
	}
	if raw.ExecuteTimeoutSeconds <= 0 {
		errs = append(errs, "executeTimeoutSeconds must be > 0")
	}

	policy := strings.ToLower(strings.TrimSpace(raw.Gating.Policy))
	if policy == "" {
		policy = domain.DefaultGatingPolicy
	}
	if policy != "popular" && policy != "registered" {
		errs = append(errs, "gating.policy must be popular or registered")
	}

	backends := make([]domain.Registration, 0, len(raw.Backends))
	seen := make(map[string]struct{})
	for i, b := range raw.Backends {
		name := strings.TrimSpace(b.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Sprintf("backends[%d]: name is required", i))
		case !domain.ValidBackendName(name):
			errs = append(errs, fmt.Sprintf("backends[%d]: name %q must match %s", i, name, domain.BackendNamePattern))
		default:
			if _, dup := seen[name]; dup {
				errs = append(errs, fmt.Sprintf("backends[%d]: duplicate name %q", i, name))
				continue
			}
			seen[name] = struct{}{}
		}
		if strings.TrimSpace(b.Command) == "" {
			errs = append(errs, fmt.Sprintf("backends[%d]: command is required", i))
		}
		backends = append(backends, domain.Registration{
			Name: name,
			Config: domain.BackendConfig{
				Command:  strings.TrimSpace(b.Command),
				Args:     b.Args,
				Env:      b.Env,
				Disabled: b.Disabled,
			},
		})
	}

	advisor := domain.AdvisorSettings{
		Enabled:      raw.Advisor.Enabled,
		Provider:     strings.TrimSpace(raw.Advisor.Provider),
		Model:        strings.TrimSpace(raw.Advisor.Model),
		APIKey:       raw.Advisor.APIKey,
		APIKeyEnvVar: strings.TrimSpace(raw.Advisor.APIKeyEnvVar),
		BaseURL:      strings.TrimSpace(raw.Advisor.BaseURL),
		MaxTools:     raw.Advisor.MaxTools,
	}
	if advisor.MaxTools < 0 {
		errs = append(errs, "advisor.maxTools must be >= 0")
	}

	embeddingTimeout := raw.Embedding.TimeoutSeconds
	if embeddingTimeout <= 0 {
		errs = append(errs, "embedding.timeoutSeconds must be > 0")
	}
	embedding := domain.EmbeddingSettings{
		Enabled:        raw.Embedding.Enabled,
		Provider:       strings.TrimSpace(raw.Embedding.Provider),
		Model:          strings.TrimSpace(raw.Embedding.Model),
		APIKey:         raw.Embedding.APIKey,
		APIKeyEnvVar:   strings.TrimSpace(raw.Embedding.APIKeyEnvVar),
		BaseURL:        strings.TrimSpace(raw.Embedding.BaseURL),
		TimeoutSeconds: embeddingTimeout,
	}

	listen := strings.TrimSpace(raw.Observability.ListenAddress)
	if listen == "" {
		listen = domain.DefaultObservabilityListen
	}

	return domain.Settings{
		Backends:              backends,
		ConnectTimeoutSeconds: raw.ConnectTimeoutSeconds,
		ExecuteTimeoutSeconds: raw.ExecuteTimeoutSeconds,
		MockMode:              raw.MockMode,
		SeedDemoTools:         raw.SeedDemoTools,
		WatchConfig:           raw.WatchConfig,
		StorePath:             strings.TrimSpace(raw.StorePath),
		Gating:                domain.GatingSettings{Policy: policy},
		Advisor:               advisor,
		Embedding:             embedding,
		Observability: domain.ObservabilitySettings{
			ListenAddress: listen,
			EnableMetrics: raw.Observability.EnableMetrics,
			EnableHealthz: raw.Observability.EnableHealthz,
		},
	}, errs
}
