package app

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/discovery"
	"toolgate/internal/infra/gateway"
	"toolgate/internal/infra/gating"
	"toolgate/internal/infra/registry"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/sessions"
	"toolgate/internal/infra/telemetry"
)

// Version is the toolgate release version, set at build time via -ldflags.
var Version = "dev"

// App is the composition root: it loads configuration, wires every
// component once, and owns the serve lifecycle.
type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
}

type ValidateConfig struct {
	ConfigPath string
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger.Named("app"),
	}
}

// Serve runs the gateway until ctx is canceled: configuration is loaded,
// persisted registrations merged in, backends connected best-effort, the
// catalog discovered, and the MCP stdio server started. The observability
// HTTP server and the config watcher run alongside when enabled.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	settings, err := registry.NewLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration loaded",
		zap.String("config", cfg.ConfigPath),
		zap.Int("backends", len(settings.Backends)))

	promRegistry := prometheus.NewRegistry()
	var metrics domain.Metrics = telemetry.NewNoopMetrics()
	if settings.Observability.EnableMetrics {
		metrics = telemetry.NewPrometheusMetrics(promRegistry)
	}

	var store *registry.Store
	if settings.StorePath != "" {
		store, err = registry.OpenStore(settings.StorePath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	registrations, err := a.mergeRegistrations(settings.Backends, store)
	if err != nil {
		return err
	}

	manager := sessions.NewManager(sessions.ManagerOptions{
		Launcher:       sessions.CommandLauncher{},
		Logger:         a.logger,
		Metrics:        metrics,
		ClientName:     "toolgate",
		ClientVersion:  Version,
		ConnectTimeout: time.Duration(settings.ConnectTimeoutSeconds) * time.Second,
		ExecuteTimeout: time.Duration(settings.ExecuteTimeoutSeconds) * time.Second,
		MockMode:       settings.MockMode,
	})
	defer func() { _ = manager.DisconnectAll(context.Background()) }()

	catalog := domain.NewCatalog()
	toolRouter := router.NewRouter(router.RouterOptions{
		Sessions: manager,
		Catalog:  catalog,
		Logger:   a.logger,
		Metrics:  metrics,
	})

	var embedder embedding.Embedder
	if settings.Embedding.Enabled {
		embedder, err = discovery.NewEmbedder(ctx, discovery.EmbedderConfig{
			Provider:     settings.Embedding.Provider,
			Model:        settings.Embedding.Model,
			APIKey:       settings.Embedding.APIKey,
			APIKeyEnvVar: settings.Embedding.APIKeyEnvVar,
			BaseURL:      settings.Embedding.BaseURL,
			Timeout:      time.Duration(settings.Embedding.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			a.logger.Warn("embedder unavailable, falling back to hashed embeddings", zap.Error(err))
			embedder = nil
		}
	}
	discoveryEngine := discovery.NewEngine(discovery.EngineOptions{
		Catalog:  catalog,
		Embedder: embedder,
		Logger:   a.logger,
		Metrics:  metrics,
	})

	var ranker gating.Ranker
	if settings.Advisor.Enabled {
		advisor, advisorErr := gating.NewAdvisor(ctx, gating.AdvisorConfig{
			Provider:     settings.Advisor.Provider,
			Model:        settings.Advisor.Model,
			APIKey:       settings.Advisor.APIKey,
			APIKeyEnvVar: settings.Advisor.APIKeyEnvVar,
			BaseURL:      settings.Advisor.BaseURL,
			MaxTools:     settings.Advisor.MaxTools,
		}, metrics, a.logger)
		if advisorErr != nil {
			a.logger.Warn("advisor unavailable, using deterministic gating policy", zap.Error(advisorErr))
		} else {
			ranker = advisor
		}
	}
	gatingEngine := gating.NewEngine(gating.EngineOptions{
		Catalog: catalog,
		Policy:  gating.Policy(settings.Gating.Policy),
		Ranker:  ranker,
		Logger:  a.logger,
		Metrics: metrics,
	})

	if settings.SeedDemoTools {
		a.seedDemoTools(catalog)
	}

	connected := a.connectBackends(ctx, manager, registrations)
	discovered := toolRouter.DiscoverAll()
	a.logger.Info("catalog ready",
		zap.Int("backendsConnected", connected),
		zap.Int("toolsDiscovered", discovered),
		zap.Int("catalogSize", catalog.Len()))

	var registrar gateway.Registrar
	if store != nil {
		registrar = store
	}
	server := gateway.NewServer(gateway.ServerOptions{
		Sessions:  manager,
		Router:    toolRouter,
		Discovery: discoveryEngine,
		Gating:    gatingEngine,
		Registrar: registrar,
		Logger:    a.logger,
		Name:      "toolgate",
		Version:   Version,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if settings.WatchConfig {
		watcher := registry.NewWatcher(registry.WatcherOptions{
			Path:   cfg.ConfigPath,
			Logger: a.logger,
			OnReload: func(reloadCtx context.Context, next domain.Settings) {
				a.applyReload(reloadCtx, manager, toolRouter, next)
			},
		})
		go func() {
			if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	if settings.Observability.EnableMetrics || settings.Observability.EnableHealthz {
		go func() {
			err := telemetry.StartHTTPServer(runCtx, telemetry.HTTPServerOptions{
				Addr:          settings.Observability.ListenAddress,
				EnableMetrics: settings.Observability.EnableMetrics,
				EnableHealthz: settings.Observability.EnableHealthz,
				Health:        func() telemetry.HealthReport { return healthReport(manager, catalog) },
				Registry:      promRegistry,
			}, a.logger)
			if err != nil {
				a.logger.Warn("observability server error", zap.Error(err))
			}
		}()
	}

	return server.Run(runCtx)
}

// ValidateConfig loads and validates the configuration without connecting
// to any backend.
func (a *App) ValidateConfig(ctx context.Context, cfg ValidateConfig) error {
	settings, err := registry.NewLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}

	a.logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.Int("backends", len(settings.Backends)),
		zap.String("gatingPolicy", settings.Gating.Policy))
	return nil
}

func (a *App) seedDemoTools(catalog *domain.Catalog) {
	seeded := 0
	for _, tool := range domain.DemoTools() {
		if err := catalog.Add(tool); err != nil {
			a.logger.Warn("demo tool rejected", telemetry.ToolField(tool.ID), zap.Error(err))
			continue
		}
		seeded++
	}
	a.logger.Info("demo tools seeded", telemetry.CountField(seeded))
}
