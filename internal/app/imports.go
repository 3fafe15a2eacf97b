package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/registry"
	"toolgate/internal/infra/telemetry"
)

// ImportConfig drives a one-shot import of backend definitions from an
// agent client's own config file into the persistent store.
type ImportConfig struct {
	ConfigPath string
	Source     string
	Path       string
	Env        map[string]string
	DryRun     bool
}

// ImportSummary reports what an import found and, unless it was a dry
// run, persisted.
type ImportSummary struct {
	Source   registry.Source
	Path     string
	Imported []string
	Issues   []registry.Issue
}

// Import reads backend definitions from the named agent client config and
// writes them to the store configured in the gateway settings. Explicit
// env overrides from the CLI take precedence over values in the source
// file. With DryRun set nothing is written.
func (a *App) Import(ctx context.Context, cfg ImportConfig) (ImportSummary, error) {
	source, err := registry.ParseSource(cfg.Source)
	if err != nil {
		return ImportSummary{}, err
	}

	var result registry.ImportResult
	if cfg.Path != "" {
		result, err = registry.ReadSourceFile(source, cfg.Path)
	} else {
		result, err = registry.ReadSource(source)
	}
	if err != nil {
		return ImportSummary{}, err
	}

	settings, err := registry.NewLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return ImportSummary{}, err
	}
	if settings.StorePath == "" {
		return ImportSummary{}, fmt.Errorf("storePath must be configured to import backends")
	}

	summary := ImportSummary{
		Source: result.Source,
		Path:   result.Path,
		Issues: result.Issues,
	}
	for _, issue := range result.Issues {
		a.logger.Warn("import issue",
			telemetry.BackendField(issue.Name),
			zap.String("kind", issue.Kind),
			zap.String("reason", issue.Message))
	}

	registrations := make([]domain.Registration, 0, len(result.Backends))
	for _, reg := range result.Backends {
		reg.Config.Env = overlayEnv(reg.Config.Env, cfg.Env)
		registrations = append(registrations, reg)
		summary.Imported = append(summary.Imported, reg.Name)
	}

	if cfg.DryRun {
		a.logger.Info("dry run, nothing persisted", telemetry.CountField(len(registrations)))
		return summary, nil
	}

	store, err := registry.OpenStore(settings.StorePath)
	if err != nil {
		return ImportSummary{}, err
	}
	defer func() { _ = store.Close() }()

	for _, reg := range registrations {
		if err := store.Put(reg); err != nil {
			return ImportSummary{}, err
		}
	}
	a.logger.Info("backends imported",
		zap.String("source", string(result.Source)),
		telemetry.CountField(len(registrations)))
	return summary, nil
}

func overlayEnv(base, overrides map[string]string) map[string]string {
	if len(overrides) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(overrides))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}
	return merged
}
