package app

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/registry"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/sessions"
	"toolgate/internal/infra/telemetry"
)

// mergeRegistrations combines configured backends with store entries added
// at runtime through the gateway. The config file wins on name collisions
// so an operator edit always overrides a stale dynamic registration.
func (a *App) mergeRegistrations(configured []domain.Registration, store *registry.Store) ([]domain.Registration, error) {
	merged := make(map[string]domain.Registration)
	if store != nil {
		stored, err := store.List()
		if err != nil {
			return nil, err
		}
		for _, reg := range stored {
			merged[reg.Name] = reg
		}
		if len(stored) > 0 {
			a.logger.Info("persisted backends loaded", telemetry.CountField(len(stored)))
		}
	}
	for _, reg := range configured {
		merged[reg.Name] = reg
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.Registration, 0, len(names))
	for _, name := range names {
		out = append(out, merged[name])
	}
	return out, nil
}

// connectBackends connects every enabled registration and reports how many
// came up. A failed connect is logged and skipped, the rest still start.
func (a *App) connectBackends(ctx context.Context, manager *sessions.Manager, registrations []domain.Registration) int {
	connected := 0
	for _, reg := range registrations {
		if reg.Config.Disabled {
			a.logger.Info("backend disabled, skipping", telemetry.BackendField(reg.Name))
			continue
		}
		if err := manager.Connect(ctx, reg.Name, reg.Config); err != nil {
			a.logger.Warn("backend connect failed",
				telemetry.BackendField(reg.Name),
				zap.Error(err))
			continue
		}
		connected++
	}
	return connected
}

// applyReload reconciles live sessions against freshly loaded settings.
// Unchanged connected backends keep their session, changed ones reconnect,
// new ones connect. Backends removed from the file are left running so a
// reload never interrupts in-flight work. Restart to retire them.
func (a *App) applyReload(ctx context.Context, manager *sessions.Manager, toolRouter *router.Router, next domain.Settings) {
	for _, reg := range next.Backends {
		if reg.Config.Disabled {
			continue
		}
		current, known := manager.Registration(reg.Name)
		connected := manager.IsConnected(reg.Name)
		if connected && known && configEqual(current, reg.Config) {
			continue
		}
		if connected {
			a.logger.Info("backend config changed, reconnecting", telemetry.BackendField(reg.Name))
			if err := manager.Disconnect(ctx, reg.Name); err != nil {
				a.logger.Warn("disconnect before reconnect failed",
					telemetry.BackendField(reg.Name),
					zap.Error(err))
			}
		}
		if err := manager.Connect(ctx, reg.Name, reg.Config); err != nil {
			a.logger.Warn("backend connect failed during reload",
				telemetry.BackendField(reg.Name),
				zap.Error(err))
			continue
		}
		toolRouter.DiscoverBackend(reg.Name)
	}
}

func configEqual(a, b domain.BackendConfig) bool {
	if a.Command != b.Command || a.Disabled != b.Disabled {
		return false
	}
	if len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if a.Args[i] != b.Args[i] {
			return false
		}
	}
	if len(a.Env) != len(b.Env) {
		return false
	}
	for key, value := range a.Env {
		if b.Env[key] != value {
			return false
		}
	}
	return true
}

// healthReport snapshots backend and catalog state for the healthz
// endpoint. With backends configured but none connected the status reads
// degraded; an empty deployment that only serves registered tools is ok.
func healthReport(manager *sessions.Manager, catalog *domain.Catalog) telemetry.HealthReport {
	statuses := manager.Statuses()
	connected := 0
	for _, status := range statuses {
		if status.Connected {
			connected++
		}
	}
	health := "ok"
	if len(statuses) > 0 && connected == 0 {
		health = "degraded"
	}
	return telemetry.HealthReport{
		Status: health,
		Backends: telemetry.HealthBackends{
			Connected: connected,
			Total:     len(statuses),
		},
		Tools: catalog.Len(),
	}
}
