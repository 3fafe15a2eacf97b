package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

// SessionSource is the slice of the session manager the router consumes.
type SessionSource interface {
	CachedTools(name string) []*mcp.Tool
	Backends() []string
	Execute(ctx context.Context, name, tool string, args map[string]any) (*mcp.CallToolResult, error)
}

type RouterOptions struct {
	Sessions SessionSource
	Catalog  *domain.Catalog
	Logger   *zap.Logger
	Metrics  domain.Metrics
}

// Router owns the catalog and the routing table: it normalizes raw backend
// descriptors into catalog entries, maps tool IDs back to their owning
// backend, and forwards execution calls.
type Router struct {
	sessions SessionSource
	catalog  *domain.Catalog
	logger   *zap.Logger
	metrics  domain.Metrics

	mu          sync.RWMutex
	routes      map[string]domain.Route
	provisioned map[string]struct{}
}

func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = domain.NewCatalog()
	}
	return &Router{
		sessions:    opts.Sessions,
		catalog:     catalog,
		logger:      logger.Named("router"),
		metrics:     metrics,
		routes:      make(map[string]domain.Route),
		provisioned: make(map[string]struct{}),
	}
}

// Catalog exposes the catalog the router maintains.
func (r *Router) Catalog() *domain.Catalog {
	return r.catalog
}

// DiscoverBackend normalizes the cached raw descriptors for one backend into
// catalog entries and records their routes. Discovery is partial-success: a
// malformed descriptor is skipped, never aborting the rest. Returns the
// count of tools registered.
func (r *Router) DiscoverBackend(name string) int {
	started := time.Now()
	registered := 0

	for _, descriptor := range r.sessions.CachedTools(name) {
		raw := normalizeDescriptor(descriptor)
		if raw.Name == "" {
			r.logger.Debug("skip descriptor without name",
				telemetry.EventField(telemetry.EventDiscoverSkipped),
				telemetry.BackendField(name),
			)
			continue
		}
		if raw.Description == nil {
			r.logger.Debug("skip descriptor without description",
				telemetry.EventField(telemetry.EventDiscoverSkipped),
				telemetry.BackendField(name),
				telemetry.ToolField(raw.Name),
			)
			continue
		}

		tool := buildTool(name, raw)
		if err := r.catalog.Add(tool); err != nil {
			r.logger.Warn("skip invalid descriptor",
				telemetry.EventField(telemetry.EventDiscoverSkipped),
				telemetry.BackendField(name),
				telemetry.ToolField(raw.Name),
				zap.Error(err),
			)
			continue
		}
		r.setRoute(tool.ID, domain.Route{Server: name, RemoteName: raw.Name})
		registered++
	}

	r.metrics.ObserveDiscovery(name, time.Since(started), registered)
	r.metrics.SetCatalogSize(r.catalog.Len())
	r.logger.Info("backend tools discovered",
		telemetry.EventField(telemetry.EventDiscoverSuccess),
		telemetry.BackendField(name),
		telemetry.CountField(registered),
	)
	return registered
}

// DiscoverAll runs discovery for every backend the session manager knows,
// returning the total registered count.
func (r *Router) DiscoverAll() int {
	total := 0
	for _, name := range r.sessions.Backends() {
		total += r.DiscoverBackend(name)
	}
	return total
}

// Execute routes toolID to its owning backend and forwards the call. On
// success the tool's usage count is incremented; failures propagate
// unchanged and leave usage untouched.
func (r *Router) Execute(ctx context.Context, toolID string, args map[string]any) (*mcp.CallToolResult, error) {
	route, err := r.resolveRoute(toolID)
	if err != nil {
		return nil, err
	}

	result, err := r.sessions.Execute(ctx, route.Server, route.RemoteName, args)
	if err != nil {
		return nil, err
	}

	r.catalog.IncrementUsage(toolID)
	return result, nil
}

// resolveRoute returns the stored route for toolID, deriving and storing one
// from the catalog entry when the table lost it. The routing table is
// self-healing as long as the catalog still has the tool.
func (r *Router) resolveRoute(toolID string) (domain.Route, error) {
	r.mu.RLock()
	route, ok := r.routes[toolID]
	r.mu.RUnlock()
	if ok {
		return route, nil
	}

	tool, ok := r.catalog.Get(toolID)
	if !ok {
		return domain.Route{}, domain.E(domain.CodeNotFound, "router.execute", "",
			fmt.Errorf("tool %q: %w", toolID, domain.ErrToolNotFound))
	}
	if tool.Server == "" {
		return domain.Route{}, domain.E(domain.CodeNotFound, "router.execute",
			fmt.Sprintf("tool %q has no backend mapping", toolID), nil)
	}

	route = domain.Route{Server: tool.Server, RemoteName: tool.Name}
	r.setRoute(toolID, route)
	return route, nil
}

func (r *Router) setRoute(toolID string, route domain.Route) {
	r.mu.Lock()
	r.routes[toolID] = route
	r.mu.Unlock()
}

// Provision marks a tool ID as activated for the agent context.
func (r *Router) Provision(toolID string) {
	r.mu.Lock()
	r.provisioned[toolID] = struct{}{}
	r.mu.Unlock()
}

// Unprovision removes a tool ID from the activated set.
func (r *Router) Unprovision(toolID string) {
	r.mu.Lock()
	delete(r.provisioned, toolID)
	r.mu.Unlock()
}

// IsProvisioned reports whether toolID is in the activated set.
func (r *Router) IsProvisioned(toolID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.provisioned[toolID]
	return ok
}

// Provisioned returns the activated tool IDs in sorted order.
func (r *Router) Provisioned() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.provisioned))
	for id := range r.provisioned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset empties the activated set and the route table. Routes rebuild
// lazily from the catalog on the next execute, so callers clearing the
// catalog should reset the router alongside it.
func (r *Router) Reset() {
	r.mu.Lock()
	r.routes = make(map[string]domain.Route)
	r.provisioned = make(map[string]struct{})
	r.mu.Unlock()
}

// ExecutionInfo describes what a call would do before it is forwarded.
type ExecutionInfo struct {
	ToolName        string   `json:"toolName"`
	Server          string   `json:"server"`
	Description     string   `json:"description"`
	ActionSummary   string   `json:"actionSummary"`
	EstimatedTokens int      `json:"estimatedTokens"`
	Tags            []string `json:"tags,omitempty"`
}

// ExecutionInfo resolves toolID and summarizes the call it would make.
func (r *Router) ExecutionInfo(toolID string, args map[string]any) (ExecutionInfo, error) {
	tool, ok := r.catalog.Get(toolID)
	if !ok {
		return ExecutionInfo{}, domain.E(domain.CodeNotFound, "router.info", "",
			fmt.Errorf("tool %q: %w", toolID, domain.ErrToolNotFound))
	}
	return ExecutionInfo{
		ToolName:        tool.Name,
		Server:          tool.Server,
		Description:     tool.DescriptionText(),
		ActionSummary:   actionSummary(tool, args),
		EstimatedTokens: tool.EstimatedTokens,
		Tags:            tool.Tags,
	}, nil
}

func actionSummary(tool domain.Tool, args map[string]any) string {
	name := strings.ToLower(tool.Name)
	switch {
	case strings.Contains(name, "search"):
		return fmt.Sprintf("Will search for %q", stringArg(args, "query", ""))
	case strings.Contains(name, "screenshot"):
		return fmt.Sprintf("Will capture screenshot %q", stringArg(args, "name", "screenshot"))
	case strings.Contains(name, "write"):
		return fmt.Sprintf("Will write note %q", stringArg(args, "title", "note"))
	case strings.Contains(name, "research"):
		return fmt.Sprintf("Will research %q", stringArg(args, "query", "target"))
	default:
		return fmt.Sprintf("Will execute %s with provided arguments", tool.Name)
	}
}

func stringArg(args map[string]any, key, fallback string) string {
	if value, ok := args[key].(string); ok && value != "" {
		return value
	}
	return fallback
}
