package gating

import (
	"context"
	"time"

	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

// Policy names the deterministic candidate ordering used when a request
// carries no explicit tool IDs.
type Policy string

const (
	// PolicyPopular orders candidates by usage count descending, ties by ID.
	PolicyPopular Policy = "popular"
	// PolicyRegistered orders candidates by catalog registration order.
	PolicyRegistered Policy = "registered"
)

const (
	policyExplicit = "explicit"
	policyAdvisor  = "advisor"
)

// Request is one provisioning selection. Zero MaxTools and TokenBudget mean
// unconstrained.
type Request struct {
	ToolIDs     []string
	MaxTools    int
	TokenBudget int
}

// Selection is the outcome of a gating walk: the chosen tools in final
// order plus the aggregate cost, and the policy that produced the ordering.
type Selection struct {
	Tools       []domain.Tool
	TotalTokens int
	TotalTools  int
	Policy      string
}

// Ranker proposes a candidate ordering for requests without explicit IDs.
// Implementations may consult an LLM; a Ranker error never fails the
// selection, it falls back to the deterministic policy order.
type Ranker interface {
	Rank(ctx context.Context, candidates []domain.Tool, maxTools int) ([]string, error)
}

// EngineOptions configures a gating Engine.
type EngineOptions struct {
	Catalog *domain.Catalog
	Policy  Policy
	Ranker  Ranker
	Logger  *zap.Logger
	Metrics domain.Metrics
}

// Engine selects a bounded subset of the catalog for provisioning. Every
// path funnels through the same budget walk, so the count and token
// invariants hold no matter which ordering produced the candidates.
type Engine struct {
	catalog *domain.Catalog
	policy  Policy
	ranker  Ranker
	logger  *zap.Logger
	metrics domain.Metrics
}

// NewEngine creates a gating engine over the given catalog.
func NewEngine(opts EngineOptions) *Engine {
	policy := opts.Policy
	if policy != PolicyRegistered {
		policy = PolicyPopular
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Engine{
		catalog: opts.Catalog,
		policy:  policy,
		ranker:  opts.Ranker,
		logger:  logger.Named("gating"),
		metrics: metrics,
	}
}

// Select resolves the request into a provisioning set. Explicit tool IDs are
// resolved in request order with unknown IDs silently omitted; otherwise
// candidates come from the configured policy (or the ranker, when present).
// Identical catalog state and inputs always produce the identical selection.
func (e *Engine) Select(ctx context.Context, req Request) Selection {
	started := time.Now()

	var (
		candidates []domain.Tool
		policy     string
	)
	if len(req.ToolIDs) > 0 {
		candidates = e.catalog.GetByIDs(req.ToolIDs)
		policy = policyExplicit
	} else {
		candidates, policy = e.rankCandidates(ctx, req.MaxTools)
	}

	selection := applyBudget(candidates, req.MaxTools, req.TokenBudget)
	selection.Policy = policy

	e.metrics.ObserveGate(domain.GateMetric{
		Policy:      policy,
		Selected:    selection.TotalTools,
		TotalTokens: selection.TotalTokens,
	})
	e.logger.Debug("gating complete",
		telemetry.EventField(telemetry.EventGateComplete),
		zap.String("policy", policy),
		telemetry.CountField(selection.TotalTools),
		zap.Int("total_tokens", selection.TotalTokens),
		telemetry.DurationField(time.Since(started)))
	return selection
}

func (e *Engine) rankCandidates(ctx context.Context, maxTools int) ([]domain.Tool, string) {
	base := e.baseOrder()
	if e.ranker == nil {
		return base, string(e.policy)
	}

	ids, err := e.ranker.Rank(ctx, base, maxTools)
	if err != nil {
		e.logger.Warn("advisor ranking failed, using deterministic order",
			telemetry.EventField(telemetry.EventAdvisorFallback),
			zap.Error(err))
		return base, string(e.policy)
	}
	return e.catalog.GetByIDs(ids), policyAdvisor
}

func (e *Engine) baseOrder() []domain.Tool {
	if e.policy == PolicyRegistered {
		return e.catalog.List()
	}
	return e.catalog.Popular(0)
}

// applyBudget walks candidates in order and stops at the first tool that
// would break either limit. A later, cheaper tool is never considered once
// the walk stops; this is a deliberate greedy simplification, not
// bin-packing.
func applyBudget(candidates []domain.Tool, maxTools, tokenBudget int) Selection {
	selected := make([]domain.Tool, 0, len(candidates))
	totalTokens := 0
	for _, tool := range candidates {
		if maxTools > 0 && len(selected) >= maxTools {
			break
		}
		if tokenBudget > 0 && totalTokens+tool.EstimatedTokens > tokenBudget {
			break
		}
		selected = append(selected, tool)
		totalTokens += tool.EstimatedTokens
	}
	return Selection{Tools: selected, TotalTokens: totalTokens, TotalTools: len(selected)}
}
