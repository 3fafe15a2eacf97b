package discovery

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

// Request carries one discovery query. Tags narrows the candidate set before
// scoring; Limit caps the result list and falls back to the default when
// unset.
type Request struct {
	Query   string
	Context string
	Tags    []string
	Limit   int
}

// EngineOptions configures a discovery Engine.
type EngineOptions struct {
	Catalog  *domain.Catalog
	Embedder embedding.Embedder
	Logger   *zap.Logger
	Metrics  domain.Metrics
}

// Engine ranks catalog tools against free-text queries. Scoring combines
// embedding cosine similarity with lexical token overlap and a per-tag
// boost, so results stay useful even without a remote embedder: absent or
// failing embedders degrade to deterministic hashed embeddings.
type Engine struct {
	catalog *domain.Catalog
	logger  *zap.Logger
	metrics domain.Metrics

	mu       sync.Mutex
	embedder embedding.Embedder
	vectors  map[string][]float64
}

// NewEngine creates a discovery engine over the given catalog. A nil
// Embedder is valid and selects hashed embeddings from the start.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Engine{
		catalog:  opts.Catalog,
		logger:   logger.Named("discovery"),
		metrics:  metrics,
		embedder: opts.Embedder,
		vectors:  make(map[string][]float64),
	}
}

// Search scores every searchable catalog tool against the query and returns
// the top matches in descending score order. Tools tied on score keep their
// catalog registration order. The returned slice is never nil.
func (e *Engine) Search(ctx context.Context, req Request) ([]domain.ToolMatch, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.E(domain.CodeValidation, "discovery.search", "", domain.ErrEmptyQuery)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}

	started := time.Now()
	candidates := e.catalog.List()
	if len(req.Tags) > 0 {
		candidates = filterByTags(candidates, req.Tags)
	}
	if len(candidates) == 0 {
		e.metrics.ObserveSearch(time.Since(started), 0)
		return []domain.ToolMatch{}, nil
	}

	queryText := req.Query + " " + req.Context
	queryVector := e.embed(ctx, queryText, "")
	queryTokens := tokenSet(queryText)

	matches := make([]domain.ToolMatch, 0, len(candidates))
	for _, tool := range candidates {
		if !tool.Searchable() {
			continue
		}

		toolText := tool.Name + " " + tool.DescriptionText() + " " + strings.Join(tool.Tags, " ")
		semantic := cosine(queryVector, e.embed(ctx, toolText, tool.ID))
		lexical := lexicalSimilarity(queryTokens, tokenSet(toolText))
		combined := math.Max(semantic, lexical) + 0.1*lexical

		matched := matchedTags(tool, req.Tags, queryTokens)
		matches = append(matches, domain.ToolMatch{
			Tool:        tool,
			Score:       clamp01(combined + 0.2*float64(len(matched))),
			MatchedTags: matched,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	duration := time.Since(started)
	e.metrics.ObserveSearch(duration, len(matches))
	e.logger.Debug("search complete",
		telemetry.EventField(telemetry.EventSearchComplete),
		telemetry.CountField(len(matches)),
		telemetry.DurationField(duration))
	return matches, nil
}

// InvalidateTool drops the cached embedding for a tool, forcing the next
// search to re-embed its current text. Call it after a refresh changes a
// tool's description.
func (e *Engine) InvalidateTool(toolID string) {
	e.mu.Lock()
	delete(e.vectors, toolID)
	e.mu.Unlock()
}

// embed returns the vector for text, consulting the per-tool cache when
// cacheKey is set. Query texts pass an empty key and are embedded fresh.
// The first runtime failure of the configured embedder disables it for the
// rest of the process; hashed embeddings take over from there.
func (e *Engine) embed(ctx context.Context, text, cacheKey string) []float64 {
	e.mu.Lock()
	if cacheKey != "" {
		if vec, ok := e.vectors[cacheKey]; ok {
			e.mu.Unlock()
			return vec
		}
	}
	embedder := e.embedder
	e.mu.Unlock()

	var vec []float64
	if embedder != nil {
		vecs, err := embedder.EmbedStrings(ctx, []string{text})
		if err == nil && len(vecs) == 1 {
			vec = vecs[0]
		} else {
			e.logger.Warn("embedder failed, switching to hashed embeddings", zap.Error(err))
			e.mu.Lock()
			e.embedder = nil
			e.mu.Unlock()
		}
	}
	if vec == nil {
		vec = hashedEmbedding(text)
	}

	if cacheKey != "" {
		e.mu.Lock()
		e.vectors[cacheKey] = vec
		e.mu.Unlock()
	}
	return vec
}

func filterByTags(tools []domain.Tool, tags []string) []domain.Tool {
	want := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		want[tag] = struct{}{}
	}
	var filtered []domain.Tool
	for _, tool := range tools {
		for _, tag := range tool.Tags {
			if _, ok := want[tag]; ok {
				filtered = append(filtered, tool)
				break
			}
		}
	}
	return filtered
}

// matchedTags returns the tool tags that justify a boost, sorted. With an
// explicit tag filter the boost counts the filter tags the tool carries;
// otherwise it counts tool tags that appear verbatim in the query.
func matchedTags(tool domain.Tool, requested []string, queryTokens map[string]struct{}) []string {
	matched := make([]string, 0)
	if len(requested) > 0 {
		want := make(map[string]struct{}, len(requested))
		for _, tag := range requested {
			want[tag] = struct{}{}
		}
		for _, tag := range tool.Tags {
			if _, ok := want[tag]; ok {
				matched = append(matched, tag)
			}
		}
	} else {
		for _, tag := range tool.Tags {
			if _, ok := queryTokens[strings.ToLower(tag)]; ok {
				matched = append(matched, tag)
			}
		}
	}
	sort.Strings(matched)
	return matched
}
