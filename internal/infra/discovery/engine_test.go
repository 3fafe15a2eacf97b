package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
)

// fakeEmbedder returns canned vectors keyed by the trimmed input text and
// counts how often each text is embedded.
type fakeEmbedder struct {
	vectors map[string][]float64
	calls   map[string]int
	err     error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: make(map[string][]float64),
		calls:   make(map[string]int),
	}
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		key := strings.TrimSpace(text)
		f.calls[key]++
		if f.err != nil {
			return nil, f.err
		}
		vec, ok := f.vectors[key]
		if !ok {
			vec = []float64{0, 0}
		}
		out = append(out, vec)
	}
	return out, nil
}

func (f *fakeEmbedder) totalCalls() int {
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func seededCatalog(t *testing.T, tools ...domain.Tool) *domain.Catalog {
	t.Helper()
	catalog := domain.NewCatalog()
	for _, tool := range tools {
		require.NoError(t, catalog.Add(tool))
	}
	return catalog
}

func searchTool(id, name, description string, tags ...string) domain.Tool {
	return domain.Tool{
		ID:          id,
		Name:        name,
		Description: domain.Desc(description),
		Tags:        tags,
	}
}

func TestSearch_RanksLexicalAndTagMatchesFirst(t *testing.T) {
	catalog := seededCatalog(t,
		searchTool("brave_web_search", "web_search", "Search the web for information", "search", "web"),
		searchTool("files_file_read", "file_read", "Read files from disk", "file", "read"),
	)
	engine := NewEngine(EngineOptions{Catalog: catalog})

	matches, err := engine.Search(context.Background(), Request{Query: "search the web"})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	first := matches[0]
	assert.Equal(t, "brave_web_search", first.Tool.ID)
	assert.Equal(t, []string{"search", "web"}, first.MatchedTags)
	// Lexical overlap plus two matched tags pushes past the ceiling.
	assert.InDelta(t, 1.0, first.Score, 1e-9)
	assert.Less(t, matches[1].Score, first.Score)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	engine := NewEngine(EngineOptions{Catalog: domain.NewCatalog()})

	for _, query := range []string{"", "   "} {
		_, err := engine.Search(context.Background(), Request{Query: query})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	}
}

func TestSearch_TagFilterNarrowsCandidates(t *testing.T) {
	catalog := seededCatalog(t,
		searchTool("brave_web_search", "web_search", "Search the web", "search", "web"),
		searchTool("files_file_read", "file_read", "Read files from disk", "file", "read"),
	)
	engine := NewEngine(EngineOptions{Catalog: catalog})

	matches, err := engine.Search(context.Background(), Request{
		Query: "search",
		Tags:  []string{"search", "missing"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "brave_web_search", matches[0].Tool.ID)
	assert.Equal(t, []string{"search"}, matches[0].MatchedTags)

	matches, err = engine.Search(context.Background(), Request{Query: "anything", Tags: []string{"nonexistent"}})
	require.NoError(t, err)
	require.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestSearch_EmptyCatalog(t *testing.T) {
	engine := NewEngine(EngineOptions{Catalog: domain.NewCatalog()})

	matches, err := engine.Search(context.Background(), Request{Query: "anything"})
	require.NoError(t, err)
	require.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestSearch_LimitTruncates(t *testing.T) {
	catalog := domain.NewCatalog()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, catalog.Add(searchTool(id+"_probe", "probe", "Probe the target system")))
	}
	engine := NewEngine(EngineOptions{Catalog: catalog})

	matches, err := engine.Search(context.Background(), Request{Query: "probe", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = engine.Search(context.Background(), Request{Query: "probe"})
	require.NoError(t, err)
	assert.Len(t, matches, 5, "unset limit falls back to the default")
}

func TestSearch_TiesKeepCatalogOrder(t *testing.T) {
	catalog := seededCatalog(t,
		searchTool("a_dup", "dup", "Duplicate description"),
		searchTool("b_dup", "dup", "Duplicate description"),
		searchTool("c_dup", "dup", "Duplicate description"),
	)
	engine := NewEngine(EngineOptions{Catalog: catalog})

	matches, err := engine.Search(context.Background(), Request{Query: "duplicate"})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	ids := []string{matches[0].Tool.ID, matches[1].Tool.ID, matches[2].Tool.ID}
	assert.Equal(t, []string{"a_dup", "b_dup", "c_dup"}, ids)
	assert.Equal(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, matches[1].Score, matches[2].Score)
}

func TestSearch_SkipsToolsWithoutDescription(t *testing.T) {
	ghost := domain.Tool{ID: "x_ghost", Name: "ghost"}
	catalog := seededCatalog(t,
		ghost,
		searchTool("x_visible", "visible", "A ghost hunting helper"),
	)
	engine := NewEngine(EngineOptions{Catalog: catalog})

	matches, err := engine.Search(context.Background(), Request{Query: "ghost"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "x_visible", matches[0].Tool.ID)
}

func TestSearch_EmbedderDrivesSemanticRanking(t *testing.T) {
	catalog := seededCatalog(t,
		searchTool("m_alpha", "alpha", "one"),
		searchTool("m_beta", "beta", "two"),
	)
	fake := newFakeEmbedder()
	fake.vectors["zzz"] = []float64{1, 0}
	fake.vectors["alpha one"] = []float64{1, 0}
	fake.vectors["beta two"] = []float64{0, 1}
	engine := NewEngine(EngineOptions{Catalog: catalog, Embedder: fake})

	matches, err := engine.Search(context.Background(), Request{Query: "zzz"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "m_alpha", matches[0].Tool.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.InDelta(t, 0.0, matches[1].Score, 1e-9)
	assert.Equal(t, 3, fake.totalCalls())

	// Tool vectors are cached by tool ID; only the query is re-embedded.
	_, err = engine.Search(context.Background(), Request{Query: "zzz"})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls["zzz"])
	assert.Equal(t, 1, fake.calls["alpha one"])

	engine.InvalidateTool("m_alpha")
	_, err = engine.Search(context.Background(), Request{Query: "zzz"})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls["alpha one"])
	assert.Equal(t, 1, fake.calls["beta two"])
}

func TestSearch_EmbedderFailureFallsBackPermanently(t *testing.T) {
	catalog := seededCatalog(t,
		searchTool("m_alpha", "alpha", "one"),
		searchTool("m_beta", "beta", "two"),
	)
	fake := newFakeEmbedder()
	fake.err = errors.New("quota exceeded")
	engine := NewEngine(EngineOptions{Catalog: catalog, Embedder: fake})

	matches, err := engine.Search(context.Background(), Request{Query: "alpha"})
	require.NoError(t, err, "embedder failures degrade, never fail the search")
	require.Len(t, matches, 2)
	assert.Equal(t, "m_alpha", matches[0].Tool.ID, "lexical scoring still ranks")
	assert.Equal(t, 1, fake.totalCalls(), "one failure disables the embedder")

	_, err = engine.Search(context.Background(), Request{Query: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.totalCalls())
}
