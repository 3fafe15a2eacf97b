package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_AddPreservesUsageAndOrder(t *testing.T) {
	catalog := NewCatalog()

	require.NoError(t, catalog.Add(Tool{ID: "a_first", Name: "first", Description: Desc("one")}))
	require.NoError(t, catalog.Add(Tool{ID: "b_second", Name: "second", Description: Desc("two")}))

	catalog.IncrementUsage("a_first")
	catalog.IncrementUsage("a_first")

	// Overwrite keeps the counter and the position.
	require.NoError(t, catalog.Add(Tool{ID: "a_first", Name: "first-v2", Description: Desc("one again")}))

	got, ok := catalog.Get("a_first")
	require.True(t, ok)
	assert.Equal(t, "first-v2", got.Name)
	assert.Equal(t, 2, got.UsageCount)

	ids := make([]string, 0, 2)
	for _, tool := range catalog.List() {
		ids = append(ids, tool.ID)
	}
	assert.Equal(t, []string{"a_first", "b_second"}, ids)
}

func TestCatalog_AddValidation(t *testing.T) {
	catalog := NewCatalog()

	err := catalog.Add(Tool{Name: "no-id"})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeValidation))

	err = catalog.Add(Tool{ID: "no-name"})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeValidation))
}

func TestCatalog_GetByIDsSkipsUnknown(t *testing.T) {
	catalog := NewCatalog()
	require.NoError(t, catalog.Add(Tool{ID: "x", Name: "x"}))

	tools := catalog.GetByIDs([]string{"missing", "x", "also-missing"})
	require.Len(t, tools, 1)
	assert.Equal(t, "x", tools[0].ID)
}

func TestCatalog_PopularOrdersByUsageThenID(t *testing.T) {
	catalog := NewCatalog()
	require.NoError(t, catalog.Add(Tool{ID: "cc", Name: "cc"}))
	require.NoError(t, catalog.Add(Tool{ID: "aa", Name: "aa"}))
	require.NoError(t, catalog.Add(Tool{ID: "bb", Name: "bb"}))

	catalog.IncrementUsage("bb")
	catalog.IncrementUsage("bb")
	catalog.IncrementUsage("cc")

	popular := catalog.Popular(0)
	require.Len(t, popular, 3)
	assert.Equal(t, "bb", popular[0].ID)
	assert.Equal(t, "cc", popular[1].ID)
	assert.Equal(t, "aa", popular[2].ID)

	top := catalog.Popular(1)
	require.Len(t, top, 1)
	assert.Equal(t, "bb", top[0].ID)
}

func TestCatalog_RemoveAndClear(t *testing.T) {
	catalog := NewCatalog()
	require.NoError(t, catalog.Add(Tool{ID: "x", Name: "x"}))
	require.NoError(t, catalog.Add(Tool{ID: "y", Name: "y"}))

	catalog.Remove("x")
	catalog.Remove("x")
	_, ok := catalog.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 1, catalog.Len())

	catalog.Clear()
	assert.Equal(t, 0, catalog.Len())
	assert.Empty(t, catalog.List())
}

func TestCatalog_IncrementUnknownIgnored(t *testing.T) {
	catalog := NewCatalog()
	catalog.IncrementUsage("ghost")
	assert.Equal(t, 0, catalog.UsageCount("ghost"))
}

func TestSeedDemoTools(t *testing.T) {
	catalog := NewCatalog()
	require.NoError(t, SeedDemoTools(catalog))
	assert.Equal(t, 5, catalog.Len())

	tool, ok := catalog.Get("web-search")
	require.True(t, ok)
	assert.True(t, tool.Searchable())
	assert.True(t, tool.HasTag("web"))
	assert.Equal(t, 100, tool.EstimatedTokens)
}
