package domain

import (
	"sort"
	"sync"
)

// Catalog is the unified in-memory collection of Tool records across all
// backends, plus per-tool usage counters. All mutation goes through the
// catalog's own mutex; readers get copies, never references into the maps.
//
// Iteration order is registration order and survives re-registration of an
// existing ID, so repeated reads over an unchanged catalog are deterministic.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
	usage map[string]int
	order []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tools: make(map[string]Tool),
		usage: make(map[string]int),
	}
}

// Add registers a tool. Re-registering an existing ID overwrites the record
// but preserves its usage count and its position in iteration order.
func (c *Catalog) Add(tool Tool) error {
	const op = "catalog.add"
	if tool.ID == "" {
		return E(CodeValidation, op, "tool id is required", nil)
	}
	if tool.Name == "" {
		return E(CodeValidation, op, "tool name is required", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tools[tool.ID]; !exists {
		c.order = append(c.order, tool.ID)
		c.usage[tool.ID] = 0
	}
	tool.UsageCount = c.usage[tool.ID]
	c.tools[tool.ID] = tool
	return nil
}

// Get returns a copy of the tool with its current usage count, if present.
func (c *Catalog) Get(id string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tool, ok := c.tools[id]
	if !ok {
		return Tool{}, false
	}
	tool.UsageCount = c.usage[id]
	return tool, true
}

// GetByIDs resolves the given IDs in request order, silently skipping IDs
// that are not present.
func (c *Catalog) GetByIDs(ids []string) []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Tool, 0, len(ids))
	for _, id := range ids {
		if tool, ok := c.tools[id]; ok {
			tool.UsageCount = c.usage[id]
			out = append(out, tool)
		}
	}
	return out
}

// Remove deletes a tool and its usage counter. Removing an absent ID is a
// no-op.
func (c *Catalog) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tools[id]; !ok {
		return
	}
	delete(c.tools, id)
	delete(c.usage, id)
	for i, have := range c.order {
		if have == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// List returns all tools in registration order.
func (c *Catalog) List() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Tool, 0, len(c.order))
	for _, id := range c.order {
		tool := c.tools[id]
		tool.UsageCount = c.usage[id]
		out = append(out, tool)
	}
	return out
}

// Popular returns up to limit tools ordered by usage count descending,
// ties broken by ID ascending.
func (c *Catalog) Popular(limit int) []Tool {
	tools := c.List()
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].UsageCount != tools[j].UsageCount {
			return tools[i].UsageCount > tools[j].UsageCount
		}
		return tools[i].ID < tools[j].ID
	})
	if limit > 0 && len(tools) > limit {
		tools = tools[:limit]
	}
	return tools
}

// IncrementUsage bumps the usage counter for id by one. Unknown IDs are
// ignored.
func (c *Catalog) IncrementUsage(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tools[id]; ok {
		c.usage[id]++
	}
}

// UsageCount returns the current usage counter for id.
func (c *Catalog) UsageCount(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usage[id]
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

// Clear removes every tool and usage counter.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = make(map[string]Tool)
	c.usage = make(map[string]int)
	c.order = nil
}
