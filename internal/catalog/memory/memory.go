// Package memory provides an in-memory catalog, used by tests and by
// the server when no catalog backend is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/smartcycle/discounts/internal/catalog"
	apperrors "github.com/smartcycle/discounts/pkg/errors"
)

// Catalog is a thread-safe in-memory catalog.Catalog implementation.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]catalog.Item
}

// New creates an empty in-memory catalog.
func New() *Catalog {
	return &Catalog{items: make(map[string]catalog.Item)}
}

// NewWithItems creates a catalog pre-populated with the given items.
func NewWithItems(items ...catalog.Item) *Catalog {
	c := New()
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// Put inserts or replaces an item.
func (c *Catalog) Put(item catalog.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
}

// Delete removes an item if present.
func (c *Catalog) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

func (c *Catalog) ResolveItem(_ context.Context, id string) (catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	if !ok {
		return catalog.Item{}, apperrors.NotFound("item", id)
	}
	return item, nil
}

func (c *Catalog) ListItems(_ context.Context) ([]catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]catalog.Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
