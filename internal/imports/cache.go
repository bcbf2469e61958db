package imports

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/dhall/internal/ir"
)

// Cache stores canonical encodings keyed by their semantic hash.
//
// Implementations must be safe for concurrent use. Put is idempotent: the
// bytes for a hash never change, so a second Put of the same hash is a no-op.
type Cache interface {
	Get(ctx context.Context, h ir.Hash) ([]byte, bool, error)
	Put(ctx context.Context, h ir.Hash, encoded []byte) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[ir.Hash][]byte
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[ir.Hash][]byte)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, h ir.Hash) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.entries[h]
	return slices.Clone(b), ok, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, h ir.Hash, encoded []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[h]; !ok {
		c.entries[h] = slices.Clone(encoded)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
