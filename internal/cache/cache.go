// Package cache keeps decoded per-scope memory snapshots for search.
//
// Each scope carries a generation counter. Invalidate bumps it before
// returning, and a snapshot is only served while its generation is current,
// so a snapshot built before a write can never be returned after it.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/rcliao/memory-engine/internal/model"
)

// Builder loads every memory of a scope with decoded vectors.
type Builder func(ctx context.Context, scope model.Scope) ([]model.Memory, error)

type snapshot struct {
	gen      uint64
	memories []model.Memory
}

// Cache is safe for concurrent use.
type Cache struct {
	rc     *ristretto.Cache[string, *snapshot]
	build  Builder
	builds atomic.Int64

	mu   sync.Mutex
	gens map[model.Scope]uint64
}

// New returns a cache that fills misses with build.
func New(build Builder) (*Cache, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, *snapshot]{
		NumCounters:        100,
		MaxCost:            16,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{rc: rc, build: build, gens: map[model.Scope]uint64{}}, nil
}

func key(scope model.Scope) string { return "memories:" + string(scope) }

func (c *Cache) generation(scope model.Scope) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[scope]
}

// GetOrBuild returns the scope's snapshot, building it on a miss. The slice is
// shared and must not be modified.
func (c *Cache) GetOrBuild(ctx context.Context, scope model.Scope) ([]model.Memory, error) {
	gen := c.generation(scope)
	if snap, ok := c.rc.Get(key(scope)); ok && snap.gen == gen {
		return snap.memories, nil
	}

	memories, err := c.build(ctx, scope)
	if err != nil {
		return nil, err
	}
	c.builds.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	// A write landed while building: serve the result once but do not keep it.
	if c.gens[scope] == gen {
		c.rc.Set(key(scope), &snapshot{gen: gen, memories: memories}, 1)
		c.rc.Wait()
	}
	return memories, nil
}

// Invalidate drops the scope's snapshot.
func (c *Cache) Invalidate(scope model.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[scope]++
	c.rc.Del(key(scope))
}

// Touch applies access increments to the current snapshot without a rebuild.
// The snapshot is replaced, never mutated, so readers holding the old slice
// are unaffected.
func (c *Cache) Touch(scope model.Scope, ids []string, at time.Time) {
	if len(ids) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.rc.Get(key(scope))
	if !ok || snap.gen != c.gens[scope] {
		return
	}
	hit := make(map[string]bool, len(ids))
	for _, id := range ids {
		hit[id] = true
	}
	next := make([]model.Memory, len(snap.memories))
	copy(next, snap.memories)
	for i := range next {
		if hit[next[i].ID] {
			next[i].AccessCount++
			ts := at
			next[i].LastAccessedAt = &ts
		}
	}
	c.rc.Set(key(scope), &snapshot{gen: snap.gen, memories: next}, 1)
	c.rc.Wait()
}

// Builds counts snapshot builds.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}

func (c *Cache) Close() {
	c.rc.Close()
}
