package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memory-engine/internal/model"
)

type fakeSource struct {
	mu   sync.Mutex
	rows map[model.Scope][]model.Memory
	err  error
}

func (f *fakeSource) build(_ context.Context, scope model.Scope) ([]model.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Memory(nil), f.rows[scope]...), nil
}

func (f *fakeSource) set(scope model.Scope, rows ...model.Memory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[scope] = rows
}

func newTestCache(t *testing.T) (*Cache, *fakeSource) {
	t.Helper()
	src := &fakeSource{rows: map[model.Scope][]model.Memory{}}
	c, err := New(src.build)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, src
}

func TestGetOrBuildCaches(t *testing.T) {
	ctx := context.Background()
	c, src := newTestCache(t)
	src.set(model.ScopeProfile, model.Memory{ID: "a"})

	got, err := c.GetOrBuild(ctx, model.ScopeProfile)
	require.NoError(t, err)
	require.Len(t, got, 1)

	src.set(model.ScopeProfile, model.Memory{ID: "a"}, model.Memory{ID: "b"})
	got, _ = c.GetOrBuild(ctx, model.ScopeProfile)
	assert.Len(t, got, 1, "expected cached snapshot until invalidated")
	assert.Equal(t, int64(1), c.Builds())
}

func TestInvalidateForcesRebuild(t *testing.T) {
	ctx := context.Background()
	c, src := newTestCache(t)
	src.set(model.ScopeProfile, model.Memory{ID: "a"})
	c.GetOrBuild(ctx, model.ScopeProfile)

	src.set(model.ScopeProfile, model.Memory{ID: "a"}, model.Memory{ID: "b"})
	c.Invalidate(model.ScopeProfile)

	got, _ := c.GetOrBuild(ctx, model.ScopeProfile)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(2), c.Builds())
}

func TestScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	c, src := newTestCache(t)
	src.set(model.ScopeProfile, model.Memory{ID: "p"})
	src.set(model.ScopeGlobal, model.Memory{ID: "g"})
	c.GetOrBuild(ctx, model.ScopeProfile)
	c.GetOrBuild(ctx, model.ScopeGlobal)

	c.Invalidate(model.ScopeGlobal)
	c.GetOrBuild(ctx, model.ScopeProfile)
	assert.Equal(t, int64(2), c.Builds(), "profile snapshot should survive a global invalidation")
}

func TestBuildErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c, src := newTestCache(t)
	src.err = errors.New("db closed")

	_, err := c.GetOrBuild(ctx, model.ScopeProfile)
	assert.Error(t, err)

	src.err = nil
	src.set(model.ScopeProfile, model.Memory{ID: "a"})
	got, err := c.GetOrBuild(ctx, model.ScopeProfile)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStaleBuildIsNotStored(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{rows: map[model.Scope][]model.Memory{}}
	var c *Cache
	first := true
	c, err := New(func(ctx context.Context, scope model.Scope) ([]model.Memory, error) {
		rows, _ := src.build(ctx, scope)
		if first {
			first = false
			c.Invalidate(scope) // a write lands mid-build
		}
		return rows, nil
	})
	require.NoError(t, err)
	defer c.Close()

	c.GetOrBuild(ctx, model.ScopeProfile)
	c.GetOrBuild(ctx, model.ScopeProfile)
	assert.Equal(t, int64(2), c.Builds())
}

func TestTouchCopyOnWrite(t *testing.T) {
	ctx := context.Background()
	c, src := newTestCache(t)
	src.set(model.ScopeProfile, model.Memory{ID: "a"}, model.Memory{ID: "b"})

	before, _ := c.GetOrBuild(ctx, model.ScopeProfile)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.Touch(model.ScopeProfile, []string{"b"}, at)

	after, _ := c.GetOrBuild(ctx, model.ScopeProfile)
	assert.Equal(t, 0, before[1].AccessCount, "old snapshot must not change")
	assert.Equal(t, 1, after[1].AccessCount)
	require.NotNil(t, after[1].LastAccessedAt)
	assert.True(t, after[1].LastAccessedAt.Equal(at))
	assert.Equal(t, 0, after[0].AccessCount)
	assert.Equal(t, int64(1), c.Builds())
}
