// Package engine is the memory engine's context object: it owns the profile
// and global stores, the embedding service and the snapshot cache, and
// implements every operation the tool surface exposes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rcliao/memory-engine/internal/cache"
	"github.com/rcliao/memory-engine/internal/embedding"
	"github.com/rcliao/memory-engine/internal/logging"
	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/profile"
	"github.com/rcliao/memory-engine/internal/store"
)

// Options configures an Engine.
type Options struct {
	Profile     profile.Profile
	ProfilesDir string
	DataDir     string
	Embedder    *embedding.Service
	Clock       func() time.Time
}

// Engine is safe for concurrent use.
type Engine struct {
	profile     profile.Profile
	profilesDir string
	dataDir     string

	local  *store.SQLiteStore
	global *store.SQLiteStore
	embed  *embedding.Service
	cache  *cache.Cache
	now    func() time.Time
	log    *log.Logger
}

// New opens the profile store and the global store. When the profile is the
// global profile both are the same database.
func New(opts Options) (*Engine, error) {
	if opts.Profile.Name == "" {
		opts.Profile = profile.Profile{Name: profile.Global, Source: profile.SourceDefault}
	}
	if opts.Embedder == nil {
		opts.Embedder = embedding.NewService(nil, embedding.ServiceOptions{})
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := &Engine{
		profile:     opts.Profile,
		profilesDir: opts.ProfilesDir,
		dataDir:     opts.DataDir,
		embed:       opts.Embedder,
		now:         func() time.Time { return opts.Clock().UTC() },
		log:         logging.For("engine").With("profile", opts.Profile.Name),
	}

	var err error
	e.global, err = store.NewSQLiteStore(e.dbPath(profile.Global))
	if err != nil {
		return nil, fmt.Errorf("open global store: %w", err)
	}
	if opts.Profile.IsGlobal() {
		e.local = e.global
	} else if e.local, err = store.NewSQLiteStore(e.dbPath(opts.Profile.Name)); err != nil {
		e.global.Close()
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	if e.cache, err = cache.New(e.loadScope); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// CacheBuilds counts snapshot rebuilds since start.
func (e *Engine) CacheBuilds() int64 {
	return e.cache.Builds()
}

// EmbeddingReady reports whether semantic search is available right now.
func (e *Engine) EmbeddingReady() bool {
	return e.embed.Status() == embedding.StatusReady
}

func (e *Engine) dbPath(name string) string {
	return filepath.Join(e.profilesDir, name+".db")
}

// Close releases the stores and the cache.
func (e *Engine) Close() error {
	if e.cache != nil {
		e.cache.Close()
	}
	var errs []error
	if e.local != nil && e.local != e.global {
		errs = append(errs, e.local.Close())
	}
	if e.global != nil {
		errs = append(errs, e.global.Close())
	}
	return errors.Join(errs...)
}

// Profile is the resolved profile this engine serves.
func (e *Engine) Profile() profile.Profile {
	return e.profile
}

// normScope folds the profile scope onto global when the profile is global.
func (e *Engine) normScope(s model.Scope) model.Scope {
	if s == "" {
		s = model.ScopeProfile
	}
	if s == model.ScopeProfile && e.profile.IsGlobal() {
		return model.ScopeGlobal
	}
	return s
}

// scopes expands a read scope into the distinct stores it covers.
func (e *Engine) scopes(s model.Scope) []model.Scope {
	switch s {
	case model.ScopeAll, "":
		if e.profile.IsGlobal() {
			return []model.Scope{model.ScopeGlobal}
		}
		return []model.Scope{model.ScopeProfile, model.ScopeGlobal}
	default:
		return []model.Scope{e.normScope(s)}
	}
}

func (e *Engine) storeFor(s model.Scope) *store.SQLiteStore {
	if e.normScope(s) == model.ScopeGlobal {
		return e.global
	}
	return e.local
}

func (e *Engine) loadScope(ctx context.Context, s model.Scope) ([]model.Memory, error) {
	memories, err := e.storeFor(s).AllMemories(ctx)
	if err != nil {
		return nil, err
	}
	for i := range memories {
		memories[i].Scope = s
	}
	return memories, nil
}

// write runs a mutation against one scope's store and invalidates that
// scope's snapshot before returning, whether or not the mutation failed.
func (e *Engine) write(ctx context.Context, s model.Scope, fn func(ctx context.Context, st *store.SQLiteStore) error) error {
	s = e.normScope(s)
	defer e.cache.Invalidate(s)
	return fn(ctx, e.storeFor(s))
}

// resolve finds a memory by full or short id, profile store first.
func (e *Engine) resolve(ctx context.Context, ref string) (*model.Memory, error) {
	var notFound error
	for _, s := range e.scopes(model.ScopeAll) {
		m, err := e.storeFor(s).ResolveMemory(ctx, ref)
		if err == nil {
			m.Scope = s
			return m, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		notFound = err
	}
	return nil, notFound
}

func validScope(s model.Scope, allowAll bool) error {
	switch s {
	case "", model.ScopeProfile, model.ScopeGlobal:
		return nil
	case model.ScopeAll:
		if allowAll {
			return nil
		}
	}
	return fmt.Errorf("invalid scope %q", s)
}
