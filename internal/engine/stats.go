package engine

import (
	"context"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
)

// ScopeStats are one store's statistics.
type ScopeStats struct {
	Scope model.Scope `json:"scope"`
	*store.Stats
	DBSize string `json:"db_size"`
}

// StatsResult aggregates the stores of a scope.
type StatsResult struct {
	Profile       string         `json:"profile"`
	Scope         model.Scope    `json:"scope"`
	TotalMemories int            `json:"total_memories"`
	ByKind        map[string]int `json:"by_kind"`
	NeverAccessed int            `json:"never_accessed"`
	TopAccessed   []model.Brief  `json:"top_accessed"`
	Stores        []ScopeStats   `json:"stores"`
}

// Stats reports counts for the given scope.
func (e *Engine) Stats(ctx context.Context, scope model.Scope) (*StatsResult, error) {
	if scope == "" {
		scope = model.ScopeAll
	}
	if err := validScope(scope, true); err != nil {
		return nil, err
	}

	res := &StatsResult{
		Profile:     e.profile.Name,
		Scope:       scope,
		ByKind:      map[string]int{},
		TopAccessed: []model.Brief{},
	}
	for _, s := range e.scopes(scope) {
		st, err := e.storeFor(s).Stats(ctx)
		if err != nil {
			return nil, err
		}
		res.TotalMemories += st.TotalMemories
		res.NeverAccessed += st.NeverAccessed
		for k, n := range st.ByKind {
			res.ByKind[k] += n
		}
		for _, b := range st.TopAccessed {
			b.Scope = s
			res.TopAccessed = append(res.TopAccessed, b)
		}
		res.Stores = append(res.Stores, ScopeStats{
			Scope:  s,
			Stats:  st,
			DBSize: humanize.Bytes(uint64(st.DBSizeBytes)),
		})
	}

	sort.SliceStable(res.TopAccessed, func(i, j int) bool {
		return res.TopAccessed[i].AccessCount > res.TopAccessed[j].AccessCount
	})
	if len(res.TopAccessed) > 5 {
		res.TopAccessed = res.TopAccessed[:5]
	}
	return res, nil
}
