package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rcliao/memory-engine/internal/embedding"
	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
)

const (
	DefaultSimilarLimit   = 5
	DefaultMergeThreshold = 0.9
	DefaultPruneDays      = 60
)

// Similar is a neighbor with its similarity as a percentage.
type Similar struct {
	model.Brief
	Similarity float64 `json:"similarity"`
}

// SimilarResult lists the nearest neighbors of a memory.
type SimilarResult struct {
	Target  model.Brief `json:"target"`
	Similar []Similar   `json:"similar"`
}

// FindSimilar ranks every other memory in the target's scope by cosine
// similarity to it. A side without a vector scores zero.
func (e *Engine) FindSimilar(ctx context.Context, ref string, limit int) (*SimilarResult, error) {
	target, err := e.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	neighbors, err := e.neighbors(ctx, target)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, DefaultSimilarLimit, MaxSearchLimit)
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return &SimilarResult{Target: target.Brief(), Similar: neighbors}, nil
}

type scored struct {
	memory model.Memory
	sim    float64
}

func (e *Engine) neighbors(ctx context.Context, target *model.Memory) ([]Similar, error) {
	ranked, err := e.rank(ctx, target)
	if err != nil {
		return nil, err
	}
	out := make([]Similar, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, Similar{Brief: r.memory.Brief(), Similarity: percent(r.sim)})
	}
	return out, nil
}

func (e *Engine) rank(ctx context.Context, target *model.Memory) ([]scored, error) {
	memories, err := e.cache.GetOrBuild(ctx, target.Scope)
	if err != nil {
		return nil, err
	}
	ranked := make([]scored, 0, len(memories))
	for _, m := range memories {
		if m.ID == target.ID {
			continue
		}
		ranked = append(ranked, scored{memory: m, sim: embedding.CosineSimilarity(target.Embedding, m.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		return ranked[i].memory.ID < ranked[j].memory.ID
	})
	return ranked, nil
}

func percent(sim float64) float64 {
	return math.Round(sim*1000) / 10
}

// MergeParams controls a merge. DryRun defaults to true at the tool surface.
type MergeParams struct {
	Threshold float64
	DryRun    bool
}

// MergeResult previews or reports a merge.
type MergeResult struct {
	Target    model.Brief `json:"target"`
	Threshold float64     `json:"threshold"`
	DryRun    bool        `json:"dry_run"`
	Matches   []Similar   `json:"matches"`
	Merged    int         `json:"merged"`
	Tags      []string    `json:"tags,omitempty"`
}

// Merge folds memories more similar than the threshold into the target. The
// target keeps its own content and takes the union of tags and the sum of
// access counts; the duplicates are deleted.
func (e *Engine) Merge(ctx context.Context, ref string, p MergeParams) (*MergeResult, error) {
	if p.Threshold <= 0 {
		p.Threshold = DefaultMergeThreshold
	}
	if p.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be within (0,1], got %v", p.Threshold)
	}
	target, err := e.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	ranked, err := e.rank(ctx, target)
	if err != nil {
		return nil, err
	}

	res := &MergeResult{Target: target.Brief(), Threshold: p.Threshold, DryRun: p.DryRun, Matches: []Similar{}}
	tags := append([]string(nil), target.Tags...)
	var ids []string
	delta := 0
	for _, r := range ranked {
		if r.sim <= p.Threshold {
			break
		}
		res.Matches = append(res.Matches, Similar{Brief: r.memory.Brief(), Similarity: percent(r.sim)})
		ids = append(ids, r.memory.ID)
		tags = append(tags, r.memory.Tags...)
		delta += r.memory.AccessCount
	}
	res.Tags = cleanTags(tags)
	if p.DryRun || len(ids) == 0 {
		return res, nil
	}

	err = e.write(ctx, target.Scope, func(ctx context.Context, st *store.SQLiteStore) error {
		n, err := st.AbsorbMemories(ctx, store.AbsorbParams{
			TargetID:    target.ID,
			Tags:        res.Tags,
			AccessDelta: delta,
			RemoveIDs:   ids,
			At:          e.now(),
		})
		res.Merged = n
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := e.dropCrossLinks(ctx, target.Scope, ids); err != nil {
		return nil, err
	}
	e.log.Info("merged duplicates", "target", target.ShortID(), "merged", res.Merged)
	return res, nil
}

// PruneParams selects stale memories.
type PruneParams struct {
	Days   int
	DryRun bool
	Scope  model.Scope
}

// PruneResult previews or reports a prune.
type PruneResult struct {
	Scope      model.Scope   `json:"scope"`
	Days       int           `json:"days"`
	DryRun     bool          `json:"dry_run"`
	Candidates []model.Brief `json:"candidates"`
	Pruned     int           `json:"pruned"`
}

// Prune deletes memories that were never accessed and are older than Days.
// Accessed memories are never candidates, whatever their age.
func (e *Engine) Prune(ctx context.Context, p PruneParams) (*PruneResult, error) {
	if p.Days <= 0 {
		p.Days = DefaultPruneDays
	}
	if p.Scope == "" {
		p.Scope = model.ScopeProfile
	}
	if err := validScope(p.Scope, true); err != nil {
		return nil, err
	}
	cutoff := e.now().Add(-time.Duration(p.Days) * 24 * time.Hour)

	res := &PruneResult{Scope: p.Scope, Days: p.Days, DryRun: p.DryRun, Candidates: []model.Brief{}}
	for _, s := range e.scopes(p.Scope) {
		candidates, err := e.storeFor(s).PruneCandidates(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, m := range candidates {
			m.Scope = s
			res.Candidates = append(res.Candidates, m.Brief())
			ids = append(ids, m.ID)
		}
		if p.DryRun || len(ids) == 0 {
			continue
		}
		if err := e.remove(ctx, s, ids); err != nil {
			return nil, err
		}
		res.Pruned += len(ids)
	}
	if !p.DryRun && res.Pruned > 0 {
		e.log.Info("pruned stale memories", "scope", p.Scope, "days", p.Days, "pruned", res.Pruned)
	}
	return res, nil
}
