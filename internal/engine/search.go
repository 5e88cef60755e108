package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rcliao/memory-engine/internal/embedding"
	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
	"github.com/rcliao/memory-engine/internal/textutil"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// Search modes.
const (
	ModeSemantic = "semantic"
	ModeLexical  = "lexical"
)

// SearchParams selects candidates and bounds the result.
type SearchParams struct {
	Query string
	Kinds []model.Kind
	Limit int
	Scope model.Scope
}

// Components are the terms of a hybrid relevance score.
type Components struct {
	Semantic     float64 `json:"semantic"`
	KeywordBoost float64 `json:"keyword_boost"`
	AccessBoost  float64 `json:"access_boost"`
	Decay        float64 `json:"decay"`
	Score        float64 `json:"score"`
}

// SearchHit is a ranked memory. Access fields reflect the hit itself.
type SearchHit struct {
	model.Memory
	Components
}

// SearchResult is a ranked list and the mode that produced it.
type SearchResult struct {
	Mode  string      `json:"mode"`
	Query string      `json:"query"`
	Scope model.Scope `json:"scope"`
	Hits  []SearchHit `json:"hits"`
}

// Score computes the hybrid relevance of m for a query vector and the
// query's terms at time now:
//
//	score = (0.7*semantic + 0.3*keyword_boost + access_boost) * decay
func Score(m model.Memory, query embedding.Vector, terms []string, now time.Time) Components {
	var c Components
	if m.HasEmbedding() && len(m.Embedding) == len(query) {
		c.Semantic = embedding.Dot(query, m.Embedding)
	}

	if len(terms) > 0 {
		haystack := textutil.Fold(m.Title + " " + m.Content + " " + strings.Join(m.Tags, " "))
		matched := 0
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				matched++
			}
		}
		c.KeywordBoost = math.Min(0.05*float64(matched), 0.2)
	}

	c.AccessBoost = math.Min(0.01*float64(m.AccessCount), 0.1)

	days := math.Max(0, now.Sub(m.LastUsed()).Hours()/24)
	if m.AccessCount == 0 {
		c.Decay = math.Max(0.5, 1-days/60)
	} else {
		c.Decay = math.Max(0.8, 1-days/180)
	}

	c.Score = (0.7*c.Semantic + 0.3*c.KeywordBoost + c.AccessBoost) * c.Decay
	return c
}

// Search ranks memories for a query. Without a query vector it falls back to
// lexical substring matching. Every returned memory counts one access.
func (e *Engine) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if err := validScope(p.Scope, true); err != nil {
		return nil, err
	}
	if p.Scope == "" {
		p.Scope = model.ScopeAll
	}
	for _, k := range p.Kinds {
		if !model.ValidKinds[string(k)] {
			return nil, fmt.Errorf("invalid kind %q", k)
		}
	}
	p.Limit = clampLimit(p.Limit, DefaultSearchLimit, MaxSearchLimit)

	var (
		hits []SearchHit
		mode string
		err  error
	)
	if qv := e.embed.Embed(ctx, p.Query); qv != nil {
		mode = ModeSemantic
		hits, err = e.rankSemantic(ctx, p, qv)
	} else {
		mode = ModeLexical
		hits, err = e.rankLexical(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	e.recordHits(ctx, hits)
	return &SearchResult{Mode: mode, Query: p.Query, Scope: p.Scope, Hits: hits}, nil
}

func (e *Engine) rankSemantic(ctx context.Context, p SearchParams, qv embedding.Vector) ([]SearchHit, error) {
	kinds := kindSet(p.Kinds)
	terms := textutil.QueryTerms(p.Query)
	now := e.now()

	hits := []SearchHit{}
	for _, s := range e.scopes(p.Scope) {
		memories, err := e.cache.GetOrBuild(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("load %s memories: %w", s, err)
		}
		for _, m := range memories {
			if kinds != nil && !kinds[m.Kind] {
				continue
			}
			hits = append(hits, SearchHit{Memory: m, Components: Score(m, qv, terms, now)})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > p.Limit {
		hits = hits[:p.Limit]
	}
	return hits, nil
}

func (e *Engine) rankLexical(ctx context.Context, p SearchParams) ([]SearchHit, error) {
	hits := []SearchHit{}
	for _, s := range e.scopes(p.Scope) {
		memories, err := e.storeFor(s).SearchText(ctx, store.TextSearchParams{
			Query: p.Query,
			Kinds: p.Kinds,
			Limit: p.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("lexical search %s: %w", s, err)
		}
		for _, m := range memories {
			m.Scope = s
			hits = append(hits, SearchHit{Memory: m})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].AccessCount != hits[j].AccessCount {
			return hits[i].AccessCount > hits[j].AccessCount
		}
		return recency(hits[i].Memory).After(recency(hits[j].Memory))
	})
	if len(hits) > p.Limit {
		hits = hits[:p.Limit]
	}
	return hits, nil
}

func recency(m model.Memory) time.Time {
	if m.LastAccessedAt != nil {
		return *m.LastAccessedAt
	}
	return m.UpdatedAt
}

// recordHits persists one access per hit and mirrors it into the snapshots.
// A failure here is logged; the search result still stands.
func (e *Engine) recordHits(ctx context.Context, hits []SearchHit) {
	if len(hits) == 0 {
		return
	}
	now := e.now()
	byScope := map[model.Scope][]string{}
	for i := range hits {
		byScope[hits[i].Scope] = append(byScope[hits[i].Scope], hits[i].ID)
		hits[i].AccessCount++
		ts := now
		hits[i].LastAccessedAt = &ts
	}
	for s, ids := range byScope {
		if err := e.storeFor(s).RecordAccess(ctx, ids, now); err != nil {
			e.log.Warn("record access failed", "scope", s, "err", err)
			e.cache.Invalidate(s)
			continue
		}
		e.cache.Touch(s, ids, now)
	}
}

func kindSet(kinds []model.Kind) map[model.Kind]bool {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[model.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

func clampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
