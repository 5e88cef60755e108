package engine

import (
	"context"
	"fmt"

	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
)

// Export returns every memory in the scope, oldest first.
func (e *Engine) Export(ctx context.Context, scope model.Scope) ([]model.Memory, error) {
	if scope == "" {
		scope = model.ScopeAll
	}
	if err := validScope(scope, true); err != nil {
		return nil, err
	}
	out := []model.Memory{}
	for _, s := range e.scopes(scope) {
		memories, err := e.storeFor(s).ExportAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range memories {
			m.Scope = s
			out = append(out, m)
		}
	}
	return out, nil
}

// Import stores exported memories, keeping their ids, timestamps and access
// counts. Vectors are not exported, so each memory is embedded again. A
// memory goes to its recorded scope unless scope overrides it.
func (e *Engine) Import(ctx context.Context, memories []model.Memory, scope model.Scope) (int, error) {
	if err := validScope(scope, false); err != nil {
		return 0, err
	}
	byScope := map[model.Scope][]model.Memory{}
	for _, m := range memories {
		if !model.ValidKinds[string(m.Kind)] {
			return 0, fmt.Errorf("memory %s: invalid kind %q", m.ID, m.Kind)
		}
		if m.ID == "" {
			return 0, fmt.Errorf("memory %q has no id", m.Title)
		}
		target := scope
		if target == "" {
			target = m.Scope
		}
		if target != model.ScopeGlobal {
			target = model.ScopeProfile
		}
		target = e.normScope(target)
		m.Scope = target
		if !m.HasEmbedding() {
			m.Embedding = e.embed.Embed(ctx, embedText(m.Title, m.Content))
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = e.now()
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = m.CreatedAt
		}
		byScope[target] = append(byScope[target], m)
	}

	total := 0
	for s, batch := range byScope {
		err := e.write(ctx, s, func(ctx context.Context, st *store.SQLiteStore) error {
			n, err := st.Import(ctx, batch)
			total += n
			return err
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
