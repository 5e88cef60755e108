package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
	"github.com/rcliao/memory-engine/internal/textutil"
)

// SaveParams describes a new memory.
type SaveParams struct {
	Kind       model.Kind
	Category   string
	Title      string
	Content    string
	Tags       []string
	Confidence *float64
	Scope      model.Scope
}

// Save stores a new memory. Tags default to keywords of the title and
// content; the embedding is left empty when no vector is available.
func (e *Engine) Save(ctx context.Context, p SaveParams) (*model.Memory, error) {
	if !model.ValidKinds[string(p.Kind)] {
		return nil, fmt.Errorf("invalid kind %q", p.Kind)
	}
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Content) == "" {
		return nil, fmt.Errorf("title and content are required")
	}
	if err := validScope(p.Scope, false); err != nil {
		return nil, err
	}
	confidence := 1.0
	if p.Confidence != nil {
		confidence = *p.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence must be within [0,1], got %v", confidence)
	}

	tags := cleanTags(p.Tags)
	if len(tags) == 0 {
		tags = textutil.Keywords(p.Title+" "+p.Content, textutil.DefaultKeywords)
	}

	now := e.now()
	m := &model.Memory{
		ID:         uuid.NewString(),
		Kind:       p.Kind,
		Category:   strings.TrimSpace(p.Category),
		Title:      strings.TrimSpace(p.Title),
		Content:    p.Content,
		Tags:       tags,
		Confidence: confidence,
		Embedding:  e.embed.Embed(ctx, embedText(p.Title, p.Content)),
		CreatedAt:  now,
		UpdatedAt:  now,
		Scope:      e.normScope(p.Scope),
	}

	err := e.write(ctx, m.Scope, func(ctx context.Context, st *store.SQLiteStore) error {
		return st.InsertMemory(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug("memory saved", "id", m.ShortID(), "kind", m.Kind, "scope", m.Scope, "embedded", m.HasEmbedding())
	return m, nil
}

// Get fetches a memory by full or short id without counting an access.
func (e *Engine) Get(ctx context.Context, ref string) (*model.Memory, error) {
	return e.resolve(ctx, ref)
}

// UpdateParams holds optional changes; nil fields are left as they are.
type UpdateParams struct {
	ID         string
	Title      *string
	Category   *string
	Content    *string
	Tags       []string
	Confidence *float64
}

// Update changes a memory in place. A changed title or content is re-embedded.
func (e *Engine) Update(ctx context.Context, p UpdateParams) (*model.Memory, error) {
	m, err := e.resolve(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	reembed := false
	if p.Title != nil && strings.TrimSpace(*p.Title) != m.Title {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, fmt.Errorf("title cannot be empty")
		}
		m.Title = strings.TrimSpace(*p.Title)
		reembed = true
	}
	if p.Content != nil && *p.Content != m.Content {
		if strings.TrimSpace(*p.Content) == "" {
			return nil, fmt.Errorf("content cannot be empty")
		}
		m.Content = *p.Content
		reembed = true
	}
	if p.Category != nil {
		m.Category = strings.TrimSpace(*p.Category)
	}
	if p.Tags != nil {
		m.Tags = cleanTags(p.Tags)
	}
	if p.Confidence != nil {
		if *p.Confidence < 0 || *p.Confidence > 1 {
			return nil, fmt.Errorf("confidence must be within [0,1], got %v", *p.Confidence)
		}
		m.Confidence = *p.Confidence
	}
	if reembed {
		m.Embedding = e.embed.Embed(ctx, embedText(m.Title, m.Content))
	}
	m.UpdatedAt = e.now()

	err = e.write(ctx, m.Scope, func(ctx context.Context, st *store.SQLiteStore) error {
		return st.UpdateMemory(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ForgetResult confirms a deletion.
type ForgetResult struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Scope  model.Scope `json:"scope"`
	Reason string      `json:"reason,omitempty"`
}

// Forget deletes a memory and every link touching it.
func (e *Engine) Forget(ctx context.Context, ref, reason string) (*ForgetResult, error) {
	m, err := e.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := e.remove(ctx, m.Scope, []string{m.ID}); err != nil {
		return nil, err
	}
	e.log.Info("memory forgotten", "id", m.ShortID(), "title", m.Title, "reason", reason)
	return &ForgetResult{ID: m.ID, Title: m.Title, Scope: m.Scope, Reason: reason}, nil
}

// remove deletes memories from one scope. Links are kept in the profile store,
// so removing global memories also clears links that point at them from here.
func (e *Engine) remove(ctx context.Context, s model.Scope, ids []string) error {
	err := e.write(ctx, s, func(ctx context.Context, st *store.SQLiteStore) error {
		_, err := st.DeleteMemories(ctx, ids)
		return err
	})
	if err != nil {
		return err
	}
	return e.dropCrossLinks(ctx, s, ids)
}

func (e *Engine) dropCrossLinks(ctx context.Context, s model.Scope, ids []string) error {
	if e.storeFor(s) == e.local {
		return nil
	}
	if _, err := e.local.DeleteLinksTouching(ctx, ids...); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	return nil
}

func embedText(title, content string) string {
	return title + "\n" + content
}

// cleanTags trims and de-duplicates tags, keeping order.
func cleanTags(tags []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
