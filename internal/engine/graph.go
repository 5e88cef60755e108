package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
)

// DefaultRelationship is used when a link names none.
const DefaultRelationship = "related_to"

// LinkView is an edge with the titles of its endpoints. Missing is set when
// the far endpoint no longer exists.
type LinkView struct {
	model.Link
	SourceTitle string `json:"source_title"`
	TargetTitle string `json:"target_title"`
	Missing     bool   `json:"missing,omitempty"`
}

// Neighborhood lists the edges of one memory.
type Neighborhood struct {
	Memory   model.Brief `json:"memory"`
	Outgoing []LinkView  `json:"outgoing"`
	Incoming []LinkView  `json:"incoming"`
}

// Link creates or retypes the edge source -> target. Links live in the
// profile store and may point at global memories.
func (e *Engine) Link(ctx context.Context, sourceRef, targetRef, rel string) (*LinkView, error) {
	if rel == "" {
		rel = DefaultRelationship
	}
	if !model.ValidRelationships[rel] {
		return nil, fmt.Errorf("invalid relationship %q", rel)
	}
	src, err := e.resolve(ctx, sourceRef)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	tgt, err := e.resolve(ctx, targetRef)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if src.ID == tgt.ID {
		return nil, fmt.Errorf("cannot link a memory to itself")
	}

	l, err := e.local.UpsertLink(ctx, src.ID, tgt.ID, rel, e.now())
	if err != nil {
		return nil, err
	}
	return &LinkView{Link: *l, SourceTitle: src.Title, TargetTitle: tgt.Title}, nil
}

// Links returns outgoing and incoming edges of a memory.
func (e *Engine) Links(ctx context.Context, ref string) (*Neighborhood, error) {
	m, err := e.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	out, in, err := e.local.LinksFor(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	n := &Neighborhood{Memory: m.Brief(), Outgoing: []LinkView{}, Incoming: []LinkView{}}
	titles := map[string]string{m.ID: m.Title}
	for _, l := range out {
		n.Outgoing = append(n.Outgoing, e.view(ctx, l, titles))
	}
	for _, l := range in {
		n.Incoming = append(n.Incoming, e.view(ctx, l, titles))
	}
	return n, nil
}

func (e *Engine) view(ctx context.Context, l model.Link, titles map[string]string) LinkView {
	v := LinkView{Link: l}
	for _, id := range []string{l.SourceID, l.TargetID} {
		if _, ok := titles[id]; ok {
			continue
		}
		titles[id] = ""
		if other, err := e.resolve(ctx, id); err == nil {
			titles[id] = other.Title
		}
	}
	v.SourceTitle, v.TargetTitle = titles[l.SourceID], titles[l.TargetID]
	if v.SourceTitle == "" || v.TargetTitle == "" {
		v.Missing = true
	}
	return v
}

// Unlink removes the edge source -> target. It reports store.ErrNotFound when
// there is no such edge.
func (e *Engine) Unlink(ctx context.Context, sourceRef, targetRef string) error {
	srcID, err := e.linkEndpoint(ctx, sourceRef)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	tgtID, err := e.linkEndpoint(ctx, targetRef)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	ok, err := e.local.DeleteLink(ctx, srcID, tgtID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("link %s -> %s: %w", model.ShortID(srcID), model.ShortID(tgtID), store.ErrNotFound)
	}
	return nil
}

// linkEndpoint resolves a reference, falling back to the raw id so a link to
// a memory that is already gone can still be removed.
func (e *Engine) linkEndpoint(ctx context.Context, ref string) (string, error) {
	m, err := e.resolve(ctx, ref)
	if err == nil {
		return m.ID, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return ref, nil
	}
	return "", err
}
