package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
)

const (
	DefaultDecisionLimit = 10
	MaxDecisionLimit     = 50
)

// DecisionParams describes a technical choice.
type DecisionParams struct {
	Decision     string
	Context      string
	Rationale    string
	Alternatives []string
}

// LogDecision records a decision, tied to the active session when there is one.
func (e *Engine) LogDecision(ctx context.Context, p DecisionParams) (*model.Decision, error) {
	if strings.TrimSpace(p.Decision) == "" {
		return nil, fmt.Errorf("decision is required")
	}
	d := &model.Decision{
		Decision:     strings.TrimSpace(p.Decision),
		Context:      p.Context,
		Rationale:    p.Rationale,
		Alternatives: cleanTags(p.Alternatives),
		CreatedAt:    e.now(),
	}
	if len(d.Alternatives) == 0 {
		d.Alternatives = nil
	}

	sess, err := e.local.ActiveSession(ctx)
	switch {
	case err == nil:
		d.SessionID = sess.ID
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if err := e.local.InsertDecision(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SearchDecisions matches decision and context text, newest first.
func (e *Engine) SearchDecisions(ctx context.Context, query string, limit int) ([]model.Decision, error) {
	return e.local.SearchDecisions(ctx, query, clampLimit(limit, DefaultDecisionLimit, MaxDecisionLimit))
}
