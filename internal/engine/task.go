package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
	"github.com/rcliao/memory-engine/internal/textutil"
)

// Task result statuses.
const (
	StatusStarted   = "started"
	StatusLogged    = "logged"
	StatusActive    = "active"
	StatusNoSession = "no_session"
	StatusBlocked   = "blocked"
	StatusWarning   = "warning"
	StatusComplete  = "complete"
)

const (
	beginSearchLimit   = 5
	beginDecisionLimit = 3
	defaultImportance  = "normal"
)

// BeginResult opens a session and carries advisory context for it.
type BeginResult struct {
	Status         string           `json:"status"`
	SessionID      string           `json:"session_id"`
	Phase          string           `json:"phase"`
	Task           string           `json:"task"`
	ClosedSessions []string         `json:"closed_sessions,omitempty"`
	SearchMode     string           `json:"search_mode,omitempty"`
	Memories       []SearchHit      `json:"relevant_memories"`
	Decisions      []model.Decision `json:"relevant_decisions"`
}

// BeginTask ends any active session, starts a new one and surfaces related
// memories and decisions. Lookup failures are logged and leave the advisory
// lists empty.
func (e *Engine) BeginTask(ctx context.Context, summary string) (*BeginResult, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil, fmt.Errorf("task summary is required")
	}

	sess, closed, err := e.local.BeginSession(ctx, summary, model.InitialPhase, e.now())
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	if len(closed) > 0 {
		e.log.Info("ended previous session", "closed", closed, "session", sess.ID)
	}

	res := &BeginResult{
		Status:         StatusStarted,
		SessionID:      sess.ID,
		Phase:          sess.Phase,
		Task:           summary,
		ClosedSessions: closed,
		Memories:       []SearchHit{},
		Decisions:      []model.Decision{},
	}

	if found, err := e.Search(ctx, SearchParams{Query: summary, Limit: beginSearchLimit, Scope: model.ScopeAll}); err != nil {
		e.log.Warn("advisory search failed", "err", err)
	} else {
		res.SearchMode = found.Mode
		res.Memories = found.Hits
	}
	if decisions, err := e.local.MatchDecisions(ctx, textutil.SignificantTerms(summary), beginDecisionLimit); err != nil {
		e.log.Warn("advisory decision search failed", "err", err)
	} else {
		res.Decisions = decisions
	}
	return res, nil
}

// CheckpointParams is one progress note.
type CheckpointParams struct {
	Note       string
	Importance string
	Phase      string
}

// CheckpointResult reports the log length after appending.
type CheckpointResult struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Count     int    `json:"checkpoint_count"`
	Message   string `json:"message,omitempty"`
}

// Checkpoint appends to the active session's log.
func (e *Engine) Checkpoint(ctx context.Context, p CheckpointParams) (*CheckpointResult, error) {
	if strings.TrimSpace(p.Note) == "" {
		return nil, fmt.Errorf("note is required")
	}
	if p.Importance == "" {
		p.Importance = defaultImportance
	}
	if !model.ValidImportance[p.Importance] {
		return nil, fmt.Errorf("invalid importance %q", p.Importance)
	}

	sess, err := e.local.ActiveSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &CheckpointResult{Status: StatusNoSession, Message: "No active session. Call begin_task first."}, nil
	}
	if err != nil {
		return nil, err
	}

	phase := strings.TrimSpace(p.Phase)
	cpPhase := phase
	if cpPhase == "" {
		cpPhase = sess.Phase
	}
	n, err := e.local.AddCheckpoint(ctx, model.Checkpoint{
		SessionID:  sess.ID,
		Phase:      cpPhase,
		Note:       p.Note,
		Importance: p.Importance,
		CreatedAt:  e.now(),
	})
	if err != nil {
		return nil, err
	}
	return &CheckpointResult{Status: StatusLogged, SessionID: sess.ID, Phase: cpPhase, Count: n}, nil
}

// EndParams asserts how the task went.
type EndParams struct {
	Summary   string
	Fulfilled bool
	Verified  bool
}

// EndResult is complete, blocked, warning or no_session.
type EndResult struct {
	Status      string   `json:"status"`
	SessionID   string   `json:"session_id,omitempty"`
	Message     string   `json:"message"`
	Remaining   string   `json:"remaining,omitempty"`
	Checkpoints int      `json:"checkpoint_count"`
	WorkSummary []string `json:"work_summary,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// EndTask closes the active session only when the caller asserts the task is
// fulfilled and at least one checkpoint was logged.
func (e *Engine) EndTask(ctx context.Context, p EndParams) (*EndResult, error) {
	sess, err := e.local.ActiveSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &EndResult{Status: StatusNoSession, Message: "No active session to end."}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &EndResult{SessionID: sess.ID, Checkpoints: len(sess.Checkpoints)}
	switch {
	case !p.Fulfilled:
		res.Status = StatusBlocked
		res.Remaining = p.Summary
		res.Message = "The original request is not fulfilled. The session stays active; finish the remaining work, then call end_task again."
		return res, nil
	case len(sess.Checkpoints) == 0:
		res.Status = StatusWarning
		res.Message = "No checkpoints were logged for this session. Record the work done with checkpoint before ending the task."
		return res, nil
	}

	if err := e.local.EndSession(ctx, sess.ID, p.Summary, e.now()); err != nil {
		return nil, err
	}
	res.Status = StatusComplete
	res.Message = "Task complete."
	for _, cp := range sess.Checkpoints {
		res.WorkSummary = append(res.WorkSummary, fmt.Sprintf("[%s] %s", cp.Phase, cp.Note))
	}
	if !p.Verified {
		res.Note = "Completion was not verified. Consider running tests or checking the result."
	}
	return res, nil
}

// TaskStatus reports the active session, if any.
type TaskStatus struct {
	Status  string         `json:"status"`
	Session *model.Session `json:"session,omitempty"`
}

// TaskStatus returns the active session with its checkpoints.
func (e *Engine) TaskStatus(ctx context.Context) (*TaskStatus, error) {
	sess, err := e.local.ActiveSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &TaskStatus{Status: StatusNoSession}, nil
	}
	if err != nil {
		return nil, err
	}
	return &TaskStatus{Status: StatusActive, Session: sess}, nil
}
