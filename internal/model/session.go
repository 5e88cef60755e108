package model

import "time"

// Session is one tracked unit of agent work.
type Session struct {
	ID          string       `json:"id"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	Phase       string       `json:"phase"`
	TaskSummary string       `json:"task_summary"`
	Outcome     string       `json:"outcome,omitempty"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// Active reports whether the session has not ended.
func (s Session) Active() bool {
	return s.EndedAt == nil
}

// Checkpoint is an append-only progress note on a session.
type Checkpoint struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Phase      string    `json:"phase"`
	Note       string    `json:"note"`
	Importance string    `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// InitialPhase is the phase a new session starts in.
const InitialPhase = "understand"

// ValidImportance are the allowed checkpoint importance levels.
var ValidImportance = map[string]bool{
	"low":      true,
	"normal":   true,
	"high":     true,
	"critical": true,
}

// Decision is an immutable record of a technical choice.
type Decision struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id,omitempty"`
	Decision     string    `json:"decision"`
	Context      string    `json:"context"`
	Rationale    string    `json:"rationale"`
	Alternatives []string  `json:"alternatives,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Link is a directed, typed edge between two memories.
type Link struct {
	ID           string    `json:"id"`
	SourceID     string    `json:"source_id"`
	TargetID     string    `json:"target_id"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidRelationships are the allowed link types.
var ValidRelationships = map[string]bool{
	"related_to": true,
	"depends_on": true,
	"supersedes": true,
	"example_of": true,
}

// ToolUsage counts dispatched calls per tool.
type ToolUsage struct {
	ToolName      string    `json:"tool_name"`
	CallCount     int       `json:"call_count"`
	FirstCalledAt time.Time `json:"first_called_at"`
	LastCalledAt  time.Time `json:"last_called_at"`
}
