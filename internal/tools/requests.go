// Package tools exposes the engine as MCP tools. Every call is decoded into a
// typed request, validated, and routed by a Dispatcher.
package tools

// Tool names.
const (
	ToolBeginTask      = "begin_task"
	ToolEndTask        = "end_task"
	ToolCheckpoint     = "checkpoint"
	ToolTaskStatus     = "task_status"
	ToolMemorySave     = "memory_save"
	ToolMemorySearch   = "memory_search"
	ToolMemoryUpdate   = "memory_update"
	ToolMemoryForget   = "memory_forget"
	ToolMemoryLink     = "memory_link"
	ToolMemoryStats    = "memory_stats"
	ToolMemoryMaintain = "memory_maintain"
	ToolDecisionLog    = "decision_log"
	ToolDecisionSearch = "decision_search"
	ToolProfileInfo    = "profile_info"
)

// Request is one decoded tool call.
type Request interface {
	Tool() string
}

type BeginTaskRequest struct {
	Task string `json:"task" validate:"required"`
}

type EndTaskRequest struct {
	Summary   string `json:"summary" validate:"required"`
	Fulfilled *bool  `json:"fulfilled" validate:"required"`
	Verified  bool   `json:"verified"`
}

type CheckpointRequest struct {
	Note       string `json:"note" validate:"required"`
	Importance string `json:"importance" validate:"omitempty,oneof=low normal high critical"`
	Phase      string `json:"phase"`
}

type TaskStatusRequest struct{}

type SaveRequest struct {
	Kind       string   `json:"kind" validate:"required,oneof=semantic procedural episodic skill"`
	Category   string   `json:"category"`
	Title      string   `json:"title" validate:"required"`
	Content    string   `json:"content" validate:"required"`
	Tags       []string `json:"tags"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Scope      string   `json:"scope" validate:"omitempty,oneof=profile global"`
}

type SearchRequest struct {
	Query string   `json:"query" validate:"required"`
	Kinds []string `json:"kinds" validate:"omitempty,dive,oneof=semantic procedural episodic skill"`
	Limit int      `json:"limit" validate:"omitempty,min=1,max=50"`
	Scope string   `json:"scope" validate:"omitempty,oneof=profile global all"`
}

type UpdateRequest struct {
	ID         string   `json:"id" validate:"required"`
	Title      *string  `json:"title"`
	Category   *string  `json:"category"`
	Content    *string  `json:"content"`
	Tags       []string `json:"tags"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

type ForgetRequest struct {
	ID     string `json:"id" validate:"required"`
	Reason string `json:"reason"`
}

// LinkRequest covers create, list and delete. Target is unused by list.
type LinkRequest struct {
	Action       string `json:"action" validate:"required,oneof=create list delete"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required_unless=Action list"`
	Relationship string `json:"relationship" validate:"omitempty,oneof=related_to depends_on supersedes example_of"`
}

type StatsRequest struct {
	Scope string `json:"scope" validate:"omitempty,oneof=profile global all"`
}

// MaintainRequest covers find_similar, merge and prune. DryRun defaults to
// true when omitted.
type MaintainRequest struct {
	Action    string  `json:"action" validate:"required,oneof=find_similar merge prune"`
	ID        string  `json:"id" validate:"required_unless=Action prune"`
	Limit     int     `json:"limit" validate:"omitempty,min=1,max=50"`
	Threshold float64 `json:"threshold" validate:"omitempty,gt=0,lte=1"`
	Days      int     `json:"days_threshold" validate:"omitempty,min=1"`
	DryRun    *bool   `json:"dry_run"`
	Scope     string  `json:"scope" validate:"omitempty,oneof=profile global all"`
}

type DecisionLogRequest struct {
	Decision     string   `json:"decision" validate:"required"`
	Context      string   `json:"context"`
	Rationale    string   `json:"rationale"`
	Alternatives []string `json:"alternatives"`
}

type DecisionSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=50"`
}

type ProfileInfoRequest struct{}

func (BeginTaskRequest) Tool() string { return ToolBeginTask }
func (EndTaskRequest) Tool() string { return ToolEndTask }
func (CheckpointRequest) Tool() string { return ToolCheckpoint }
func (TaskStatusRequest) Tool() string { return ToolTaskStatus }
func (SaveRequest) Tool() string { return ToolMemorySave }
func (SearchRequest) Tool() string { return ToolMemorySearch }
func (UpdateRequest) Tool() string { return ToolMemoryUpdate }
func (ForgetRequest) Tool() string { return ToolMemoryForget }
func (LinkRequest) Tool() string { return ToolMemoryLink }
func (StatsRequest) Tool() string { return ToolMemoryStats }
func (MaintainRequest) Tool() string { return ToolMemoryMaintain }
func (DecisionLogRequest) Tool() string { return ToolDecisionLog }
func (DecisionSearchRequest) Tool() string { return ToolDecisionSearch }
func (ProfileInfoRequest) Tool() string { return ToolProfileInfo }

func dryRun(p *bool) bool {
	return p == nil || *p
}
