package tools

import (
	"context"
	"encoding/json"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

const instructions = `Persistent memory for coding work in this project.
Call begin_task when starting a unit of work; it surfaces related memories and decisions.
Record progress with checkpoint and close the task with end_task once the request is fulfilled.
Save durable knowledge with memory_save (semantic facts, procedural workflows, episodic events, skills)
and look it up with memory_search. Destructive maintenance runs only with dry_run=false.`

// NewServer registers every tool on a new MCP server.
func NewServer(d *Dispatcher) *server.MCPServer {
	s := server.NewMCPServer(
		"memory-engine",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.AddTool(beginTaskTool(), handle[BeginTaskRequest](d))
	s.AddTool(endTaskTool(), handle[EndTaskRequest](d))
	s.AddTool(checkpointTool(), handle[CheckpointRequest](d))
	s.AddTool(taskStatusTool(), handle[TaskStatusRequest](d))
	s.AddTool(saveTool(), handle[SaveRequest](d))
	s.AddTool(searchTool(), handle[SearchRequest](d))
	s.AddTool(updateTool(), handle[UpdateRequest](d))
	s.AddTool(forgetTool(), handle[ForgetRequest](d))
	s.AddTool(linkTool(), handle[LinkRequest](d))
	s.AddTool(statsTool(), handle[StatsRequest](d))
	s.AddTool(maintainTool(), handle[MaintainRequest](d))
	s.AddTool(decisionLogTool(), handle[DecisionLogRequest](d))
	s.AddTool(decisionSearchTool(), handle[DecisionSearchRequest](d))
	s.AddTool(profileInfoTool(), handle[ProfileInfoRequest](d))
	return s
}

// ServeStdio serves MCP over newline-delimited JSON-RPC until ctx is done or
// in is closed.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

// handle decodes the call's arguments into R and dispatches it. Failures are
// tool error results, never protocol errors.
func handle[R Request](d *Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, call mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req R
		if err := decode(call.GetArguments(), &req); err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}
		out, err := d.Dispatch(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return mcp.NewToolResultError("encode result: " + err.Error()), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}

func decode(args map[string]any, v any) error {
	if len(args) == 0 {
		return nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

var kindEnum = mcp.Enum("semantic", "procedural", "episodic", "skill")

func beginTaskTool() mcp.Tool {
	return mcp.NewTool(ToolBeginTask,
		mcp.WithDescription("Start a task session. Ends any active session and returns related memories and decisions."),
		mcp.WithString("task", mcp.Required(), mcp.Description("What the user asked for, in one or two sentences")),
	)
}

func endTaskTool() mcp.Tool {
	return mcp.NewTool(ToolEndTask,
		mcp.WithDescription("End the active task. Only closes when the request is fulfilled and at least one checkpoint was logged."),
		mcp.WithString("summary", mcp.Required(), mcp.Description("What was done, or what remains when not fulfilled")),
		mcp.WithBoolean("fulfilled", mcp.Required(), mcp.Description("The original request is fully satisfied")),
		mcp.WithBoolean("verified", mcp.Description("The result was verified, e.g. by running tests")),
	)
}

func checkpointTool() mcp.Tool {
	return mcp.NewTool(ToolCheckpoint,
		mcp.WithDescription("Append a progress note to the active task."),
		mcp.WithString("note", mcp.Required(), mcp.Description("What happened")),
		mcp.WithString("importance", mcp.Enum("low", "normal", "high", "critical"), mcp.Description("Defaults to normal")),
		mcp.WithString("phase", mcp.Description("New phase, e.g. understand, plan, execute, verify")),
	)
}

func taskStatusTool() mcp.Tool {
	return mcp.NewTool(ToolTaskStatus,
		mcp.WithDescription("Show the active task session and its checkpoints."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool(ToolMemorySave,
		mcp.WithDescription("Save a memory. Tags are derived from the text when omitted."),
		mcp.WithString("kind", mcp.Required(), kindEnum),
		mcp.WithString("category", mcp.Description("Free-form grouping, e.g. architecture, testing")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short label")),
		mcp.WithString("content", mcp.Required(), mcp.Description("The memory body. Skills use Trigger/Steps/Related sections")),
		mcp.WithArray("tags", mcp.WithStringItems()),
		mcp.WithNumber("confidence", mcp.Min(0), mcp.Max(1), mcp.Description("Defaults to 1.0")),
		mcp.WithString("scope", mcp.Enum("profile", "global"), mcp.Description("global memories are shared by every project")),
	)
}

func searchTool() mcp.Tool {
	return mcp.NewTool(ToolMemorySearch,
		mcp.WithDescription("Rank memories by meaning, keyword overlap, usage and recency. Falls back to text matching when embeddings are unavailable."),
		mcp.WithString("query", mcp.Required()),
		mcp.WithArray("kinds", mcp.WithStringEnumItems([]string{"semantic", "procedural", "episodic", "skill"})),
		mcp.WithNumber("limit", mcp.Min(1), mcp.Max(50), mcp.Description("Defaults to 10")),
		mcp.WithString("scope", mcp.Enum("profile", "global", "all"), mcp.Description("Defaults to all")),
	)
}

func updateTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryUpdate,
		mcp.WithDescription("Update a memory by id or 8-character short id. Changed text is re-embedded."),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("title"),
		mcp.WithString("category"),
		mcp.WithString("content"),
		mcp.WithArray("tags", mcp.WithStringItems()),
		mcp.WithNumber("confidence", mcp.Min(0), mcp.Max(1)),
	)
}

func forgetTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryForget,
		mcp.WithDescription("Delete a memory and its links."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("reason", mcp.Description("Why it is no longer true")),
	)
}

func linkTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryLink,
		mcp.WithDescription("Create, list or delete directed links between memories."),
		mcp.WithString("action", mcp.Required(), mcp.Enum("create", "list", "delete")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source memory id; the memory to list for list")),
		mcp.WithString("target", mcp.Description("Target memory id, required for create and delete")),
		mcp.WithString("relationship", mcp.Enum("related_to", "depends_on", "supersedes", "example_of"), mcp.Description("Defaults to related_to")),
	)
}

func statsTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryStats,
		mcp.WithDescription("Counts by kind, top accessed and never accessed memories."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("scope", mcp.Enum("profile", "global", "all")),
	)
}

func maintainTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryMaintain,
		mcp.WithDescription("Find similar memories, merge near-duplicates or prune stale memories. Dry run unless dry_run=false."),
		mcp.WithString("action", mcp.Required(), mcp.Enum("find_similar", "merge", "prune")),
		mcp.WithString("id", mcp.Description("Target memory for find_similar and merge")),
		mcp.WithNumber("limit", mcp.Min(1), mcp.Max(50)),
		mcp.WithNumber("threshold", mcp.Description("Merge similarity threshold in (0,1], default 0.9")),
		mcp.WithNumber("days_threshold", mcp.Min(1), mcp.Description("Prune age in days, default 60")),
		mcp.WithBoolean("dry_run", mcp.DefaultBool(true)),
		mcp.WithString("scope", mcp.Enum("profile", "global", "all"), mcp.Description("Prune scope, default profile")),
	)
}

func decisionLogTool() mcp.Tool {
	return mcp.NewTool(ToolDecisionLog,
		mcp.WithDescription("Record a technical decision, tied to the active task when there is one."),
		mcp.WithString("decision", mcp.Required()),
		mcp.WithString("context"),
		mcp.WithString("rationale"),
		mcp.WithArray("alternatives", mcp.WithStringItems()),
	)
}

func decisionSearchTool() mcp.Tool {
	return mcp.NewTool(ToolDecisionSearch,
		mcp.WithDescription("Search decisions by text, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query"),
		mcp.WithNumber("limit", mcp.Min(1), mcp.Max(50)),
	)
}

func profileInfoTool() mcp.Tool {
	return mcp.NewTool(ToolProfileInfo,
		mcp.WithDescription("Show the current profile, embedding status and every known profile."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}
