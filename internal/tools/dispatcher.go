package tools

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/rcliao/memory-engine/internal/engine"
	"github.com/rcliao/memory-engine/internal/logging"
	"github.com/rcliao/memory-engine/internal/model"
	"github.com/rcliao/memory-engine/internal/store"
)

// ValidationError lists the fields a request failed on.
type ValidationError struct {
	Tool   string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s arguments: %s", e.Tool, strings.Join(e.Fields, "; "))
}

// NotFound is returned as a normal result when a referenced entity is missing.
type NotFound struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Dispatcher validates requests and routes them to the engine.
type Dispatcher struct {
	engine   *engine.Engine
	validate *validator.Validate
	metrics  *Metrics
	log      *log.Logger
}

// NewDispatcher wires a dispatcher. A nil metrics gets a private registry.
func NewDispatcher(e *engine.Engine, m *Metrics) *Dispatcher {
	if m == nil {
		m = NewMetrics()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Dispatcher{engine: e, validate: v, metrics: m, log: logging.For("tools")}
}

// Metrics returns the dispatcher's collectors.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Dispatch runs one request. Missing entities come back as a NotFound result
// rather than an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	start := time.Now()
	tool := req.Tool()
	if err := d.engine.RecordToolCall(ctx, tool); err != nil {
		d.log.Warn("record tool usage failed", "tool", tool, "err", err)
	}

	if err := d.check(req); err != nil {
		d.metrics.observe(tool, OutcomeInvalid, time.Since(start))
		return nil, err
	}

	out, err := d.route(ctx, req)
	outcome := OutcomeOK
	switch {
	case errors.Is(err, store.ErrNotFound):
		outcome = OutcomeNotFound
		out, err = NotFound{Status: "not_found", Message: err.Error()}, nil
	case err != nil:
		outcome = OutcomeError
	}
	d.metrics.observe(tool, outcome, time.Since(start))
	if err != nil {
		d.log.Debug("tool call failed", "tool", tool, "err", err)
	}
	return out, err
}

func (d *Dispatcher) check(req Request) error {
	err := d.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Tool: req.Tool()}
	for _, fe := range verrs {
		msg := fe.Field() + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		ve.Fields = append(ve.Fields, msg)
	}
	return ve
}

func (d *Dispatcher) route(ctx context.Context, req Request) (any, error) {
	e := d.engine
	switch r := req.(type) {
	case BeginTaskRequest:
		return e.BeginTask(ctx, r.Task)
	case EndTaskRequest:
		return e.EndTask(ctx, engine.EndParams{Summary: r.Summary, Fulfilled: *r.Fulfilled, Verified: r.Verified})
	case CheckpointRequest:
		return e.Checkpoint(ctx, engine.CheckpointParams{Note: r.Note, Importance: r.Importance, Phase: r.Phase})
	case TaskStatusRequest:
		return e.TaskStatus(ctx)

	case SaveRequest:
		m, err := e.Save(ctx, engine.SaveParams{
			Kind:       model.Kind(r.Kind),
			Category:   r.Category,
			Title:      r.Title,
			Content:    r.Content,
			Tags:       r.Tags,
			Confidence: r.Confidence,
			Scope:      model.Scope(r.Scope),
		})
		if err != nil {
			return nil, err
		}
		return savedResult("saved", m), nil
	case SearchRequest:
		kinds := make([]model.Kind, 0, len(r.Kinds))
		for _, k := range r.Kinds {
			kinds = append(kinds, model.Kind(k))
		}
		return e.Search(ctx, engine.SearchParams{Query: r.Query, Kinds: kinds, Limit: r.Limit, Scope: model.Scope(r.Scope)})
	case UpdateRequest:
		m, err := e.Update(ctx, engine.UpdateParams{
			ID:         r.ID,
			Title:      r.Title,
			Category:   r.Category,
			Content:    r.Content,
			Tags:       r.Tags,
			Confidence: r.Confidence,
		})
		if err != nil {
			return nil, err
		}
		return savedResult("updated", m), nil
	case ForgetRequest:
		res, err := e.Forget(ctx, r.ID, r.Reason)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "deleted", "memory": res}, nil

	case LinkRequest:
		return d.link(ctx, r)
	case StatsRequest:
		return e.Stats(ctx, model.Scope(r.Scope))
	case MaintainRequest:
		return d.maintain(ctx, r)

	case DecisionLogRequest:
		dec, err := e.LogDecision(ctx, engine.DecisionParams{
			Decision:     r.Decision,
			Context:      r.Context,
			Rationale:    r.Rationale,
			Alternatives: r.Alternatives,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "logged", "decision": dec}, nil
	case DecisionSearchRequest:
		found, err := e.SearchDecisions(ctx, r.Query, r.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"query": r.Query, "count": len(found), "decisions": found}, nil
	case ProfileInfoRequest:
		return e.ProfileInfo(ctx)
	}
	return nil, fmt.Errorf("unknown tool %q", req.Tool())
}

func (d *Dispatcher) link(ctx context.Context, r LinkRequest) (any, error) {
	switch r.Action {
	case "create":
		v, err := d.engine.Link(ctx, r.Source, r.Target, r.Relationship)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "linked", "link": v}, nil
	case "list":
		return d.engine.Links(ctx, r.Source)
	default:
		if err := d.engine.Unlink(ctx, r.Source, r.Target); err != nil {
			return nil, err
		}
		return map[string]any{"status": "deleted", "source": r.Source, "target": r.Target}, nil
	}
}

func (d *Dispatcher) maintain(ctx context.Context, r MaintainRequest) (any, error) {
	switch r.Action {
	case "find_similar":
		return d.engine.FindSimilar(ctx, r.ID, r.Limit)
	case "merge":
		return d.engine.Merge(ctx, r.ID, engine.MergeParams{Threshold: r.Threshold, DryRun: dryRun(r.DryRun)})
	default:
		return d.engine.Prune(ctx, engine.PruneParams{Days: r.Days, DryRun: dryRun(r.DryRun), Scope: model.Scope(r.Scope)})
	}
}

type saved struct {
	Status   string      `json:"status"`
	ID       string      `json:"id"`
	ShortID  string      `json:"short_id"`
	Title    string      `json:"title"`
	Kind     model.Kind  `json:"kind"`
	Scope    model.Scope `json:"scope"`
	Tags     []string    `json:"tags"`
	Embedded bool        `json:"embedded"`
}

func savedResult(status string, m *model.Memory) saved {
	return saved{
		Status:   status,
		ID:       m.ID,
		ShortID:  m.ShortID(),
		Title:    m.Title,
		Kind:     m.Kind,
		Scope:    m.Scope,
		Tags:     m.Tags,
		Embedded: m.HasEmbedding(),
	}
}
