package builtin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// JobTool lets the agent create, inspect, list, and cancel jobs tracked by
// the shared ContextManager — a thin wrapper, not a duplicate state
// machine.
type JobTool struct {
	tools.BaseTool
	manager *jobctx.ContextManager
}

func NewJobTool(manager *jobctx.ContextManager) *JobTool { return &JobTool{manager: manager} }

func (*JobTool) Name() string { return "job" }
func (*JobTool) Description() string {
	return "Create, inspect, list, and cancel jobs tracked by this agent."
}

func (*JobTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"operation": {"type": "string", "enum": ["create", "status", "cancel", "list"]},
			"job_id": {"type": "string", "description": "required for status and cancel"},
			"title": {"type": "string", "description": "required for create"},
			"description": {"type": "string"}
		},
		"required": ["operation"]
	}`)
}

func (*JobTool) RequiresSanitization() bool { return false }

func (t *JobTool) Execute(_ context.Context, params json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	start := time.Now()
	var in struct {
		Operation   string `json:"operation"`
		JobID       string `json:"job_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return tools.Output{}, tools.InvalidParameters("invalid parameters: " + err.Error())
	}

	switch in.Operation {
	case "create":
		if in.Title == "" {
			return tools.Output{}, tools.InvalidParameters("missing 'title' parameter")
		}
		id, err := t.manager.CreateJob(in.Title, in.Description)
		if err != nil {
			return tools.Output{}, tools.ExecutionFailed(err.Error())
		}
		return tools.JSONOutput(map[string]string{"job_id": id.String()}, time.Since(start)), nil

	case "status":
		id, err := parseJobID(in.JobID)
		if err != nil {
			return tools.Output{}, err
		}
		ctx, lookupErr := t.manager.GetContext(id)
		if lookupErr != nil {
			return tools.Output{}, tools.ExecutionFailed(lookupErr.Error())
		}
		return tools.JSONOutput(jobStatusView(ctx), time.Since(start)), nil

	case "cancel":
		id, err := parseJobID(in.JobID)
		if err != nil {
			return tools.Output{}, err
		}
		updateErr := t.manager.UpdateContext(id, func(c *jobctx.JobContext) error {
			return c.TransitionTo(jobctx.StateCancelled, "cancelled via job tool")
		})
		if updateErr != nil {
			return tools.Output{}, tools.ExecutionFailed(updateErr.Error())
		}
		return tools.JSONOutput(map[string]bool{"cancelled": true}, time.Since(start)), nil

	case "list":
		ids := t.manager.AllJobs()
		views := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			ctx, err := t.manager.GetContext(id)
			if err != nil {
				continue
			}
			views = append(views, jobStatusView(ctx))
		}
		return tools.JSONOutput(views, time.Since(start)), nil

	default:
		return tools.Output{}, tools.InvalidParameters("unknown operation: " + in.Operation)
	}
}

func parseJobID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, tools.InvalidParameters("missing 'job_id' parameter")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, tools.InvalidParameters("invalid job_id: " + err.Error())
	}
	return id, nil
}

func jobStatusView(c *jobctx.JobContext) map[string]string {
	return map[string]string{
		"job_id": c.JobID.String(),
		"title":  c.Title,
		"state":  string(c.State),
	}
}
