package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/safety"
)

// DefaultPerToolTimeout bounds a single tool invocation absent an explicit
// per-tool override.
const DefaultPerToolTimeout = 30 * time.Second

// PendingApproval is the descriptor a dispatch suspends into when a tool
// requires explicit user approval. The reasoning loop persists it on the
// thread and resumes dispatch with Approved set once the same request id
// is approved or rejected.
type PendingApproval struct {
	RequestID   string
	ToolName    string
	Description string
	Parameters  json.RawMessage
}

// ApprovalRequiredError is returned by Dispatch when a tool call has not
// yet been approved; it is not a failure of the tool itself.
type ApprovalRequiredError struct {
	Pending PendingApproval
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("tool %q requires approval (request %s)", e.Pending.ToolName, e.Pending.RequestID)
}

// Request is a single dispatch invocation.
type Request struct {
	ToolName  string
	Params    json.RawMessage
	JobCtx    *jobctx.JobContext
	Memory    *jobctx.Memory
	RequestID string // used to correlate an approval decision back to this call
	Approved  bool   // true once the caller has confirmed approval for RequestID
	Timeout   time.Duration
}

// Result is a completed dispatch: the content to reinject into the
// conversation (sanitized, if the tool required it) plus the bookkeeping
// the reasoning loop surfaces as status events.
type Result struct {
	Content       string
	Sanitized     bool
	Warnings      []safety.InjectionWarning
	Cost          float64
	Duration      time.Duration
	LeakBlocked   bool
	PolicyBlocked bool
}

// Dispatcher runs the five-step tool dispatch pipeline: schema validation,
// approval gating, timed execution, output sanitization, and action
// recording.
type Dispatcher struct {
	registry *Registry
	safety   *safety.SafetyLayer

	schemaMu    sync.Mutex
	schemaCache map[string]*jsonschema.Schema
}

// NewDispatcher builds a Dispatcher over registry, gating every
// sanitization-required tool's output through layer.
func NewDispatcher(registry *Registry, layer *safety.SafetyLayer) *Dispatcher {
	return &Dispatcher{registry: registry, safety: layer, schemaCache: make(map[string]*jsonschema.Schema)}
}

// Dispatch runs the full pipeline for a single tool call.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if len(req.ToolName) > MaxToolNameLength {
		return Result{}, InvalidParameters(fmt.Sprintf("tool name exceeds %d bytes", MaxToolNameLength))
	}
	if len(req.Params) > MaxToolParamsSize {
		return Result{}, InvalidParameters(fmt.Sprintf("tool parameters exceed %d bytes", MaxToolParamsSize))
	}
	tool, ok := d.registry.Get(req.ToolName)
	if !ok {
		return Result{}, ExecutionFailed("tool not found: " + req.ToolName)
	}

	// Step 1: validate parameters against the declared schema.
	if err := d.validateParams(tool, req.Params); err != nil {
		return Result{}, err
	}

	// Step 2: approval gate.
	if tool.RequiresApproval() && !req.Approved {
		return Result{}, &ApprovalRequiredError{Pending: PendingApproval{
			RequestID:   req.RequestID,
			ToolName:    tool.Name(),
			Description: tool.Description(),
			Parameters:  req.Params,
		}}
	}

	// Step 3: timed execution, classified into the ToolError taxonomy.
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultPerToolTimeout
	}
	output, execErr := d.executeWithTimeout(ctx, tool, req, timeout)

	var record jobctx.ActionRecord
	if req.Memory != nil {
		record = req.Memory.NextAction(tool.Name(), req.Params)
	}

	if execErr != nil {
		record.Success = false
		record.Error = execErr.Error()
		record.Duration = output.Duration
		if req.Memory != nil {
			req.Memory.RecordAction(record)
		}
		return Result{}, execErr
	}

	result := Result{Duration: output.Duration}
	if output.Cost != nil {
		result.Cost = *output.Cost
	}

	content := string(output.Result)
	rawText := output.Raw
	if rawText == "" {
		rawText = content
	}

	// Step 4: sanitize, if required.
	if tool.RequiresSanitization() {
		sanitized := d.safety.SanitizeOutput(tool.Name(), content)
		result.Content = sanitized.Content
		result.Sanitized = true
		result.Warnings = sanitized.Warnings
		result.LeakBlocked = sanitized.Blocked && sanitized.BlockReason == safety.BlockLeak
		result.PolicyBlocked = sanitized.Blocked && sanitized.BlockReason == safety.BlockPolicy
		record.ReviewRequired = sanitized.ReviewRequired
		record.OutputSanitized = sanitized.Content
		for _, w := range sanitized.Warnings {
			record.SanitizationWarnings = append(record.SanitizationWarnings, w.Description)
		}
	} else {
		result.Content = content
	}

	record.Success = true
	record.OutputRaw = rawText
	record.Cost = result.Cost
	record.Duration = output.Duration
	if req.Memory != nil {
		req.Memory.RecordAction(record)
	}

	if result.LeakBlocked {
		return result, NotAuthorized("output blocked: potential secret leakage")
	}
	if result.PolicyBlocked {
		return result, NotAuthorized("output blocked: safety policy violation")
	}

	return result, nil
}

func (d *Dispatcher) executeWithTimeout(ctx context.Context, tool Tool, req Request, timeout time.Duration) (Output, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type execResult struct {
		output Output
		err    error
	}
	done := make(chan execResult, 1)
	start := time.Now()

	go func() {
		out, err := tool.Execute(callCtx, req.Params, req.JobCtx)
		select {
		case done <- execResult{output: out, err: err}:
		default:
		}
	}()

	select {
	case <-callCtx.Done():
		return Output{Duration: time.Since(start)}, Timeout(timeout)
	case res := <-done:
		if res.err != nil {
			if toolErr, ok := res.err.(*Error); ok {
				return Output{Duration: time.Since(start)}, toolErr
			}
			return Output{Duration: time.Since(start)}, ExecutionFailed(res.err.Error())
		}
		if res.output.Duration == 0 {
			res.output.Duration = time.Since(start)
		}
		return res.output, nil
	}
}

func (d *Dispatcher) validateParams(tool Tool, params json.RawMessage) error {
	schema, err := d.compileSchema(tool.Name(), tool.ParametersSchema())
	if err != nil {
		return InvalidParameters("invalid schema for tool " + tool.Name() + ": " + err.Error())
	}
	if schema == nil {
		return nil
	}

	var decoded any
	raw := params
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return InvalidParameters("invalid parameters JSON: " + err.Error())
	}
	if err := schema.Validate(decoded); err != nil {
		return InvalidParameters(err.Error())
	}
	return nil
}

func (d *Dispatcher) compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()
	if cached, ok := d.schemaCache[name]; ok {
		return cached, nil
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	d.schemaCache[name] = compiled
	return compiled, nil
}
