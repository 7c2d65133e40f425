package extensions

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/runtime/internal/egress"
)

func echoModule(ctx context.Context, host *Host, params string) (string, error) {
	return params, nil
}

func TestPrepareCachesByName(t *testing.T) {
	rt := NewRuntime()
	limits := egress.DefaultToolResourceLimits()

	first, err := rt.Prepare("echo", "echoes params", limits, echoModule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := rt.Prepare("echo", "a different description", limits, func(ctx context.Context, h *Host, p string) (string, error) {
		return "different-body", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("expected re-prepare under the same name to return the cached module")
	}
	if second.Description != "echoes params" {
		t.Fatalf("expected stale cached description to persist, got %q", second.Description)
	}
}

func TestExecuteRunsFreshInstancePerCall(t *testing.T) {
	rt := NewRuntime()
	module, err := rt.Prepare("echo", "echoes params", egress.DefaultToolResourceLimits(), echoModule)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}

	resp, err := rt.Execute(context.Background(), module, Request{ParamsJSON: `{"x":1}`})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.OutputJSON != `{"x":1}` {
		t.Fatalf("unexpected output: %s", resp.OutputJSON)
	}

	// 600 host calls charge 600k of the 1M fuel budget: two calls only
	// both succeed if each one gets its own fuel meter.
	hungry, _ := rt.Prepare("hungry", "charges fuel", egress.DefaultToolResourceLimits(), func(ctx context.Context, h *Host, params string) (string, error) {
		for i := 0; i < 600; i++ {
			if _, err := h.SecretExists("x"); err != nil {
				return "", err
			}
		}
		return "ok", nil
	})
	for call := 0; call < 2; call++ {
		if _, err := rt.Execute(context.Background(), hungry, Request{ParamsJSON: "{}"}); err != nil {
			t.Fatalf("call %d: expected a fresh fuel budget, got %v", call, err)
		}
	}
}

func TestExecuteTimesOut(t *testing.T) {
	rt := NewRuntime()
	slow := func(ctx context.Context, h *Host, params string) (string, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "too-late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	limits := egress.ResourceLimits{MemoryBytes: 1024, Fuel: 1_000_000, Timeout: int64(10 * time.Millisecond)}
	module, _ := rt.Prepare("slow", "sleeps", limits, slow)

	_, err := rt.Execute(context.Background(), module, Request{ParamsJSON: "{}"})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	extErr, ok := err.(*Error)
	if !ok || extErr.Kind != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %+v", err)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	rt := NewRuntime()
	panicky := func(ctx context.Context, h *Host, params string) (string, error) {
		panic("boom")
	}
	module, _ := rt.Prepare("panicky", "panics", egress.DefaultToolResourceLimits(), panicky)

	_, err := rt.Execute(context.Background(), module, Request{ParamsJSON: "{}"})
	extErr, ok := err.(*Error)
	if !ok || extErr.Kind != ErrPanicked {
		t.Fatalf("expected ErrPanicked, got %+v", err)
	}
}

func TestFuelMeterExhaustion(t *testing.T) {
	f := NewFuelMeter(100)
	if !f.Consume(60) {
		t.Fatal("expected first charge to succeed")
	}
	if f.Consume(60) {
		t.Fatal("expected second charge to exceed budget")
	}
	if !f.Exhausted() {
		t.Fatal("expected fuel meter to report exhausted")
	}
}

func TestWorkspacePathValidationRejectsEscapes(t *testing.T) {
	caps := ForChannel("test")
	if _, err := caps.ValidateWorkspacePath("test", "/etc/passwd"); err == nil {
		t.Fatal("expected absolute path to be rejected")
	}
	if _, err := caps.ValidateWorkspacePath("test", "../secret"); err == nil {
		t.Fatal("expected parent traversal to be rejected")
	}
	if _, err := caps.ValidateWorkspacePath("test", "a\x00b"); err == nil {
		t.Fatal("expected null byte path to be rejected")
	}
	scoped, err := caps.ValidateWorkspacePath("test", "notes.txt")
	if err != nil || scoped != "channels/test/notes.txt" {
		t.Fatalf("expected scoped path, got (%q, %v)", scoped, err)
	}
}

func TestPollIntervalFloor(t *testing.T) {
	caps := ForChannel("test").WithPolling(1000)
	if caps.MinPollIntervalMs != MinPollIntervalMs {
		t.Fatalf("expected clamp to floor, got %d", caps.MinPollIntervalMs)
	}
	if _, err := caps.ValidatePollInterval("test", 1000); err == nil {
		t.Fatal("expected an error/clamp warning for a too-short interval")
	}
}
