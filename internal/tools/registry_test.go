package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
)

type stubTool struct {
	BaseTool
	name string
}

func (s *stubTool) Name() string                     { return s.name }
func (s *stubTool) Description() string               { return "stub" }
func (s *stubTool) ParametersSchema() json.RawMessage { return json.RawMessage(`{}`) }
func (s *stubTool) Execute(context.Context, json.RawMessage, *jobctx.JobContext) (Output, error) {
	return TextOutput("ok", time.Millisecond), nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "a"})

	got, ok := r.Get("a")
	if !ok {
		t.Fatalf("expected tool 'a' to be registered")
	}
	if got.Name() != "a" {
		t.Fatalf("got wrong tool: %s", got.Name())
	}

	if _, ok := r.Get("missing"); ok {
		t.Fatalf("expected 'missing' to be absent")
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "a"})
	r.Unregister("a")
	if _, ok := r.Get("a"); ok {
		t.Fatalf("expected 'a' to be removed")
	}
}

func TestRegistryAllAndSchemas(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "a"})
	r.Register(&stubTool{name: "b"})

	if len(r.All()) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(r.All()))
	}
	schemas := r.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(schemas))
	}
}

func TestRegistryReplaceOnReregister(t *testing.T) {
	r := NewRegistry()
	first := &stubTool{name: "a"}
	second := &stubTool{name: "a"}
	r.Register(first)
	r.Register(second)

	if len(r.All()) != 1 {
		t.Fatalf("expected re-registration to replace, got %d tools", len(r.All()))
	}
}
