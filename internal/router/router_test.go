package router

import (
	"testing"

	"github.com/agentcore/runtime/internal/channels"
)

func msg(content string) channels.IncomingMessage {
	return channels.NewIncomingMessage("test", "user", content)
}

func TestIsCommand(t *testing.T) {
	r := NewRouter()
	if !r.IsCommand(msg("/status")) {
		t.Fatalf("expected /status to be a command")
	}
	if r.IsCommand(msg("Hello there")) {
		t.Fatalf("expected plain chat not to be a command")
	}
}

func TestRouteCommandNonCommandReturnsFalse(t *testing.T) {
	r := NewRouter()
	if _, ok := r.RouteCommand(msg("Can you build a website for me?")); ok {
		t.Fatalf("expected non-command to return ok=false")
	}
	if _, ok := r.RouteCommand(msg("Hello, how are you?")); ok {
		t.Fatalf("expected non-command to return ok=false")
	}
}

func TestRouteCommandCreateJob(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/job build a website"))
	if !ok || intent.Kind != IntentCreateJob {
		t.Fatalf("expected CreateJob intent, got %+v (ok=%v)", intent, ok)
	}
	if intent.Title != "build a website" {
		t.Fatalf("expected title %q, got %q", "build a website", intent.Title)
	}
}

func TestRouteCommandCreateAlias(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/create fix the bug"))
	if !ok || intent.Kind != IntentCreateJob {
		t.Fatalf("expected CreateJob intent, got %+v (ok=%v)", intent, ok)
	}
}

func TestRouteCommandStatus(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/status abc-123"))
	if !ok || intent.Kind != IntentCheckJobStatus {
		t.Fatalf("expected CheckJobStatus intent, got %+v (ok=%v)", intent, ok)
	}
	if intent.JobID != "abc-123" {
		t.Fatalf("expected job id abc-123, got %q", intent.JobID)
	}
}

func TestRouteCommandStatusWithoutJobID(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/status"))
	if !ok || intent.Kind != IntentCheckJobStatus || intent.JobID != "" {
		t.Fatalf("expected bare CheckJobStatus intent, got %+v (ok=%v)", intent, ok)
	}
}

func TestRouteCommandCancelRequiresJobID(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/cancel"))
	if !ok || intent.Kind != IntentUnknown {
		t.Fatalf("expected Unknown intent for /cancel with no job id, got %+v (ok=%v)", intent, ok)
	}

	intent, ok = r.RouteCommand(msg("/cancel abc-123"))
	if !ok || intent.Kind != IntentCancelJob || intent.JobID != "abc-123" {
		t.Fatalf("expected CancelJob intent, got %+v (ok=%v)", intent, ok)
	}
}

func TestRouteCommandListJobs(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/list active"))
	if !ok || intent.Kind != IntentListJobs || intent.Filter != "active" {
		t.Fatalf("expected ListJobs intent with filter active, got %+v (ok=%v)", intent, ok)
	}

	intent, ok = r.RouteCommand(msg("/jobs"))
	if !ok || intent.Kind != IntentListJobs || intent.Filter != "" {
		t.Fatalf("expected bare ListJobs intent via /jobs alias, got %+v (ok=%v)", intent, ok)
	}
}

func TestRouteCommandHelp(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/help abc-123"))
	if !ok || intent.Kind != IntentHelpJob || intent.JobID != "abc-123" {
		t.Fatalf("expected HelpJob intent, got %+v (ok=%v)", intent, ok)
	}

	intent, ok = r.RouteCommand(msg("/help"))
	if !ok || intent.Kind != IntentCommand || intent.Command != "help" {
		t.Fatalf("expected bare help Command intent, got %+v (ok=%v)", intent, ok)
	}
}

func TestRouteCommandGenericCommand(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/deploy staging now"))
	if !ok || intent.Kind != IntentCommand {
		t.Fatalf("expected generic Command intent, got %+v (ok=%v)", intent, ok)
	}
	if intent.Command != "deploy" || len(intent.Args) != 2 || intent.Args[0] != "staging" || intent.Args[1] != "now" {
		t.Fatalf("unexpected command/args: %+v", intent)
	}
}

func TestRouteCommandEmptyAfterPrefixIsUnknown(t *testing.T) {
	r := NewRouter()
	intent, ok := r.RouteCommand(msg("/"))
	if !ok || intent.Kind != IntentUnknown {
		t.Fatalf("expected Unknown intent for bare prefix, got %+v (ok=%v)", intent, ok)
	}
}

func TestRouteCommandCustomPrefix(t *testing.T) {
	r := NewRouter().WithPrefix("!")
	if !r.IsCommand(msg("!status")) {
		t.Fatalf("expected !status to be a command with custom prefix")
	}
	if r.IsCommand(msg("/status")) {
		t.Fatalf("expected /status not to match the custom ! prefix")
	}
}
