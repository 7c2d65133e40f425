// Package router classifies a message's leading "/" command into a
// typed Intent. Natural-language messages are left for the reasoning
// loop's own LLM-driven intent handling; this package only covers the
// explicit slash-command grammar.
package router

import (
	"strings"

	"github.com/agentcore/runtime/internal/channels"
)

// Kind tags the shape of a classified Intent; Go has no enum-with-data,
// so the payload fields on Intent are tagged by Kind instead, the same
// idiom channels.StatusUpdate uses for its payload.
type Kind string

const (
	IntentCreateJob      Kind = "create_job"
	IntentCheckJobStatus Kind = "check_job_status"
	IntentCancelJob      Kind = "cancel_job"
	IntentListJobs       Kind = "list_jobs"
	IntentHelpJob        Kind = "help_job"
	IntentCommand        Kind = "command"
	IntentUnknown        Kind = "unknown"
)

// Intent is the classified shape of a command message.
type Intent struct {
	Kind Kind

	// CreateJob
	Title       string
	Description string
	Category    string

	// CheckJobStatus, CancelJob, HelpJob
	JobID string

	// ListJobs
	Filter string

	// Command
	Command string
	Args    []string
}

// Router classifies messages whose content starts with Prefix
// ("/" by default) into a typed Intent.
type Router struct {
	Prefix string
}

// NewRouter returns a Router using the default "/" prefix.
func NewRouter() *Router {
	return &Router{Prefix: "/"}
}

// WithPrefix returns a copy of r using prefix, for construction
// chaining: router.NewRouter().WithPrefix("!").
func (r *Router) WithPrefix(prefix string) *Router {
	return &Router{Prefix: prefix}
}

// IsCommand reports whether msg's content is an explicit command.
func (r *Router) IsCommand(msg channels.IncomingMessage) bool {
	return strings.HasPrefix(strings.TrimSpace(msg.Content), r.Prefix)
}

// RouteCommand classifies msg's content into an Intent. ok is false
// when msg is not a command; callers should fall back to their own
// natural-language handling in that case, mirroring the Rust router's
// None return.
func (r *Router) RouteCommand(msg channels.IncomingMessage) (intent Intent, ok bool) {
	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, r.Prefix) {
		return Intent{}, false
	}
	return r.parseCommand(content), true
}

func (r *Router) parseCommand(content string) Intent {
	withoutPrefix := strings.TrimPrefix(content, r.Prefix)
	parts := strings.Fields(withoutPrefix)
	if len(parts) == 0 {
		return Intent{Kind: IntentUnknown}
	}

	switch strings.ToLower(parts[0]) {
	case "job", "create":
		rest := strings.Join(parts[1:], " ")
		return Intent{Kind: IntentCreateJob, Title: rest, Description: rest}

	case "status":
		var jobID string
		if len(parts) > 1 {
			jobID = parts[1]
		}
		return Intent{Kind: IntentCheckJobStatus, JobID: jobID}

	case "cancel":
		if len(parts) < 2 {
			return Intent{Kind: IntentUnknown}
		}
		return Intent{Kind: IntentCancelJob, JobID: parts[1]}

	case "list", "jobs":
		var filter string
		if len(parts) > 1 {
			filter = parts[1]
		}
		return Intent{Kind: IntentListJobs, Filter: filter}

	case "help":
		if len(parts) > 1 {
			return Intent{Kind: IntentHelpJob, JobID: parts[1]}
		}
		return Intent{Kind: IntentCommand, Command: "help", Args: []string{}}

	default:
		args := append([]string{}, parts[1:]...)
		return Intent{Kind: IntentCommand, Command: strings.ToLower(parts[0]), Args: args}
	}
}
