package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/internal/channels"
	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/reasoning"
	"github.com/agentcore/runtime/internal/router"
	"github.com/agentcore/runtime/internal/sessions"
)

// consumeMessages drains the merged channel message stream, dispatching
// each incoming message to its own goroutine so a slow reasoning turn on
// one thread never blocks another user's message.
func (s *Server) consumeMessages(ctx context.Context, stream channels.MessageStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleMessage(ctx, msg)
			}()
		}
	}
}

// handleMessage resolves the message's session/thread, then either
// handles an explicit slash command directly against the job context
// manager or falls through to the reasoning loop for natural language.
func (s *Server) handleMessage(ctx context.Context, msg channels.IncomingMessage) {
	session, threadID := s.Sessions.ResolveThread(msg.UserID, msg.Channel, msg.ThreadID)

	if intent, ok := s.Router.RouteCommand(msg); ok {
		response := s.handleIntent(msg.UserID, intent)
		if err := s.Channels.Respond(ctx, msg, response); err != nil {
			s.logger.Warn("failed to deliver command response", "channel", msg.Channel, "error", err)
		}
		return
	}

	s.runReasoningTurn(ctx, msg, session, threadID)
}

// handleIntent executes a classified slash command directly against the
// job context manager; natural-language turns never reach this path.
func (s *Server) handleIntent(userID string, intent router.Intent) channels.OutgoingResponse {
	switch intent.Kind {
	case router.IntentCreateJob:
		jobID, err := s.Contexts.CreateJobForUser(userID, intent.Title, intent.Description)
		if err != nil {
			return channels.Text(fmt.Sprintf("couldn't create job: %v", err))
		}
		return channels.Text(fmt.Sprintf("job created: %s", jobID))

	case router.IntentCheckJobStatus:
		if intent.JobID == "" {
			return s.handleIntent(userID, router.Intent{Kind: router.IntentListJobs})
		}
		jobID, err := uuid.Parse(intent.JobID)
		if err != nil {
			return channels.Text("invalid job id")
		}
		jc, err := s.Contexts.GetContext(jobID)
		if err != nil {
			return channels.Text(fmt.Sprintf("job not found: %s", intent.JobID))
		}
		return channels.Text(fmt.Sprintf("job %s: %s", jc.JobID, jc.State))

	case router.IntentCancelJob:
		jobID, err := uuid.Parse(intent.JobID)
		if err != nil {
			return channels.Text("invalid job id")
		}
		err = s.Contexts.UpdateContext(jobID, func(c *jobctx.JobContext) error {
			return c.TransitionTo(jobctx.StateCancelled, "cancelled by user")
		})
		if err != nil {
			return channels.Text(fmt.Sprintf("couldn't cancel job: %v", err))
		}
		return channels.Text(fmt.Sprintf("job %s cancelled", intent.JobID))

	case router.IntentListJobs:
		summary := s.Contexts.SummaryFor(userID)
		return channels.Text(fmt.Sprintf(
			"jobs: %d total (%d pending, %d in progress, %d completed, %d failed, %d stuck)",
			summary.Total, summary.Pending, summary.InProgress, summary.Completed, summary.Failed, summary.Stuck,
		))

	case router.IntentHelpJob:
		return channels.Text("job commands: /job <description>, /status [id], /cancel <id>, /list")

	case router.IntentCommand:
		if intent.Command == "help" {
			return channels.Text("commands: /job, /status, /cancel, /list, /help; anything else is sent to the assistant")
		}
		return channels.Text(fmt.Sprintf("unknown command: %s %s", intent.Command, strings.Join(intent.Args, " ")))

	default:
		return channels.Text("unrecognized command")
	}
}

// runReasoningTurn creates (or reuses) the thread's job context and
// memory, runs the reasoning loop to completion, and delivers the final
// answer back through the originating channel. Status events stream out
// separately via the broadcast hub for anyone subscribed.
func (s *Server) runReasoningTurn(ctx context.Context, msg channels.IncomingMessage, session *sessions.Session, threadID uuid.UUID) {
	_, jobCtx, memory, err := s.jobForThread(msg.UserID, threadID)
	if err != nil {
		s.logger.Error("failed to resolve job context for thread", "thread_id", threadID, "error", err)
		return
	}

	undoMgr := s.Sessions.GetUndoManager(threadID)

	out, err := s.Loop.Run(ctx, reasoning.RunInput{
		Session:     session,
		ThreadID:    threadID,
		Memory:      memory,
		UndoManager: undoMgr,
		JobCtx:      jobCtx,
		UserMessage: msg.Content,
	})
	if err != nil {
		s.logger.Error("reasoning loop failed to start", "thread_id", threadID, "error", err)
		return
	}

	var final string
	for chunk := range out {
		switch chunk.Kind {
		case reasoning.ChunkDone, reasoning.ChunkTruncated:
			final = chunk.Text
		case reasoning.ChunkError:
			s.logger.Error("reasoning loop turn errored", "thread_id", threadID, "error", chunk.Err)
			return
		case reasoning.ChunkSuspended:
			return // an approval request has already gone out over the hub
		}
	}

	if final == "" {
		return
	}
	if err := s.Channels.Respond(ctx, msg, channels.Text(final).InThread(threadID.String())); err != nil {
		s.logger.Warn("failed to deliver reasoning response", "channel", msg.Channel, "error", err)
	}
}

// jobForThread finds the job bound to threadID, creating one on the
// thread's first message so a whole conversation shares one job's memory
// and cost accounting rather than spawning a fresh job per turn. The
// thread-to-job mapping is process-local: jobctx mints its own job ids,
// so threadJobs is the join table between a channel's thread identity and
// the context manager's job identity.
func (s *Server) jobForThread(userID string, threadID uuid.UUID) (uuid.UUID, *jobctx.JobContext, *jobctx.Memory, error) {
	s.threadJobsMu.Lock()
	jobID, known := s.threadJobs[threadID]
	s.threadJobsMu.Unlock()

	if !known {
		newID, err := s.Contexts.CreateJobForUser(userID, "conversation", "ongoing chat thread")
		if err != nil {
			return uuid.Nil, nil, nil, err
		}
		s.threadJobsMu.Lock()
		s.threadJobs[threadID] = newID
		s.threadJobsMu.Unlock()
		jobID = newID
	}

	jc, err := s.Contexts.GetContext(jobID)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	mem, err := s.Contexts.GetMemory(jobID)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	return jobID, jc, mem, nil
}
