// Package sweep runs the periodic background maintenance the reasoning
// loop itself never triggers: evicting idle sessions and marking jobs
// that have sat in progress too long as stuck, on a cron schedule rather
// than an ad-hoc ticker.
package sweep

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/sessions"
)

// Config controls how aggressively the sweeper evicts idle state.
type Config struct {
	// Schedule is a standard 5-field cron expression (or a descriptor
	// like "@every 1m"); it governs how often a sweep runs.
	Schedule string
	// MaxSessionIdle is how long a session may sit without activity
	// before PruneStaleSessions evicts it.
	MaxSessionIdle time.Duration
	// MaxJobInProgress is how long a job may stay in_progress without
	// a state change before the sweeper marks it stuck.
	MaxJobInProgress time.Duration
}

// DefaultConfig sweeps once a minute, evicting sessions idle more than 24h
// and marking jobs stuck after 30 minutes without a state transition.
func DefaultConfig() Config {
	return Config{
		Schedule:         "@every 1m",
		MaxSessionIdle:   24 * time.Hour,
		MaxJobInProgress: 30 * time.Minute,
	}
}

// Sweeper periodically prunes stale sessions and flags stuck jobs.
type Sweeper struct {
	cfg      Config
	sessions *sessions.Manager
	contexts *jobctx.ContextManager
	logger   *slog.Logger
	cron     *cron.Cron
}

// New builds a Sweeper over the given session and job context managers.
// Either manager may be nil, in which case that half of the sweep is
// skipped (useful for a deployment that runs the channel surface without
// the job orchestration surface, or vice versa).
func New(cfg Config, sessionMgr *sessions.Manager, contextMgr *jobctx.ContextManager, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cfg:      cfg,
		sessions: sessionMgr,
		contexts: contextMgr,
		logger:   logger.With("component", "sweep"),
	}
}

// Start schedules the sweep on cfg.Schedule and begins running it in the
// background. Stop ends it.
func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, s.runOnce); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce runs a single sweep synchronously, exported for tests and for
// callers that want an immediate sweep outside the cron schedule (e.g. on
// startup, before the first scheduled tick).
func (s *Sweeper) RunOnce() {
	s.runOnce()
}

func (s *Sweeper) runOnce() {
	if s.sessions != nil {
		pruned := s.sessions.PruneStaleSessions(s.cfg.MaxSessionIdle)
		if pruned > 0 {
			s.logger.Info("pruned stale sessions", "count", pruned)
		}
	}
	if s.contexts != nil {
		stuck := s.markStuckJobs()
		if stuck > 0 {
			s.logger.Warn("marked jobs stuck", "count", stuck)
		}
	}
}

// markStuckJobs transitions every in_progress job whose last update is
// older than MaxJobInProgress into the stuck state, so FindStuckJobs (and
// downstream /status reporting) surfaces a job an extension or worker
// silently abandoned.
func (s *Sweeper) markStuckJobs() int {
	cutoff := time.Now().Add(-s.cfg.MaxJobInProgress)
	marked := 0
	for _, id := range s.contexts.AllJobs() {
		ctx, err := s.contexts.GetContext(id)
		if err != nil {
			continue
		}
		if ctx.State != jobctx.StateInProgress || ctx.UpdatedAt.After(cutoff) {
			continue
		}
		err = s.contexts.UpdateContext(id, func(c *jobctx.JobContext) error {
			return c.TransitionTo(jobctx.StateStuck, "no state change before sweep deadline")
		})
		if err != nil {
			s.logger.Warn("failed to mark job stuck", "job_id", id, "error", err)
			continue
		}
		marked++
	}
	return marked
}
