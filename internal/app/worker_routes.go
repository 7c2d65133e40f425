package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/internal/jobctx"
)

// workerRoutes builds the worker-facing job status/control surface. Every
// pattern here is mounted under workerauth.Middleware, which has already
// validated the caller holds the bearer token minted for the specific job
// id in the path before any handler below runs.
func workerRoutes(contexts *jobctx.ContextManager) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/worker/", func(w http.ResponseWriter, r *http.Request) {
		jobID, rest, ok := parseWorkerPath(r.URL.Path)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		switch {
		case rest == "status" && r.Method == http.MethodGet:
			handleWorkerStatus(w, contexts, jobID)
		case rest == "complete" && r.Method == http.MethodPost:
			handleWorkerTransition(w, contexts, jobID, jobctx.StateCompleted, "completed by worker")
		case rest == "fail" && r.Method == http.MethodPost:
			handleWorkerTransition(w, contexts, jobID, jobctx.StateFailed, "reported failed by worker")
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
	return mux
}

// parseWorkerPath splits /worker/{job_id}/{rest} into its job id and
// trailing segment.
func parseWorkerPath(path string) (jobID uuid.UUID, rest string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "worker" {
		return uuid.UUID{}, "", false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.UUID{}, "", false
	}
	return id, parts[2], true
}

func handleWorkerStatus(w http.ResponseWriter, contexts *jobctx.ContextManager, jobID uuid.UUID) {
	jc, err := contexts.GetContext(jobID)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(jc)
}

func handleWorkerTransition(w http.ResponseWriter, contexts *jobctx.ContextManager, jobID uuid.UUID, next jobctx.JobState, reason string) {
	err := contexts.UpdateContext(jobID, func(c *jobctx.JobContext) error {
		return c.TransitionTo(next, reason)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
