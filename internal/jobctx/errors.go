package jobctx

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound reports a lookup against a job id the ContextManager does
// not (or no longer) track.
type ErrNotFound struct {
	JobID uuid.UUID
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.JobID)
}

// ErrMaxJobsExceeded reports that a job could not be created because the
// manager's active-job ceiling was already reached.
type ErrMaxJobsExceeded struct {
	Max int
}

func (e *ErrMaxJobsExceeded) Error() string {
	return fmt.Sprintf("maximum concurrent jobs exceeded: %d", e.Max)
}
