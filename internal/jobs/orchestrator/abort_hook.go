package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
)

// AbortHook is the synchronous path invoked by DELETE /process (spec
// §4.9): it fans abort out to every in-flight stage call of a live job, or
// synthesizes a final aborted report for a job this process never started
// running.
type AbortHook struct {
	Live *LiveJobs
	Jobs *repos.JobRepo
	Log  *logger.Logger
}

func NewAbortHook(live *LiveJobs, jobs *repos.JobRepo, log *logger.Logger) *AbortHook {
	return &AbortHook{Live: live, Jobs: jobs, Log: log}
}

// Abort resolves a token to one of three outcomes: already completed
// (no-op), in-flight (fan out and let the Job Runner's own finalize write
// the terminal row), or never-running (synthesize and write the aborted
// row directly here, since no Job Runner will ever finalize it).
func (h *AbortHook) Abort(ctx context.Context, token, reason, origin string) (string, error) {
	job, err := h.Jobs.GetByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("lookup job %q: %w", token, err)
	}

	if job.Status == jobproc.JobCompleted || job.Status == jobproc.JobAborted {
		return "job already finished; abort is a no-op", nil
	}

	if jc, ok := h.Live.Get(token); ok {
		notified := jc.Abort(ctx, reason, origin)
		return fmt.Sprintf("abort broadcast to %d in-flight stage call(s)", len(notified)), nil
	}

	// Never-running: this process (or the one that claimed it) has no live
	// context for this token, so no Job Runner will ever finalize the row.
	// Synthesize the terminal state directly.
	report := jobproc.NewReport(token)
	report.SetProgress(jobproc.Progress{
		Status:  jobproc.ProgressAborted,
		Verbose: fmt.Sprintf("aborted: %s (%s)", reason, origin),
		Numeric: 0,
	})
	final := report.Finalize()
	final.Data.Success = false
	blob, err := json.Marshal(final)
	if err != nil {
		blob = []byte(`{}`)
	}
	now := time.Now()
	if err := h.Jobs.UpdateFields(ctx, token, map[string]any{
		"status":         jobproc.JobAborted,
		"report":         datatypes.JSON(blob),
		"datetime_ended": &now,
	}); err != nil {
		return "", fmt.Errorf("finalize aborted job row: %w", err)
	}
	return "job was never running; synthesized an aborted final report", nil
}
