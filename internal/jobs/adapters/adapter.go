// Package adapters implements the Stage Adapter capability set: one HTTP
// client per pipeline stage, each wrapping a downstream service with the
// shared submit/poll/abort/success/eval contract the orchestrator drives.
package adapters

import (
	"context"
	"time"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
)

// Report is the downstream wire shape returned from a stage-adapter's
// GET /report — a smaller sibling of jobproc.Report, decoded fresh for
// every poll tick rather than shared/locked.
type Report struct {
	Token    string                 `json:"token"`
	Progress jobproc.Progress       `json:"progress"`
	Log      []string               `json:"log,omitempty"`
	Data     map[string]any         `json:"data"`
}

// IsTerminal reports whether this downstream report represents a finished
// call (poll() should stop blocking once this is true).
func (r *Report) IsTerminal() bool {
	switch r.Progress.Status {
	case jobproc.ProgressCompleted, jobproc.ProgressAborted:
		return true
	default:
		return false
	}
}

// UpdateHook is invoked by poll() on every intermediate tick; adapters use
// it only to push an in-memory snapshot, never to persist.
type UpdateHook func(r *Report)

// MissingInputError signals build_request_body could not assemble a valid
// request body from the record/job config (e.g. a required identifier is
// absent) — these never reach the downstream service at all.
type MissingInputError struct{ Reason string }

func (e *MissingInputError) Error() string { return "missing input: " + e.Reason }

// UnreachableError/TimeoutError/RejectedError/AbortedError classify the
// ways submit/poll can fail once a request does reach (or fails to reach)
// the downstream service.
type UnreachableError struct{ Err error }

func (e *UnreachableError) Error() string { return "downstream unreachable: " + e.Err.Error() }
func (e *UnreachableError) Unwrap() error { return e.Err }

type TimeoutError struct{ Elapsed time.Duration }

func (e *TimeoutError) Error() string { return "downstream timed out after " + e.Elapsed.String() }

type RejectedError struct{ StatusCode int; Body string }

func (e *RejectedError) Error() string { return "downstream rejected request: " + e.Body }

type AbortedError struct{ Reason string }

func (e *AbortedError) Error() string { return "aborted: " + e.Reason }

// StageAdapter is the capability set each pipeline stage implements against
// its downstream service.
type StageAdapter interface {
	Stage() jobproc.Stage

	// BuildRequestBody assembles the downstream submit payload for a
	// record, or returns a MissingInputError if the record/job config
	// lack what this stage needs.
	BuildRequestBody(cfg *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error)

	// Submit posts the body to the downstream service and returns its
	// assigned token.
	Submit(ctx context.Context, body map[string]any) (token string, err error)

	// Poll blocks, calling hook on every intermediate tick, until the
	// downstream report reaches a terminal state or the configured
	// timeout elapses.
	Poll(ctx context.Context, token string, hook UpdateHook) (*Report, error)

	// Abort requests the downstream service cancel an in-flight call.
	// Safe to call concurrently with an in-flight Poll.
	Abort(ctx context.Context, token, reason, origin string) error

	// Success interprets a terminal report's domain-specific success
	// flag (usually data.success; validation stages use data.valid).
	Success(report *Report) bool

	// Eval writes this stage's outcome back onto the record: artifact
	// location, and any identifiers the downstream service assigned.
	Eval(rec *jobproc.Record, report *Report)
}
