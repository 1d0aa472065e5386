// Package runtime holds the per-job execution context: the single mutex
// guarding a job's shared Report, the registry of live per-stage-call abort
// handles, and the job-level cancellation signal the Job Runner watches.
package runtime

import (
	"context"
	"sync"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
)

// AbortHandle is a closure registered for one in-flight stage call. The
// Stage Runner's handles hold the stage adapter that made the call and
// issue the downstream abort + best-effort final-report fetch through it,
// reusing that adapter's HTTP client; they hold no reference to the Stage
// Runner, so abort can fan out even if the originating goroutine has
// already moved on.
type AbortHandle func(ctx context.Context, reason, origin string)

// Context is the single shared, mutex-guarded handle every task running
// within one job holds a reference to. It is the only piece of cross-task
// mutable state in the system (spec §5): Report mutations, abort-handle
// registration, and cancellation all funnel through it.
type Context struct {
	JobToken string
	Config   *jobproc.JobConfig
	JobCtx   jobproc.JobContext
	Report   *jobproc.Report

	mu      sync.Mutex
	aborts  map[string]AbortHandle
	cancel  context.CancelFunc
	ctx     context.Context
}

// New builds a Context bound to a cancelable child of parent; canceling the
// returned Context's Ctx() happens when Cancel is called (e.g. by the
// Abort Hook) and is observed cooperatively at the next push/poll tick by
// every task running within the job.
func New(parent context.Context, token string, cfg *jobproc.JobConfig, jc jobproc.JobContext, report *jobproc.Report) *Context {
	ctx, cancel := context.WithCancel(parent)
	return &Context{
		JobToken: token,
		Config:   cfg,
		JobCtx:   jc,
		Report:   report,
		aborts:   map[string]AbortHandle{},
		cancel:   cancel,
		ctx:      ctx,
	}
}

// Ctx returns the cancelable context tasks within this job should use for
// outbound calls.
func (c *Context) Ctx() context.Context { return c.ctx }

// AddChild registers an abort handle for one in-flight stage call, keyed by
// its log id, serialized under the same mutex that guards Report mutation
// (spec §5: "add_child/remove_child/push serialized under same mutex").
func (c *Context) AddChild(logID string, h AbortHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborts[logID] = h
}

// RemoveChild unregisters a stage call's abort handle once it returns,
// terminal either way.
func (c *Context) RemoveChild(logID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.aborts, logID)
}

// Abort fans out to every currently-registered abort handle, cancels the
// job's context so any task still running observes cancellation at its
// next push/poll tick, and returns the log ids it notified.
func (c *Context) Abort(ctx context.Context, reason, origin string) []string {
	c.mu.Lock()
	handles := make(map[string]AbortHandle, len(c.aborts))
	for k, v := range c.aborts {
		handles[k] = v
	}
	c.mu.Unlock()

	notified := make([]string, 0, len(handles))
	for logID, h := range handles {
		h(ctx, reason, origin)
		notified = append(notified, logID)
	}
	c.cancel()
	return notified
}

// Canceled reports whether this job's context has already been canceled.
func (c *Context) Canceled() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}
