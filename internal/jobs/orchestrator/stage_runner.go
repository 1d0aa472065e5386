// Package orchestrator drives a single record through the pipeline: the
// Stage Runner executes one stage call end to end, the Record Runner
// repeatedly asks the state machine what to run next, the Job Collector
// resumes or freshly imports a job's record set, the Job Runner bounds
// concurrency across records, and the Abort Hook tears a job down on
// request.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/jobs/adapters"
	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
)

// StageRunner executes one stage call for one record, start to finish:
// token allocation, abort-handle registration, submit/poll, eval, and
// (unless skipped) post-stage persistence. It never returns an error to
// its caller — every failure mode terminates in a RecordStatus on rec
// itself, matching the spec's "exception-for-control-flow" design note.
type StageRunner struct {
	Adapters *adapters.Registry
	Post     *PostStage
	Log      *logger.Logger
}

func NewStageRunner(reg *adapters.Registry, post *PostStage, log *logger.Logger) *StageRunner {
	return &StageRunner{Adapters: reg, Post: post, Log: log}
}

// Run executes stage for rec within jc. skipEval/skipPostStage are used by
// the Job Collector's fresh-import phase, which runs the import stage
// against a synthetic record purely to harvest its child reports. It
// returns the downstream adapter's final report, including one whose
// outcome is unsuccessful, and nil when no final report was obtained
// (missing adapter, build/submit/poll error, panic), so the
// Job Collector can read report.data.records directly, per the import
// stages' batch-return contract.
func (sr *StageRunner) Run(jc *jobrt.Context, stage jobproc.Stage, rec *jobproc.Record, skipEval, skipPostStage bool) (final *adapters.Report) {
	defer func() {
		if r := recover(); r != nil {
			sr.fail(jc, stage, rec, fmt.Errorf("panic running stage %q: %v", stage, r))
			final = nil
		}
	}()

	adapter, err := sr.Adapters.Get(stage)
	if err != nil {
		sr.fail(jc, stage, rec, err)
		return nil
	}

	token := uuid.NewString()
	logID := jobproc.LogID(token, stage)
	rec.Lock()
	si := rec.StageInfo(stage)
	si.Token = token
	si.LogID = logID
	rec.Unlock()
	jc.Report.SetChild(logID, json.RawMessage(`{}`))

	abortHandle := sr.abortClosure(adapter, token, logID, jc.Report)
	jc.AddChild(logID, abortHandle)
	defer jc.RemoveChild(logID)

	body, err := adapter.BuildRequestBody(jc.Config, rec)
	if err != nil {
		sr.finishFailed(jc, stage, rec, si, fmt.Errorf("build request body: %w", err))
		return nil
	}

	submitted, err := adapter.Submit(jc.Ctx(), body)
	if err != nil {
		sr.finishFailed(jc, stage, rec, si, fmt.Errorf("submit: %w", err))
		return nil
	}
	rec.Lock()
	si.Token = submitted
	rec.Unlock()

	report, err := adapter.Poll(jc.Ctx(), submitted, func(r *adapters.Report) {
		if blob, merr := json.Marshal(r); merr == nil {
			jc.Report.SetChild(logID, blob)
		}
	})
	if err != nil {
		sr.finishFailed(jc, stage, rec, si, fmt.Errorf("poll: %w", err))
		return nil
	}
	if blob, merr := json.Marshal(report); merr == nil {
		jc.Report.SetChild(logID, blob)
	}

	success := adapter.Success(report)
	rec.Lock()
	if !skipEval {
		adapter.Eval(rec, report)
	}
	si.Completed = true
	si.Success = &success
	if !success {
		rec.Status = jobproc.ErrorStatusForStage(stage)
	}
	rec.Unlock()

	if !success {
		for _, line := range report.Log {
			jc.Report.AppendLog(fmt.Sprintf("Running stage '%s' for record '%s' caused an error: %s", stage, rec.ID, line))
		}
		return report
	}

	if skipPostStage {
		return report
	}
	if sr.Post != nil {
		ttl := time.Duration(jc.JobCtx.ArtifactsTTL) * time.Second
		if err := sr.Post.Apply(jc.Ctx(), jc.Config, rec, stage, si, ttl); err != nil {
			jc.Report.AppendLog(fmt.Sprintf("post-stage persistence for '%s' record '%s' failed: %s", stage, rec.ID, err))
		}
	}
	return report
}

func (sr *StageRunner) finishFailed(jc *jobrt.Context, stage jobproc.Stage, rec *jobproc.Record, si *jobproc.RecordStageInfo, err error) {
	success := false
	rec.Lock()
	si.Completed = true
	si.Success = &success
	rec.Status = jobproc.ErrorStatusForStage(stage)
	rec.Unlock()
	jc.Report.AppendLog(fmt.Sprintf("Running stage '%s' for record '%s' caused an error: %s", stage, rec.ID, err))
}

// fail handles errors that occur before a RecordStageInfo even exists
// (e.g. no adapter registered for the stage) — these are orchestrator
// bugs, not downstream failures, so they always map to PROCESS_ERROR.
func (sr *StageRunner) fail(jc *jobrt.Context, stage jobproc.Stage, rec *jobproc.Record, err error) {
	success := false
	rec.Lock()
	si := rec.StageInfo(stage)
	si.Completed = true
	si.Success = &success
	rec.Status = jobproc.StatusProcessError
	rec.Unlock()
	jc.Report.AppendLog(fmt.Sprintf("Running stage '%s' for record '%s' caused an error: %s", stage, rec.ID, err))
}

// abortClosure builds the abort handle registered for one stage call. It
// holds the stage adapter and issues the downstream DELETE plus a
// best-effort final-report fetch through that adapter's own transport to
// overwrite report.children[log_id]; it does not copy the adapter config
// or build a new HTTP client. It keeps no reference to the Stage Runner
// that created it.
func (sr *StageRunner) abortClosure(adapter adapters.StageAdapter, token, logID string, report *jobproc.Report) jobrt.AbortHandle {
	return func(ctx context.Context, reason, origin string) {
		abortCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = adapter.Abort(abortCtx, token, reason, origin)

		final, err := adapter.Poll(abortCtx, token, nil)
		if err == nil && final != nil {
			if blob, merr := json.Marshal(final); merr == nil {
				report.SetChild(logID, blob)
				return
			}
		}
		report.SetChild(logID, json.RawMessage(fmt.Sprintf(
			`{"token":%q,"progress":{"status":"aborted","verbose":%q,"numeric":0}}`,
			token, fmt.Sprintf("aborted: %s (%s)", reason, origin),
		)))
	}
}
