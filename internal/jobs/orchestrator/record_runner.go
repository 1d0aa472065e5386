package orchestrator

import (
	"sync"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
	"github.com/dcm-services/job-processor/internal/jobs/statemachine"
)

// RecordRunner drives a single record to completion: repeatedly asking the
// state machine what to run next, running that step (a single stage, or a
// parallel pair for VALIDATION_METADATA/VALIDATION_PAYLOAD), and stopping
// once the record reaches a terminal status or the job context is
// canceled.
type RecordRunner struct {
	Stages *StageRunner
}

func NewRecordRunner(stages *StageRunner) *RecordRunner {
	return &RecordRunner{Stages: stages}
}

// Run drives rec through the pipeline and returns once it has reached a
// terminal point: GetNextStage reports no further work, or the job was
// canceled mid-flight.
func (rr *RecordRunner) Run(jc *jobrt.Context, rec *jobproc.Record) {
	for {
		if jc.Canceled() {
			return
		}
		next := statemachine.GetNextStage(rec, jc.Config)
		if next.None() {
			if !rec.Status.IsTerminal() {
				rec.Status = jobproc.StatusComplete
				rec.Completed = true
			}
			jc.Report.SetRecord(*rec)
			return
		}

		rr.runStep(jc, rec, next)
		jc.Report.SetRecord(*rec)

		if rec.Status.IsTerminal() {
			rec.Completed = true
			return
		}
	}
}

// runStep executes every stage in next concurrently — a no-op for the
// common single-stage case, and the mechanism behind
// VALIDATION_METADATA/VALIDATION_PAYLOAD's parallel pair.
func (rr *RecordRunner) runStep(jc *jobrt.Context, rec *jobproc.Record, next statemachine.NextStages) {
	if len(next) == 1 {
		rr.Stages.Run(jc, next[0], rec, false, false)
		return
	}
	var wg sync.WaitGroup
	for _, stage := range next {
		wg.Add(1)
		go func(s jobproc.Stage) {
			defer wg.Done()
			rr.Stages.Run(jc, s, rec, false, false)
		}(stage)
	}
	wg.Wait()
}
