// Package statemachine implements the pure decision logic that drives a
// record through the pipeline: which stage runs next, and what terminal
// status a stage outcome implies. Neither function here performs I/O or
// mutates its inputs — both are safe to call repeatedly and from any
// goroutine.
package statemachine

import "github.com/dcm-services/job-processor/internal/domain/jobproc"

// NextStages is what GetNextStage returns: usually a single stage, but
// VALIDATION_METADATA and VALIDATION_PAYLOAD can run as a parallel pair.
type NextStages []jobproc.Stage

// None reports whether the record has reached a terminal point (success
// or test-mode cutoff) and the Record Runner should stop advancing it.
func (n NextStages) None() bool { return len(n) == 0 }

func validatedEnough(rec *jobproc.Record) bool {
	if rec.Bitstream || rec.SkipObjectValidation {
		return true
	}
	return rec.StageSucceeded(jobproc.StageValidationPayload)
}

func validationTargets(rec *jobproc.Record) NextStages {
	if rec.Bitstream || rec.SkipObjectValidation {
		return NextStages{jobproc.StageValidationMetadata}
	}
	return NextStages{jobproc.StageValidationMetadata, jobproc.StageValidationPayload}
}

// GetNextStage decides what stage(s) a record should run next, given its
// current stage outcomes and the job config it belongs to. It returns an
// empty NextStages once the record has reached a terminal point: after a
// successful INGEST, or after BUILD_SIP when the job config is in test
// mode. The check proceeds from the most-advanced completed stage backward,
// so a record that has already progressed never re-evaluates an earlier
// branch.
func GetNextStage(rec *jobproc.Record, cfg *jobproc.JobConfig) NextStages {
	if rec.StageSucceeded(jobproc.StageIngest) {
		return nil
	}
	if rec.StageSucceeded(jobproc.StageTransfer) {
		return NextStages{jobproc.StageIngest}
	}
	if rec.StageSucceeded(jobproc.StageBuildSIP) {
		if cfg != nil && cfg.TestMode {
			return nil
		}
		return NextStages{jobproc.StageTransfer}
	}
	if rec.StageSucceeded(jobproc.StagePrepareIP) {
		return NextStages{jobproc.StageBuildSIP}
	}
	if rec.StageSucceeded(jobproc.StageValidationMetadata) && validatedEnough(rec) {
		return NextStages{jobproc.StagePrepareIP}
	}

	hotfolder := cfg != nil && cfg.Template.Type == jobproc.TemplateHotfolder

	if hotfolder {
		if rec.StageSucceeded(jobproc.StageImportIPs) {
			return validationTargets(rec)
		}
		return NextStages{jobproc.StageImportIPs}
	}

	if rec.StageSucceeded(jobproc.StageBuildIP) {
		return validationTargets(rec)
	}
	if rec.StageSucceeded(jobproc.StageImportIEs) {
		return NextStages{jobproc.StageBuildIP}
	}
	return NextStages{jobproc.StageImportIEs}
}

// GetRecordStatus derives the record's status after a stage just ran.
// A record that has already reached a terminal status never moves again
// (status is monotonic once it leaves INPROCESS); otherwise a failed stage
// maps to that stage's error status and a successful one keeps the record
// INPROCESS until GetNextStage reports no further work.
func GetRecordStatus(stage jobproc.Stage, rec *jobproc.Record) jobproc.RecordStatus {
	if rec.Status.IsTerminal() {
		return rec.Status
	}
	si, ok := rec.Stages[stage]
	if !ok || !si.Completed {
		return jobproc.StatusInProcess
	}
	if si.Success == nil || !*si.Success {
		return jobproc.ErrorStatusForStage(stage)
	}
	return jobproc.StatusInProcess
}
