// Package jobproc holds the persisted and in-memory data model for the
// job-processor control plane: stages, records, jobs, and the downstream
// archive configuration that drives stage dispatch.
package jobproc

// Stage identifies one step of the fixed processing pipeline a record moves
// through. Stages are ordered but not strictly linear — VALIDATION_METADATA
// and VALIDATION_PAYLOAD can run as a parallel pair, and IMPORT_IES/
// IMPORT_IPS are mutually exclusive entry points.
type Stage string

const (
	StageImportIEs            Stage = "IMPORT_IES"
	StageImportIPs            Stage = "IMPORT_IPS"
	StageBuildIP              Stage = "BUILD_IP"
	StageValidationMetadata   Stage = "VALIDATION_METADATA"
	StageValidationPayload    Stage = "VALIDATION_PAYLOAD"
	StagePrepareIP            Stage = "PREPARE_IP"
	StageBuildSIP             Stage = "BUILD_SIP"
	StageTransfer             Stage = "TRANSFER"
	StageIngest               Stage = "INGEST"
)

// Producer stages are the ones whose successful output is an artifact worth
// persisting a row for (see post-stage persistence).
func (s Stage) IsProducer() bool {
	switch s {
	case StageImportIEs, StageImportIPs, StageBuildIP, StagePrepareIP, StageBuildSIP:
		return true
	default:
		return false
	}
}

// RecordStatus is the terminal-or-in-process state of a single record.
type RecordStatus string

const (
	StatusInProcess     RecordStatus = "INPROCESS"
	StatusComplete      RecordStatus = "COMPLETE"
	StatusImportError   RecordStatus = "IMPORT_ERROR"
	StatusBuildIPError  RecordStatus = "BUILDIP_ERROR"
	StatusIPValError    RecordStatus = "IPVAL_ERROR"
	StatusObjValError   RecordStatus = "OBJVAL_ERROR"
	StatusPrepareIPErr  RecordStatus = "PREPAREIP_ERROR"
	StatusBuildSIPError RecordStatus = "BUILDSIP_ERROR"
	StatusTransferError RecordStatus = "TRANSFER_ERROR"
	StatusIngestError   RecordStatus = "INGEST_ERROR"
	StatusProcessError  RecordStatus = "PROCESS_ERROR"
)

// IsTerminal reports whether a status represents a finished record — every
// terminal status must have RecordStageInfo.Completed=true on the stage that
// produced it (invariant 3 of the data model).
func (s RecordStatus) IsTerminal() bool {
	return s != StatusInProcess
}

// ErrorStatusForStage maps a failed stage to the RecordStatus it produces.
// TRANSFER and VALIDATION_PAYLOAD each have their own status
// (TRANSFER_ERROR, OBJVAL_ERROR).
func ErrorStatusForStage(stage Stage) RecordStatus {
	switch stage {
	case StageImportIEs, StageImportIPs:
		return StatusImportError
	case StageBuildIP:
		return StatusBuildIPError
	case StageValidationMetadata:
		return StatusIPValError
	case StageValidationPayload:
		return StatusObjValError
	case StagePrepareIP:
		return StatusPrepareIPErr
	case StageBuildSIP:
		return StatusBuildSIPError
	case StageTransfer:
		return StatusTransferError
	case StageIngest:
		return StatusIngestError
	default:
		return StatusProcessError
	}
}

// TemplateType selects how IMPORT_IES/IMPORT_IPS shape their request body.
type TemplateType string

const (
	TemplatePlugin    TemplateType = "plugin"
	TemplateOAI       TemplateType = "oai"
	TemplateHotfolder TemplateType = "hotfolder"
)

// TriggerType records why a job started running.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
	TriggerOnetime   TriggerType = "onetime"
	TriggerTest      TriggerType = "test"
)

// ArchiveAPI identifies the downstream archive system a TRANSFER/INGEST
// pair targets. ROSETTA_REST_V0 is the only supported archive type today;
// the enum exists so a second archive backend only needs a new case in the
// INGEST adapter, not a schema change.
type ArchiveAPI string

const (
	ArchiveRosettaRESTv0 ArchiveAPI = "ROSETTA_REST_V0"
)

// JobStatus is the lifecycle state of a job row.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobAborted   JobStatus = "aborted"
)

// ProgressStatus is the downstream-report vocabulary surfaced through
// Report.Progress.Status (also used for the Job's own live status).
type ProgressStatus string

const (
	ProgressQueued    ProgressStatus = "queued"
	ProgressRunning   ProgressStatus = "running"
	ProgressCompleted ProgressStatus = "completed"
	ProgressAborted   ProgressStatus = "aborted"
)
