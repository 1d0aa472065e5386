package jobproc

import (
	"fmt"
	"sync"
)

// RecordStageInfo is the per-stage outcome tracked on a Record. LogID ties
// the stage back to its entry in Report.Children. The Stage Runner sets it
// when the stage call starts, before Completed is true, so a stage that is
// still in flight or was aborted carries a LogID with Completed false.
type RecordStageInfo struct {
	Completed bool    `json:"completed"`
	Success   *bool   `json:"success,omitempty"`
	Token     string  `json:"token,omitempty"`
	LogID     string  `json:"log_id,omitempty"`
	Artifact  *string `json:"artifact,omitempty"`
}

// LogID formats the "<token>@<stage>" key used to look up a stage's report
// inside Report.Children.
func LogID(token string, stage Stage) string {
	return fmt.Sprintf("%s@%s", token, stage)
}

// Record is the in-memory working copy of a single archival record moving
// through the pipeline. Only a subset of its fields is ever persisted to the
// `records` table (see RecordRow); the rest exists to drive stage
// dispatch and adapter request bodies.
type Record struct {
	ID                   string
	Started              bool
	Completed            bool
	Status               RecordStatus
	DatetimeChanged       string
	Bitstream            bool
	SkipObjectValidation bool
	SourceOrganization   string
	ExternalID           string
	OriginSystemID       string
	ImportType           TemplateType
	OAIIdentifier        string
	OAIDatestamp         string
	HotfolderOriginalPath string
	ArchiveSIPID         string
	ArchiveIEID          string
	IEID                 string
	Stages               map[Stage]*RecordStageInfo

	// mu guards concurrent mutation of this record's fields when two
	// stages in the same step (VALIDATION_METADATA/VALIDATION_PAYLOAD)
	// run as parallel goroutines against the same Record.
	mu sync.Mutex
}

// Lock/Unlock let callers serialize a critical section across the record's
// shared mutable state (Stages map, Status) without exposing the mutex
// itself.
func (r *Record) Lock()   { r.mu.Lock() }
func (r *Record) Unlock() { r.mu.Unlock() }

// NewRecord builds a Record with an empty, ready-to-populate stage map.
func NewRecord(id string) *Record {
	return &Record{ID: id, Stages: map[Stage]*RecordStageInfo{}}
}

// StageInfo returns (creating if absent) the RecordStageInfo for a stage.
func (r *Record) StageInfo(stage Stage) *RecordStageInfo {
	if r.Stages == nil {
		r.Stages = map[Stage]*RecordStageInfo{}
	}
	si, ok := r.Stages[stage]
	if !ok {
		si = &RecordStageInfo{}
		r.Stages[stage] = si
	}
	return si
}

// StageSucceeded reports whether a stage both ran and succeeded.
func (r *Record) StageSucceeded(stage Stage) bool {
	si, ok := r.Stages[stage]
	return ok && si.Completed && si.Success != nil && *si.Success
}

// HasImportIEs/HasImportIPs back invariant 5: a record must never carry
// both import entry points.
func (r *Record) HasImportIEs() bool { _, ok := r.Stages[StageImportIEs]; return ok }
func (r *Record) HasImportIPs() bool { _, ok := r.Stages[StageImportIPs]; return ok }
