package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
)

func succeed(rec *jobproc.Record, stage jobproc.Stage) {
	t := true
	rec.Stages[stage] = &jobproc.RecordStageInfo{Completed: true, Success: &t}
}

func fail(rec *jobproc.Record, stage jobproc.Stage) {
	f := false
	rec.Stages[stage] = &jobproc.RecordStageInfo{Completed: true, Success: &f}
}

func TestGetNextStage_InitialNonHotfolder(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	cfg := &jobproc.JobConfig{}
	require.Equal(t, NextStages{jobproc.StageImportIEs}, GetNextStage(rec, cfg))
}

func TestGetNextStage_InitialHotfolder(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	cfg := &jobproc.JobConfig{Template: jobproc.Template{Type: jobproc.TemplateHotfolder}}
	require.Equal(t, NextStages{jobproc.StageImportIPs}, GetNextStage(rec, cfg))
}

func TestGetNextStage_AfterImportIEs(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	succeed(rec, jobproc.StageImportIEs)
	cfg := &jobproc.JobConfig{}
	require.Equal(t, NextStages{jobproc.StageBuildIP}, GetNextStage(rec, cfg))
}

func TestGetNextStage_AfterBuildIP_FullValidation(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	succeed(rec, jobproc.StageImportIEs)
	succeed(rec, jobproc.StageBuildIP)
	cfg := &jobproc.JobConfig{}
	require.Equal(t, NextStages{jobproc.StageValidationMetadata, jobproc.StageValidationPayload}, GetNextStage(rec, cfg))
}

func TestGetNextStage_BitstreamShortcutSkipsPayload(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	rec.Bitstream = true
	succeed(rec, jobproc.StageImportIPs)
	cfg := &jobproc.JobConfig{Template: jobproc.Template{Type: jobproc.TemplateHotfolder}}
	require.Equal(t, NextStages{jobproc.StageValidationMetadata}, GetNextStage(rec, cfg))
}

func TestGetNextStage_ValidationMetadataWaitsForPayload(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	succeed(rec, jobproc.StageImportIEs)
	succeed(rec, jobproc.StageBuildIP)
	succeed(rec, jobproc.StageValidationMetadata)
	cfg := &jobproc.JobConfig{}
	// payload not yet completed, bitstream/skip not set: still waiting
	require.Equal(t, NextStages{jobproc.StageValidationMetadata, jobproc.StageValidationPayload}, GetNextStage(rec, cfg))

	succeed(rec, jobproc.StageValidationPayload)
	require.Equal(t, NextStages{jobproc.StagePrepareIP}, GetNextStage(rec, cfg))
}

func TestGetNextStage_TestModeStopsAfterBuildSIP(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	succeed(rec, jobproc.StageImportIEs)
	succeed(rec, jobproc.StageBuildIP)
	succeed(rec, jobproc.StageValidationMetadata)
	succeed(rec, jobproc.StageValidationPayload)
	succeed(rec, jobproc.StagePrepareIP)
	succeed(rec, jobproc.StageBuildSIP)
	cfg := &jobproc.JobConfig{TestMode: true}
	require.True(t, GetNextStage(rec, cfg).None())
}

func TestGetNextStage_TransferThenIngestThenDone(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	succeed(rec, jobproc.StageImportIEs)
	succeed(rec, jobproc.StageBuildIP)
	succeed(rec, jobproc.StageValidationMetadata)
	succeed(rec, jobproc.StageValidationPayload)
	succeed(rec, jobproc.StagePrepareIP)
	succeed(rec, jobproc.StageBuildSIP)
	cfg := &jobproc.JobConfig{}
	require.Equal(t, NextStages{jobproc.StageTransfer}, GetNextStage(rec, cfg))

	succeed(rec, jobproc.StageTransfer)
	require.Equal(t, NextStages{jobproc.StageIngest}, GetNextStage(rec, cfg))

	succeed(rec, jobproc.StageIngest)
	require.True(t, GetNextStage(rec, cfg).None())
}

func TestGetRecordStatus_Monotonic(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	rec.Status = jobproc.StatusImportError
	fail(rec, jobproc.StageBuildIP)
	require.Equal(t, jobproc.StatusImportError, GetRecordStatus(jobproc.StageBuildIP, rec))
}

func TestGetRecordStatus_MapsFailureToStageError(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	fail(rec, jobproc.StageValidationPayload)
	require.Equal(t, jobproc.StatusObjValError, GetRecordStatus(jobproc.StageValidationPayload, rec))
}

func TestGetRecordStatus_SuccessStaysInProcess(t *testing.T) {
	rec := jobproc.NewRecord("r1")
	succeed(rec, jobproc.StagePrepareIP)
	require.Equal(t, jobproc.StatusInProcess, GetRecordStatus(jobproc.StagePrepareIP, rec))
}
