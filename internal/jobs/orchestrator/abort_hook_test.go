package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
	apperrors "github.com/dcm-services/job-processor/internal/pkg/errors"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
)

func newAbortHookFixture(t *testing.T) (*AbortHook, *repos.JobRepo, *LiveJobs) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&jobproc.JobRow{}))

	log, err := logger.New("test")
	require.NoError(t, err)

	jobs := repos.NewJobRepo(db)
	live := NewLiveJobs()
	return NewAbortHook(live, jobs, log), jobs, live
}

func TestAbortHook_UnknownTokenReturnsWrappedNotFound(t *testing.T) {
	hook, _, _ := newAbortHookFixture(t)
	_, err := hook.Abort(context.Background(), "nope", "operator", "test")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAbortHook_AlreadyFinishedIsANoop(t *testing.T) {
	hook, jobs, _ := newAbortHookFixture(t)
	require.NoError(t, jobs.Insert(context.Background(), &jobproc.JobRow{Token: "tok-done", Status: jobproc.JobCompleted}))

	msg, err := hook.Abort(context.Background(), "tok-done", "operator", "test")
	require.NoError(t, err)
	require.Contains(t, msg, "no-op")

	row, err := jobs.GetByToken(context.Background(), "tok-done")
	require.NoError(t, err)
	require.Equal(t, jobproc.JobCompleted, row.Status)
}

func TestAbortHook_LiveJobFansOutInsteadOfWritingRow(t *testing.T) {
	hook, jobs, live := newAbortHookFixture(t)
	require.NoError(t, jobs.Insert(context.Background(), &jobproc.JobRow{Token: "tok-live", Status: jobproc.JobRunning}))

	report := jobproc.NewReport("tok-live")
	jc := jobrt.New(context.Background(), "tok-live", &jobproc.JobConfig{}, jobproc.JobContext{}, report)
	live.Register("tok-live", jc)
	defer live.Unregister("tok-live")

	msg, err := hook.Abort(context.Background(), "tok-live", "operator", "test")
	require.NoError(t, err)
	require.Contains(t, msg, "in-flight")

	row, err := jobs.GetByToken(context.Background(), "tok-live")
	require.NoError(t, err)
	require.Equal(t, jobproc.JobRunning, row.Status, "finalize happens in the job runner, not the abort hook, for live jobs")
}

func TestAbortHook_NeverRunningSynthesizesAbortedRow(t *testing.T) {
	hook, jobs, _ := newAbortHookFixture(t)
	require.NoError(t, jobs.Insert(context.Background(), &jobproc.JobRow{Token: "tok-never", Status: jobproc.JobQueued}))

	msg, err := hook.Abort(context.Background(), "tok-never", "operator requested cancel", "operator")
	require.NoError(t, err)
	require.Contains(t, msg, "synthesized")

	row, err := jobs.GetByToken(context.Background(), "tok-never")
	require.NoError(t, err)
	require.Equal(t, jobproc.JobAborted, row.Status)
	require.NotNil(t, row.DatetimeEnded)
	require.NotEmpty(t, row.Report)
}
