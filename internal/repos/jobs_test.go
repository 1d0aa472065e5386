package repos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	apperrors "github.com/dcm-services/job-processor/internal/pkg/errors"
)

func newJobsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&jobproc.JobRow{}))
	return db
}

func TestJobRepo_InsertThenGetByToken(t *testing.T) {
	repo := NewJobRepo(newJobsTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &jobproc.JobRow{Token: "tok-1", Status: jobproc.JobQueued, JobConfigID: "jc-1"}))

	row, err := repo.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, jobproc.JobQueued, row.Status)
	require.Equal(t, "jc-1", row.JobConfigID)
}

func TestJobRepo_GetByTokenUnknownReturnsNotFound(t *testing.T) {
	repo := NewJobRepo(newJobsTestDB(t))
	_, err := repo.GetByToken(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestJobRepo_InsertDuplicateTokenFails(t *testing.T) {
	repo := NewJobRepo(newJobsTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &jobproc.JobRow{Token: "dup", Status: jobproc.JobQueued}))
	err := repo.Insert(ctx, &jobproc.JobRow{Token: "dup", Status: jobproc.JobQueued})
	require.Error(t, err)
}

func TestJobRepo_UpdateFields(t *testing.T) {
	repo := NewJobRepo(newJobsTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &jobproc.JobRow{Token: "tok-2", Status: jobproc.JobQueued}))

	now := time.Now()
	require.NoError(t, repo.UpdateFields(ctx, "tok-2", map[string]any{
		"status":         jobproc.JobCompleted,
		"datetime_ended": &now,
	}))

	row, err := repo.GetByToken(ctx, "tok-2")
	require.NoError(t, err)
	require.Equal(t, jobproc.JobCompleted, row.Status)
	require.NotNil(t, row.DatetimeEnded)
}

func TestJobRepo_ExtendArtifactsExpiry_ExtendsAFutureExpiry(t *testing.T) {
	repo := NewJobRepo(newJobsTestDB(t))
	ctx := context.Background()

	soon := time.Now().Add(time.Hour)
	require.NoError(t, repo.Insert(ctx, &jobproc.JobRow{Token: "tok-3", Status: jobproc.JobRunning, DatetimeArtifactsExpire: &soon}))

	newExpiry := time.Now().Add(24 * time.Hour)
	require.NoError(t, repo.ExtendArtifactsExpiry(ctx, "tok-3", newExpiry))

	row, err := repo.GetByToken(ctx, "tok-3")
	require.NoError(t, err)
	require.WithinDuration(t, newExpiry, *row.DatetimeArtifactsExpire, time.Second)
}

func TestJobRepo_ExtendArtifactsExpiry_LeavesAnAlreadyExpiredRowAlone(t *testing.T) {
	repo := NewJobRepo(newJobsTestDB(t))
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Insert(ctx, &jobproc.JobRow{Token: "tok-4", Status: jobproc.JobRunning, DatetimeArtifactsExpire: &past}))

	newExpiry := time.Now().Add(24 * time.Hour)
	require.NoError(t, repo.ExtendArtifactsExpiry(ctx, "tok-4", newExpiry))

	row, err := repo.GetByToken(ctx, "tok-4")
	require.NoError(t, err)
	require.WithinDuration(t, past, *row.DatetimeArtifactsExpire, time.Second)
}
