// Package repos is the gorm-backed persistence layer over the jobs,
// records, ies, artifacts, templates, job_configs, user_configs, and
// deployment tables described in the external interfaces section.
package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	apperrors "github.com/dcm-services/job-processor/internal/pkg/errors"
)

type JobRepo struct{ db *gorm.DB }

func NewJobRepo(db *gorm.DB) *JobRepo { return &JobRepo{db: db} }

// Insert creates a new job row. Inserting a token that already exists
// fails with the database's own unique-constraint error, not a sentinel;
// POST /process looks the token up with GetByToken before inserting.
func (r *JobRepo) Insert(ctx context.Context, row *jobproc.JobRow) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *JobRepo) GetByToken(ctx context.Context, token string) (*jobproc.JobRow, error) {
	var row jobproc.JobRow
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *JobRepo) UpdateFields(ctx context.Context, token string, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&jobproc.JobRow{}).Where("token = ?", token).Updates(fields).Error
}

// ClaimNextQueued locks and claims the oldest queued job row for this
// worker, using SKIP LOCKED so concurrent worker processes never contend
// on the same row and never double-claim one.
func (r *JobRepo) ClaimNextQueued(ctx context.Context) (*jobproc.JobRow, error) {
	var row jobproc.JobRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", jobproc.JobQueued).
			Order("created_at ASC").
			Limit(1).
			First(&row).Error
		if err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&jobproc.JobRow{}).Where("token = ?", row.Token).Updates(map[string]any{
			"status":            jobproc.JobRunning,
			"datetime_started":  &now,
		}).Error
	})
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	row.Status = jobproc.JobRunning
	return &row, nil
}

// ExtendArtifactsExpiry bumps a job's datetime_artifacts_expire to newExpiry
// only if the current value is still in the future (or unset), matching
// the resume-phase TTL-extension rule.
func (r *JobRepo) ExtendArtifactsExpiry(ctx context.Context, token string, newExpiry time.Time) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&jobproc.JobRow{}).
		Where("token = ? AND (datetime_artifacts_expire IS NULL OR datetime_artifacts_expire > ?)", token, now).
		Update("datetime_artifacts_expire", newExpiry).Error
}
