package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	apperrors "github.com/dcm-services/job-processor/internal/pkg/errors"
)

type RecordRepo struct{ db *gorm.DB }

func NewRecordRepo(db *gorm.DB) *RecordRepo { return &RecordRepo{db: db} }

func (r *RecordRepo) Insert(ctx context.Context, row *jobproc.RecordRow) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *RecordRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&jobproc.RecordRow{}).Where("id = ?", id).Updates(fields).Error
}

func (r *RecordRepo) GetByID(ctx context.Context, id string) (*jobproc.RecordRow, error) {
	var row jobproc.RecordRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// InProcessForJobConfig lists every still-running record belonging to a
// job config — the Job Collector's resume phase starting point.
func (r *RecordRepo) InProcessForJobConfig(ctx context.Context, jobConfigID string) ([]jobproc.RecordRow, error) {
	var rows []jobproc.RecordRow
	err := r.db.WithContext(ctx).
		Where("job_config_id = ? AND status = ?", jobConfigID, jobproc.StatusInProcess).
		Find(&rows).Error
	return rows, err
}

// RepointToJob updates a resumed record's job_token to the current job,
// once the owning job's artifacts are confirmed still resumable.
func (r *RecordRepo) RepointToJob(ctx context.Context, id, newToken string) error {
	return r.UpdateFields(ctx, id, map[string]any{
		"job_token":        newToken,
		"datetime_changed": time.Now(),
	})
}
