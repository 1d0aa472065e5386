package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	apperrors "github.com/dcm-services/job-processor/internal/pkg/errors"
)

type IERepo struct{ db *gorm.DB }

func NewIERepo(db *gorm.DB) *IERepo { return &IERepo{db: db} }

// FindByTuple looks up an existing IE row by the unique
// (job_config_id, origin_system_id, external_id, archive_id) tuple.
func (r *IERepo) FindByTuple(ctx context.Context, jobConfigID, originSystemID, externalID, archiveID string) (*jobproc.IERow, error) {
	var row jobproc.IERow
	err := r.db.WithContext(ctx).Where(
		"job_config_id = ? AND origin_system_id = ? AND external_id = ? AND archive_id = ?",
		jobConfigID, originSystemID, externalID, archiveID,
	).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *IERepo) Insert(ctx context.Context, row *jobproc.IERow) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *IERepo) UpdateSourceOrganization(ctx context.Context, id, sourceOrganization string) error {
	return r.db.WithContext(ctx).Model(&jobproc.IERow{}).
		Where("id = ? AND (source_organization IS NULL OR source_organization = '')", id).
		Update("source_organization", sourceOrganization).Error
}
