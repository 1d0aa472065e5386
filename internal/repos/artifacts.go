package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
)

type ArtifactRepo struct{ db *gorm.DB }

func NewArtifactRepo(db *gorm.DB) *ArtifactRepo { return &ArtifactRepo{db: db} }

func (r *ArtifactRepo) Insert(ctx context.Context, row *jobproc.ArtifactRow) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ExtendExpiryForRecord bumps every still-future artifact row belonging to
// a record to newExpiry. It runs as its own update, separate from the
// job-level JobRepo.ExtendArtifactsExpiry; rows that have already expired
// are left unchanged.
func (r *ArtifactRepo) ExtendExpiryForRecord(ctx context.Context, recordID string, newExpiry time.Time) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&jobproc.ArtifactRow{}).
		Where("record_id = ? AND datetime_expires > ?", recordID, now).
		Update("datetime_expires", newExpiry).Error
}

// DeleteExpired removes rows whose TTL has passed without touching their
// storage objects; cmd/reaper does not use it and sweeps with
// ListExpired/DeleteOne instead.
func (r *ArtifactRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("datetime_expires <= ?", now).Delete(&jobproc.ArtifactRow{})
	return res.RowsAffected, res.Error
}

// ListExpired returns every row whose TTL has passed, so a caller can clean
// up the backing storage object before removing the row itself.
func (r *ArtifactRepo) ListExpired(ctx context.Context, now time.Time) ([]jobproc.ArtifactRow, error) {
	var rows []jobproc.ArtifactRow
	err := r.db.WithContext(ctx).Where("datetime_expires <= ?", now).Find(&rows).Error
	return rows, err
}

// DeleteOne removes a single artifact row by id, used by the reaper after
// it has successfully removed the backing storage object.
func (r *ArtifactRepo) DeleteOne(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&jobproc.ArtifactRow{}, id).Error
}

func (r *ArtifactRepo) ListAll(ctx context.Context) ([]jobproc.ArtifactRow, error) {
	var rows []jobproc.ArtifactRow
	err := r.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}
