package repos

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	apperrors "github.com/dcm-services/job-processor/internal/pkg/errors"
)

type JobConfigRepo struct{ db *gorm.DB }

func NewJobConfigRepo(db *gorm.DB) *JobConfigRepo { return &JobConfigRepo{db: db} }

// LoadTemplateAndJobConfig resolves the runtime JobConfig for a job config
// id: the job_configs row gives data selection/processing/archives, and
// its referenced templates row gives the import shape. A template row with
// no additional_information is treated as an empty object rather than a
// load error, matching the donor source's behavior of patching in an empty
// target_archive when the template omits one.
func (r *JobConfigRepo) LoadTemplateAndJobConfig(ctx context.Context, jobConfigID string) (*jobproc.JobConfig, error) {
	var jc jobproc.JobConfigRow
	if err := r.db.WithContext(ctx).Where("id = ?", jobConfigID).First(&jc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	var tmpl jobproc.TemplateRow
	if err := r.db.WithContext(ctx).Where("id = ?", jc.TemplateID).First(&tmpl).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	cfg := &jobproc.JobConfig{
		ID:                     jobConfigID,
		DefaultTargetArchiveID: jc.DefaultTargetArchiveID,
	}
	cfg.Template.Type = tmpl.Type
	cfg.Template.TargetArchive = tmpl.TargetArchive
	_ = unmarshalInto([]byte(tmpl.AdditionalInformation), &cfg.Template.AdditionalInformation)
	if cfg.Template.AdditionalInformation == nil {
		cfg.Template.AdditionalInformation = map[string]any{}
	}
	_ = unmarshalInto([]byte(jc.DataSelection), &cfg.DataSelection)
	_ = unmarshalInto([]byte(jc.DataProcessing), &cfg.DataProcessing)
	_ = unmarshalInto([]byte(jc.ExecutionContext), &cfg.ExecutionContext)

	var archives map[string]jobproc.ArchiveConfiguration
	_ = unmarshalInto([]byte(jc.Archives), &archives)
	cfg.Archives = archives

	return cfg, nil
}

func unmarshalInto(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
