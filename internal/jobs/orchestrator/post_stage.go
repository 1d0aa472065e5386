package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	"github.com/dcm-services/job-processor/internal/repos"
)

// PostStage applies the durable side effects a successful stage call
// implies: inserting the records row on import, linking to an IE on
// metadata validation, updating archive identifiers on ingest, and
// recording any producer stage's artifact location.
type PostStage struct {
	Records   *repos.RecordRepo
	IEs       *repos.IERepo
	Artifacts *repos.ArtifactRepo
	Now       func() time.Time
}

func NewPostStage(records *repos.RecordRepo, ies *repos.IERepo, artifacts *repos.ArtifactRepo) *PostStage {
	return &PostStage{Records: records, IEs: ies, Artifacts: artifacts, Now: time.Now}
}

// Apply runs the per-stage persistence step described in spec §4.5. It
// never terminates the record itself on a persistence error — these are
// logged as advisory and the pipeline keeps moving, per the transient
// persistence-error handling policy in §7. artifactsTTL is the job
// context's artifacts_ttl, used to stamp any artifact row this stage
// produces.
func (p *PostStage) Apply(ctx context.Context, cfg *jobproc.JobConfig, rec *jobproc.Record, stage jobproc.Stage, si *jobproc.RecordStageInfo, artifactsTTL time.Duration) error {
	now := p.Now()

	switch stage {
	case jobproc.StageImportIEs, jobproc.StageImportIPs:
		if err := p.insertRecordRow(ctx, cfg, rec, stage, now); err != nil {
			return fmt.Errorf("insert record row: %w", err)
		}
	case jobproc.StageValidationMetadata:
		if err := p.linkRecordToIE(ctx, cfg, rec, now); err != nil {
			return fmt.Errorf("link record to IE: %w", err)
		}
	case jobproc.StageIngest:
		if err := p.Records.UpdateFields(ctx, rec.ID, map[string]any{
			"archive_ie_id":  rec.ArchiveIEID,
			"archive_sip_id": rec.ArchiveSIPID,
		}); err != nil {
			return fmt.Errorf("update archive identifiers: %w", err)
		}
	}

	if stage.IsProducer() && si.Artifact != nil && *si.Artifact != "" {
		if err := p.Artifacts.Insert(ctx, &jobproc.ArtifactRow{
			Path:            *si.Artifact,
			RecordID:        rec.ID,
			Stage:           stage,
			DatetimeExpires: now.Add(artifactsTTL),
		}); err != nil {
			return fmt.Errorf("insert artifact row: %w", err)
		}
	}
	return nil
}

func (p *PostStage) insertRecordRow(ctx context.Context, cfg *jobproc.JobConfig, rec *jobproc.Record, stage jobproc.Stage, now time.Time) error {
	jobConfigID := ""
	if cfg != nil {
		jobConfigID = cfg.ID
	}
	return p.Records.Insert(ctx, &jobproc.RecordRow{
		ID:                    rec.ID,
		JobConfigID:           jobConfigID,
		Status:                rec.Status,
		DatetimeChanged:       now,
		ImportType:            rec.ImportType,
		OAIIdentifier:         rec.OAIIdentifier,
		OAIDatestamp:          rec.OAIDatestamp,
		HotfolderOriginalPath: rec.HotfolderOriginalPath,
		Bitstream:             rec.Bitstream,
		SkipObjectValidation:  rec.SkipObjectValidation,
	})
}

// linkRecordToIE implements §4.6: resolve the archive id, look up an
// existing IE by the unique tuple, insert one if absent, and backfill the
// record row's ie_id either way.
func (p *PostStage) linkRecordToIE(ctx context.Context, cfg *jobproc.JobConfig, rec *jobproc.Record, now time.Time) error {
	if rec.OriginSystemID == "" || rec.ExternalID == "" {
		rec.Status = jobproc.StatusIPValError
		return fmt.Errorf("missing origin_system_id/external_id for IE linking")
	}
	archiveID := ""
	if cfg != nil {
		archiveID = cfg.ResolveArchiveID()
	}
	if archiveID == "" {
		rec.Status = jobproc.StatusProcessError
		return fmt.Errorf("no resolvable archive id for IE linking")
	}

	jobConfigID := ""
	if cfg != nil {
		jobConfigID = cfg.ID
	}

	ie, err := p.IEs.FindByTuple(ctx, jobConfigID, rec.OriginSystemID, rec.ExternalID, archiveID)
	if err != nil {
		ie = &jobproc.IERow{
			JobConfigID:        jobConfigID,
			SourceOrganization: rec.SourceOrganization,
			OriginSystemID:     rec.OriginSystemID,
			ExternalID:         rec.ExternalID,
			ArchiveID:          archiveID,
		}
		if insertErr := p.IEs.Insert(ctx, ie); insertErr != nil {
			return insertErr
		}
	} else if rec.SourceOrganization != "" {
		_ = p.IEs.UpdateSourceOrganization(ctx, ie.ID, rec.SourceOrganization)
	}

	rec.IEID = ie.ID
	idCopy := ie.ID
	return p.Records.UpdateFields(ctx, rec.ID, map[string]any{
		"ie_id":            &idCopy,
		"datetime_changed": now,
	})
}

