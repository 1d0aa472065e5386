package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
	jobrt "github.com/dcm-services/job-processor/internal/jobs/runtime"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/repos"
)

// JobCollector produces the record set a Job Runner drives to completion:
// resume candidates pulled back out of the database, plus freshly imported
// records harvested from a single batch import call.
type JobCollector struct {
	Records   *repos.RecordRepo
	Jobs      *repos.JobRepo
	Artifacts *repos.ArtifactRepo
	Stages    *StageRunner
	Post      *PostStage
	Log       *logger.Logger
}

func NewJobCollector(records *repos.RecordRepo, jobs *repos.JobRepo, artifacts *repos.ArtifactRepo, stages *StageRunner, post *PostStage, log *logger.Logger) *JobCollector {
	return &JobCollector{Records: records, Jobs: jobs, Artifacts: artifacts, Stages: stages, Post: post, Log: log}
}

// Collect runs the resume phase followed by the fresh-import phase and
// returns the combined record set the Job Runner should drive.
func (c *JobCollector) Collect(jc *jobrt.Context) ([]*jobproc.Record, error) {
	resumed, err := c.resumePhase(jc)
	if err != nil {
		return nil, fmt.Errorf("resume phase: %w", err)
	}
	fresh := c.freshImportPhase(jc)
	return append(resumed, fresh...), nil
}

// resumePhase implements spec §4.7's resume phase. It is skipped entirely
// for test runs or when the job config has resume disabled.
func (c *JobCollector) resumePhase(jc *jobrt.Context) ([]*jobproc.Record, error) {
	cfg := jc.Config
	if jc.JobCtx.IsTestRun() || cfg == nil || !cfg.Resume {
		return nil, nil
	}

	rows, err := c.Records.InProcessForJobConfig(jc.Ctx(), cfg.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ttl := time.Duration(jc.JobCtx.ArtifactsTTL) * time.Second
	newExpiry := now.Add(ttl)

	survivors := make([]*jobproc.Record, 0, len(rows))
	for _, row := range rows {
		rec, resumable := c.rehydrateOne(jc, row, now, newExpiry)
		if !resumable {
			continue
		}
		if err := c.Records.RepointToJob(jc.Ctx(), row.ID, jc.JobToken); err != nil {
			c.Log.Warn("failed to repoint resumed record to current job", "record", row.ID, "error", err)
		}
		survivors = append(survivors, rec)
	}
	return survivors, nil
}

// rehydrateOne resolves a single INPROCESS record row into a live Record
// ready for the Record Runner, or marks it unresumable (PROCESS_ERROR) and
// returns ok=false.
func (c *JobCollector) rehydrateOne(jc *jobrt.Context, row jobproc.RecordRow, now, newExpiry time.Time) (*jobproc.Record, bool) {
	unresumable := func(reason string) (*jobproc.Record, bool) {
		_ = c.Records.UpdateFields(jc.Ctx(), row.ID, map[string]any{
			"status":           jobproc.StatusProcessError,
			"datetime_changed": now,
		})
		c.Log.Warn("record unresumable", "record", row.ID, "reason", reason)
		return nil, false
	}

	job, err := c.Jobs.GetByToken(jc.Ctx(), row.JobToken)
	if err != nil {
		return unresumable("owning job not found: " + err.Error())
	}
	if job.DatetimeArtifactsExpire == nil || job.DatetimeArtifactsExpire.Before(now) {
		return unresumable("owning job's artifacts have already expired")
	}

	_ = c.Jobs.ExtendArtifactsExpiry(jc.Ctx(), row.JobToken, newExpiry)
	_ = c.Artifacts.ExtendExpiryForRecord(jc.Ctx(), row.ID, newExpiry)

	var stored jobproc.Report
	if err := json.Unmarshal(job.Report, &stored); err != nil {
		return unresumable("owning job's stored report is not decodable: " + err.Error())
	}
	prior, ok := stored.Data.Records[row.ID]
	if !ok {
		return unresumable("no prior record entry in owning job's report")
	}

	rec := jobproc.NewRecord(row.ID)
	rec.Status = row.Status
	rec.ImportType = row.ImportType
	rec.OAIIdentifier = row.OAIIdentifier
	rec.OAIDatestamp = row.OAIDatestamp
	rec.HotfolderOriginalPath = row.HotfolderOriginalPath
	rec.ArchiveIEID = row.ArchiveIEID
	rec.ArchiveSIPID = row.ArchiveSIPID
	rec.Bitstream = row.Bitstream
	rec.SkipObjectValidation = row.SkipObjectValidation
	if row.IEID != nil {
		rec.IEID = *row.IEID
	}

	for stage, si := range prior.Stages {
		if si == nil || !si.Completed || si.Success == nil || !*si.Success {
			continue
		}
		rec.Stages[stage] = si
		logID := si.LogID
		if logID == "" {
			logID = jobproc.LogID(si.Token, stage)
		}
		if blob, ok := stored.Children[logID]; ok {
			jc.Report.SetChild(logID, blob)
		}
	}

	if !rec.HasImportIEs() && !rec.HasImportIPs() {
		return unresumable("rehydrated stage map carries no import stage")
	}
	return rec, true
}

// freshImportPhase implements spec §4.7's fresh-import phase: one batch
// call against a throwaway synthetic Record, fanned out into a
// fully-initialized Record per entry in the downstream response.
func (c *JobCollector) freshImportPhase(jc *jobrt.Context) []*jobproc.Record {
	cfg := jc.Config
	stage := jobproc.StageImportIEs
	if cfg != nil && cfg.Template.Type == jobproc.TemplateHotfolder {
		stage = jobproc.StageImportIPs
	}

	synthetic := jobproc.NewRecord("import")
	final := c.Stages.Run(jc, stage, synthetic, true, true)

	si := synthetic.StageInfo(stage)
	if !si.Completed || si.Success == nil || !*si.Success || final == nil {
		jc.Report.AppendLog(fmt.Sprintf("fresh import via '%s' failed; no records produced", stage))
		return nil
	}

	batch, _ := final.Data["records"].([]any)
	ttl := time.Duration(jc.JobCtx.ArtifactsTTL) * time.Second

	recs := make([]*jobproc.Record, 0, len(batch))
	for _, entry := range batch {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		rec := c.recordFromImportEntry(fields, stage, cfg)
		recs = append(recs, rec)

		if !rec.StageSucceeded(stage) {
			jc.Report.AppendLog(fmt.Sprintf("import of record '%s' failed", rec.ID))
		}
		if c.Post != nil && !jc.JobCtx.IsTestRun() {
			if err := c.Post.Apply(jc.Ctx(), cfg, rec, stage, rec.StageInfo(stage), ttl); err != nil {
				jc.Report.AppendLog(fmt.Sprintf("post-stage persistence for imported record '%s' failed: %s", rec.ID, err))
			}
		}
	}
	return recs
}

// recordFromImportEntry builds a fully-initialized Record from one entry of
// an import batch response.
func (c *JobCollector) recordFromImportEntry(fields map[string]any, stage jobproc.Stage, cfg *jobproc.JobConfig) *jobproc.Record {
	id, _ := fields["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	rec := jobproc.NewRecord(id)

	if cfg != nil {
		rec.ImportType = cfg.Template.Type
	}
	if v, _ := fields["importType"].(string); v != "" {
		rec.ImportType = jobproc.TemplateType(v)
	}
	rec.OAIIdentifier, _ = fields["oaiIdentifier"].(string)
	rec.OAIDatestamp, _ = fields["oaiDatestamp"].(string)
	rec.HotfolderOriginalPath, _ = fields["hotfolderOriginalPath"].(string)
	rec.SourceOrganization, _ = fields["sourceOrganization"].(string)
	rec.ExternalID, _ = fields["externalId"].(string)
	rec.OriginSystemID, _ = fields["originSystemId"].(string)
	if b, ok := fields["bitstream"].(bool); ok {
		rec.Bitstream = b
	}
	if b, ok := fields["skipObjectValidation"].(bool); ok {
		rec.SkipObjectValidation = b
	}

	success, _ := fields["success"].(bool)
	si := rec.StageInfo(stage)
	si.Completed = true
	si.Success = &success
	if tok, _ := fields["token"].(string); tok != "" {
		si.Token = tok
	}
	if artifact, _ := fields["artifact"].(string); artifact != "" {
		si.Artifact = &artifact
	}

	if success {
		rec.Status = jobproc.StatusInProcess
	} else {
		rec.Status = jobproc.StatusImportError
		rec.Completed = true
	}
	return rec
}
