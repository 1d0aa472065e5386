package adapters

import "github.com/dcm-services/job-processor/internal/domain/jobproc"

// BuildIPAdapter translates an imported IE's metadata into an information
// package via a mapping plugin. It never runs for hotfolder-sourced
// records, which already arrive as IPs.
type BuildIPAdapter struct{ Base }

func NewBuildIPAdapter(cfg Config) *BuildIPAdapter {
	return &BuildIPAdapter{Base: NewBase(jobproc.StageBuildIP, cfg)}
}

func (a *BuildIPAdapter) BuildRequestBody(cfg *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	artifact := artifactOf(rec, jobproc.StageImportIEs)
	if artifact == "" {
		return nil, &MissingInputError{Reason: "no import artifact available to build an IP from"}
	}
	plugin, _ := cfg.Template.AdditionalInformation["mappingPlugin"].(string)
	if plugin == "" {
		return nil, &MissingInputError{Reason: "missing mappingPlugin for BUILD_IP"}
	}
	body := map[string]any{
		"validate":       false,
		"mappingPlugin":  plugin,
		"artifact":       artifact,
		"externalId":     rec.ExternalID,
		"originSystemId": rec.OriginSystemID,
	}
	if token := resumeToken(rec, a.Stage()); token != "" {
		body["token"] = token
	}
	return body, nil
}

func (a *BuildIPAdapter) Eval(rec *jobproc.Record, report *Report) {
	setArtifact(rec, jobproc.StageBuildIP, stringField(report.Data, "artifact"))
}

func artifactOf(rec *jobproc.Record, stage jobproc.Stage) string {
	if rec == nil {
		return ""
	}
	si, ok := rec.Stages[stage]
	if !ok || si.Artifact == nil {
		return ""
	}
	return *si.Artifact
}

func setArtifact(rec *jobproc.Record, stage jobproc.Stage, path string) {
	if rec == nil || path == "" {
		return
	}
	si := rec.StageInfo(stage)
	si.Artifact = &path
}
