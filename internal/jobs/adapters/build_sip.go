package adapters

import "github.com/dcm-services/job-processor/internal/domain/jobproc"

// BuildSIPAdapter wraps a prepared IP into a submission information
// package. Its input falls back through the producer chain: PREPARE_IP's
// output is preferred, then BUILD_IP's, then whichever import stage ran,
// so BUILD_SIP can still proceed for records whose earlier stages were
// rehydrated from a resumed job without a fresh PREPARE_IP call.
type BuildSIPAdapter struct{ Base }

func NewBuildSIPAdapter(cfg Config) *BuildSIPAdapter {
	return &BuildSIPAdapter{Base: NewBase(jobproc.StageBuildSIP, cfg)}
}

func (a *BuildSIPAdapter) BuildRequestBody(_ *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	artifact := sipInput(rec)
	if artifact == "" {
		return nil, &MissingInputError{Reason: "no prepared artifact available to build a SIP from"}
	}
	body := map[string]any{"artifact": artifact}
	if token := resumeToken(rec, a.Stage()); token != "" {
		body["token"] = token
	}
	return body, nil
}

func (a *BuildSIPAdapter) Eval(rec *jobproc.Record, report *Report) {
	setArtifact(rec, jobproc.StageBuildSIP, stringField(report.Data, "artifact"))
}

func sipInput(rec *jobproc.Record) string {
	for _, stage := range []jobproc.Stage{
		jobproc.StagePrepareIP,
		jobproc.StageBuildIP,
		jobproc.StageImportIPs,
		jobproc.StageImportIEs,
	} {
		if a := artifactOf(rec, stage); a != "" {
			return a
		}
	}
	return ""
}
