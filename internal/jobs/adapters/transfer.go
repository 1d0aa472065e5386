package adapters

import "github.com/dcm-services/job-processor/internal/domain/jobproc"

// TransferAdapter hands the finished SIP off to the destination archive.
// The archive to target resolves from the template's TargetArchive, falling
// back to the job config's default; the destination id comes from that
// archive's configuration row.
type TransferAdapter struct{ Base }

func NewTransferAdapter(cfg Config) *TransferAdapter {
	return &TransferAdapter{Base: NewBase(jobproc.StageTransfer, cfg)}
}

func (a *TransferAdapter) BuildRequestBody(cfg *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	sip := artifactOf(rec, jobproc.StageBuildSIP)
	if sip == "" {
		return nil, &MissingInputError{Reason: "no SIP artifact available to transfer"}
	}
	archive, ok := cfg.Archive("")
	if !ok {
		return nil, &MissingInputError{Reason: "no resolvable archive configuration for TRANSFER"}
	}
	body := map[string]any{
		"artifact":      sip,
		"destinationId": archive.TransferDestination,
	}
	if token := resumeToken(rec, a.Stage()); token != "" {
		body["token"] = token
	}
	return body, nil
}

func (a *TransferAdapter) Eval(rec *jobproc.Record, report *Report) {
	setArtifact(rec, jobproc.StageTransfer, basename(stringField(report.Data, "artifact")))
}
