package adapters

import "github.com/dcm-services/job-processor/internal/domain/jobproc"

// MetadataValidationAdapter checks the IP's structural/metadata integrity
// (the "integrity-bagit" plugin) before PREPARE_IP composes the SIP-bound
// bag. It is mandatory for every record.
type MetadataValidationAdapter struct{ Base }

func NewMetadataValidationAdapter(cfg Config) *MetadataValidationAdapter {
	return &MetadataValidationAdapter{Base: NewBase(jobproc.StageValidationMetadata, cfg)}
}

func (a *MetadataValidationAdapter) BuildRequestBody(_ *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	artifact := ipArtifact(rec)
	if artifact == "" {
		return nil, &MissingInputError{Reason: "no IP artifact available to validate"}
	}
	body := map[string]any{
		"plugin":   "integrity-bagit",
		"artifact": artifact,
	}
	if token := resumeToken(rec, a.Stage()); token != "" {
		body["token"] = token
	}
	return body, nil
}

// Success for validation stages reads data.valid rather than data.success.
func (a *MetadataValidationAdapter) Success(report *Report) bool {
	return boolField(report.Data, "valid")
}

func (a *MetadataValidationAdapter) Eval(rec *jobproc.Record, report *Report) {
	setArtifact(rec, jobproc.StageValidationMetadata, ipArtifact(rec))
}

// PayloadValidationAdapter checks bitstream/object integrity (the
// "jhove-fido-mimetype-bagit" plugin). It is skipped whenever the record
// is itself a bare bitstream or the record carries SkipObjectValidation
// (see the state machine's validationTargets).
type PayloadValidationAdapter struct{ Base }

func NewPayloadValidationAdapter(cfg Config) *PayloadValidationAdapter {
	return &PayloadValidationAdapter{Base: NewBase(jobproc.StageValidationPayload, cfg)}
}

func (a *PayloadValidationAdapter) BuildRequestBody(_ *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	artifact := ipArtifact(rec)
	if artifact == "" {
		return nil, &MissingInputError{Reason: "no IP artifact available to validate"}
	}
	body := map[string]any{
		"plugin":   "jhove-fido-mimetype-bagit",
		"artifact": artifact,
	}
	if token := resumeToken(rec, a.Stage()); token != "" {
		body["token"] = token
	}
	return body, nil
}

func (a *PayloadValidationAdapter) Success(report *Report) bool {
	return boolField(report.Data, "valid")
}

func (a *PayloadValidationAdapter) Eval(rec *jobproc.Record, report *Report) {
	setArtifact(rec, jobproc.StageValidationPayload, ipArtifact(rec))
}

// ipArtifact resolves the artifact validation runs against: BUILD_IP's
// output for the non-hotfolder path, or IMPORT_IPS's output directly.
func ipArtifact(rec *jobproc.Record) string {
	if a := artifactOf(rec, jobproc.StageBuildIP); a != "" {
		return a
	}
	return artifactOf(rec, jobproc.StageImportIPs)
}
