package adapters

import "github.com/dcm-services/job-processor/internal/domain/jobproc"

// PrepareIPAdapter composes the operations that turn a validated IP into a
// SIP-ready bag: rights and preservation metadata operations from the job
// config's data-processing settings, plus a bitstream operation whenever
// the record is itself a bare bitstream.
type PrepareIPAdapter struct{ Base }

func NewPrepareIPAdapter(cfg Config) *PrepareIPAdapter {
	return &PrepareIPAdapter{Base: NewBase(jobproc.StagePrepareIP, cfg)}
}

func (a *PrepareIPAdapter) BuildRequestBody(cfg *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	artifact := ipArtifact(rec)
	if artifact == "" {
		return nil, &MissingInputError{Reason: "no IP artifact available to prepare"}
	}

	var ops []any
	if rights, ok := cfg.DataProcessing["rightsOperations"].([]any); ok {
		ops = append(ops, rights...)
	}
	if preservation, ok := cfg.DataProcessing["preservationOperations"].([]any); ok {
		ops = append(ops, preservation...)
	}
	if rec.Bitstream {
		ops = append(ops, map[string]any{
			"type":        "set",
			"targetField": "Preservation-Level",
			"value":       "Bitstream",
		})
	}

	body := map[string]any{
		"artifact":          artifact,
		"bagInfoOperations": ops,
	}
	if sigProps, ok := cfg.DataProcessing["sigPropOperations"].([]any); ok {
		body["sigPropOperations"] = sigProps
	}
	if token := resumeToken(rec, a.Stage()); token != "" {
		body["token"] = token
	}
	return body, nil
}

func (a *PrepareIPAdapter) Eval(rec *jobproc.Record, report *Report) {
	setArtifact(rec, jobproc.StagePrepareIP, stringField(report.Data, "artifact"))
}
