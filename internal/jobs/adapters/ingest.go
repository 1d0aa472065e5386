package adapters

import "github.com/dcm-services/job-processor/internal/domain/jobproc"

// IngestAdapter is the terminal stage: it asks the target archive to take
// ownership of the transferred SIP and extracts the archive's own SIP/IE
// identifiers from the response. The request shape depends on the archive
// type; only ROSETTA_REST_V0 is implemented today.
type IngestAdapter struct{ Base }

func NewIngestAdapter(cfg Config) *IngestAdapter {
	return &IngestAdapter{Base: NewBase(jobproc.StageIngest, cfg)}
}

func (a *IngestAdapter) BuildRequestBody(cfg *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	path := artifactOf(rec, jobproc.StageTransfer)
	if path == "" {
		return nil, &MissingInputError{Reason: "no transferred artifact available to ingest"}
	}
	archive, ok := cfg.Archive("")
	if !ok {
		return nil, &MissingInputError{Reason: "no resolvable archive configuration for INGEST"}
	}
	var body map[string]any
	switch archive.Type {
	case jobproc.ArchiveRosettaRESTv0:
		body = map[string]any{
			"target": map[string]any{
				"subdirectory": path,
			},
		}
	default:
		return nil, &MissingInputError{Reason: "unsupported archive type " + string(archive.Type)}
	}
	if token := resumeToken(rec, a.Stage()); token != "" {
		body["token"] = token
	}
	return body, nil
}

// Eval extracts the archive's own identifiers for this deposit: the SIP id
// nests under data.details.deposit.sip_id, and the IE id is the first entry
// of data.details.sip.iePids.
func (a *IngestAdapter) Eval(rec *jobproc.Record, report *Report) {
	details := nestedMap(report.Data, "details")
	if v := nestedStringField(details, "deposit", "sip_id"); v != "" {
		rec.ArchiveSIPID = v
	}
	if sip := nestedMap(details, "sip"); sip != nil {
		if pids, ok := sip["iePids"].([]any); ok && len(pids) > 0 {
			if id, ok := pids[0].(string); ok {
				rec.ArchiveIEID = id
			}
		}
	}
}
