package adapters

import (
	"github.com/dcm-services/job-processor/internal/domain/jobproc"
)

// ImportIEsAdapter drives the non-hotfolder import path: the downstream
// import module harvests or receives a batch of metadata-only intellectual
// entities (plugin- or OAI-sourced) and returns one child record per IE.
type ImportIEsAdapter struct{ Base }

func NewImportIEsAdapter(cfg Config) *ImportIEsAdapter {
	return &ImportIEsAdapter{Base: NewBase(jobproc.StageImportIEs, cfg)}
}

func (a *ImportIEsAdapter) BuildRequestBody(cfg *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	return importBody(cfg, rec, a.Stage())
}

func (a *ImportIEsAdapter) Eval(rec *jobproc.Record, report *Report) {
	evalImport(rec, report)
}

// ImportIPsAdapter drives the hotfolder import path: the downstream module
// picks up already-packaged information packages from a watched directory,
// so there is no corresponding BUILD_IP step for records it produces.
type ImportIPsAdapter struct{ Base }

func NewImportIPsAdapter(cfg Config) *ImportIPsAdapter {
	return &ImportIPsAdapter{Base: NewBase(jobproc.StageImportIPs, cfg)}
}

func (a *ImportIPsAdapter) BuildRequestBody(cfg *jobproc.JobConfig, rec *jobproc.Record) (map[string]any, error) {
	return importBody(cfg, rec, a.Stage())
}

func (a *ImportIPsAdapter) Eval(rec *jobproc.Record, report *Report) {
	evalImport(rec, report)
}

// importBody is shared between IMPORT_IES and IMPORT_IPS: the request
// shape is entirely determined by the job config's template type, but every
// variant always carries the test-mode flag so the downstream module can
// skip side effects (e.g. writing to the production ingest queue) during a
// dry run.
func importBody(cfg *jobproc.JobConfig, rec *jobproc.Record, stage jobproc.Stage) (map[string]any, error) {
	if cfg == nil {
		return nil, &MissingInputError{Reason: "job config is required to build an import request"}
	}
	body := map[string]any{
		"test": cfg.TestMode,
	}
	switch cfg.Template.Type {
	case jobproc.TemplatePlugin:
		plugin, _ := cfg.Template.AdditionalInformation["plugin"].(string)
		if plugin == "" {
			return nil, &MissingInputError{Reason: "plugin template missing plugin"}
		}
		args, _ := cfg.Template.AdditionalInformation["args"].(map[string]any)
		body["plugin"] = plugin
		body["args"] = args
	case jobproc.TemplateOAI:
		baseURL, _ := cfg.Template.AdditionalInformation["url"].(string)
		metadataPrefix, _ := cfg.Template.AdditionalInformation["metadata_prefix"].(string)
		args := map[string]any{
			"base_url":        baseURL,
			"metadata_prefix": metadataPrefix,
		}
		if cfg.DataSelection != nil {
			if setSpec, ok := cfg.DataSelection["sets"]; ok {
				args["set_spec"] = setSpec
			}
			if from, ok := cfg.DataSelection["from"]; ok {
				args["from_"] = from
			}
			if until, ok := cfg.DataSelection["until"]; ok {
				args["until"] = until
			}
			if identifiers, ok := cfg.DataSelection["identifiers"]; ok {
				args["identifiers"] = identifiers
			}
		}
		body["plugin"] = "oai_pmh_v2"
		body["args"] = args
		body["jobConfigId"] = cfg.ID
	case jobproc.TemplateHotfolder:
		path, _ := cfg.Template.AdditionalInformation["hotfolderPath"].(string)
		if path == "" {
			return nil, &MissingInputError{Reason: "hotfolder template missing hotfolderPath"}
		}
		body["hotfolderPath"] = path
	default:
		return nil, &MissingInputError{Reason: "unknown template type " + string(cfg.Template.Type)}
	}
	if token := resumeToken(rec, stage); token != "" {
		body["token"] = token
	}
	return body, nil
}

// evalImport copies the identifiers the import module assigned back onto
// the synthetic record the Job Collector ran this against; the Job
// Collector is responsible for fanning the returned child records out into
// real per-record Records.
func evalImport(rec *jobproc.Record, report *Report) {
	if rec == nil || report == nil {
		return
	}
	if v := stringField(report.Data, "sourceOrganization"); v != "" {
		rec.SourceOrganization = v
	}
	if v := stringField(report.Data, "externalId"); v != "" {
		rec.ExternalID = v
	}
	if v := stringField(report.Data, "originSystemId"); v != "" {
		rec.OriginSystemID = v
	}
}
