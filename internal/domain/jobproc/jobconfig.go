package jobproc

// ArchiveConfiguration describes one downstream archive a job may transfer
// and ingest records into.
type ArchiveConfiguration struct {
	ID                  string     `json:"id"`
	Type                ArchiveAPI `json:"type"`
	TransferDestination string     `json:"transfer_destination_id"`
}

// Template is the runtime-resolved description of how a job imports its
// source records: which import path it uses and any adapter-specific
// additional information (mapping plugin name, OAI set spec, hotfolder
// path, …).
type Template struct {
	Type                 TemplateType   `json:"type"`
	AdditionalInformation map[string]any `json:"additional_information,omitempty"`
	TargetArchive        string         `json:"target_archive,omitempty"`
}

// ExecutionContext carries free-form, job-config-scoped values (credentials,
// feature flags) that Stage Adapters may need but that the core orchestrator
// never interprets.
type ExecutionContext map[string]any

// JobConfig is the durable configuration a job runs against, plus the
// runtime-only fields resolved from the templates/job_configs tables at job
// pickup (Template, DataSelection, DataProcessing, Archives,
// DefaultTargetArchiveID, ExecutionContext never round-trip through the
// `jobs` table itself).
type JobConfig struct {
	ID       string `json:"id"`
	TestMode bool   `json:"test_mode"`
	Resume   bool   `json:"resume"`

	Template               Template                        `json:"-"`
	DataSelection           map[string]any                  `json:"-"`
	DataProcessing          map[string]any                  `json:"-"`
	Archives                map[string]ArchiveConfiguration `json:"-"`
	DefaultTargetArchiveID  string                          `json:"-"`
	ExecutionContext        ExecutionContext                `json:"-"`
}

// ResolveArchiveID picks the archive a record's stage should target: the
// template's TargetArchive wins, falling back to the job config's default.
func (c *JobConfig) ResolveArchiveID() string {
	if c.Template.TargetArchive != "" {
		return c.Template.TargetArchive
	}
	return c.DefaultTargetArchiveID
}

// Archive looks up an ArchiveConfiguration by id, resolving the default if
// id is empty.
func (c *JobConfig) Archive(id string) (ArchiveConfiguration, bool) {
	if id == "" {
		id = c.ResolveArchiveID()
	}
	ac, ok := c.Archives[id]
	return ac, ok
}

// JobContext carries the caller-supplied metadata for a single run: who
// triggered it, when, and how long its artifacts should remain resumable.
// TriggerType=test suppresses durable `records` row creation entirely.
type JobContext struct {
	UserTriggered    string      `json:"user_triggered,omitempty"`
	DatetimeTriggered string     `json:"datetime_triggered,omitempty"`
	TriggerType      TriggerType `json:"trigger_type"`
	ArtifactsTTL     int         `json:"artifacts_ttl"`
}

// IsTestRun reports whether this run must skip durable record persistence.
func (jc JobContext) IsTestRun() bool { return jc.TriggerType == TriggerTest }
