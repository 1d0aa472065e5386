package jobproc

import (
	"time"

	"gorm.io/datatypes"
)

// JobRow is the durable `jobs` table row: one per submitted process token.
type JobRow struct {
	Token                    string         `gorm:"primaryKey;size:64" json:"token"`
	Status                   JobStatus      `gorm:"size:32;index" json:"status"`
	JobConfigID              string         `gorm:"size:64;index" json:"job_config_id"`
	UserTriggered            string         `gorm:"size:128" json:"user_triggered"`
	DatetimeTriggered        time.Time      `json:"datetime_triggered"`
	TriggerType              TriggerType    `gorm:"size:32" json:"trigger_type"`
	Success                  *bool          `json:"success,omitempty"`
	DatetimeStarted          *time.Time     `json:"datetime_started,omitempty"`
	DatetimeEnded            *time.Time     `json:"datetime_ended,omitempty"`
	DatetimeArtifactsExpire  *time.Time     `json:"datetime_artifacts_expire,omitempty"`
	CallbackURL              string         `gorm:"size:512" json:"callback_url,omitempty"`
	Report                   datatypes.JSON `json:"report,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

func (JobRow) TableName() string { return "jobs" }

// RecordRow is the durable `records` table row, inserted once the record's
// import stage completes (skipped entirely for test-mode runs).
type RecordRow struct {
	ID                    string     `gorm:"primaryKey;size:64" json:"id"`
	JobConfigID           string     `gorm:"size:64;index" json:"job_config_id"`
	JobToken              string     `gorm:"size:64;index" json:"job_token"`
	Status                RecordStatus `gorm:"size:32;index" json:"status"`
	DatetimeChanged       time.Time  `json:"datetime_changed"`
	ImportType            TemplateType `gorm:"size:32" json:"import_type"`
	OAIIdentifier         string     `gorm:"size:256" json:"oai_identifier,omitempty"`
	OAIDatestamp          string     `gorm:"size:64" json:"oai_datestamp,omitempty"`
	HotfolderOriginalPath string     `gorm:"size:1024" json:"hotfolder_original_path,omitempty"`
	ArchiveIEID           string     `gorm:"size:128" json:"archive_ie_id,omitempty"`
	ArchiveSIPID          string     `gorm:"size:128" json:"archive_sip_id,omitempty"`
	IEID                  *string    `gorm:"size:64;index" json:"ie_id,omitempty"`
	Bitstream             bool       `json:"bitstream"`
	SkipObjectValidation  bool       `json:"skip_object_validation"`
	ReportID              string     `gorm:"size:64" json:"report_id,omitempty"`
}

func (RecordRow) TableName() string { return "records" }

// IERow is the durable `ies` table row: one per distinct intellectual
// entity a job config has ever imported, unique on
// (job_config_id, origin_system_id, external_id, archive_id).
type IERow struct {
	ID                 string `gorm:"primaryKey;size:64" json:"id"`
	JobConfigID        string `gorm:"size:64;uniqueIndex:idx_ie_tuple" json:"job_config_id"`
	SourceOrganization string `gorm:"size:256" json:"source_organization,omitempty"`
	OriginSystemID     string `gorm:"size:256;uniqueIndex:idx_ie_tuple" json:"origin_system_id"`
	ExternalID         string `gorm:"size:256;uniqueIndex:idx_ie_tuple" json:"external_id"`
	ArchiveID          string `gorm:"size:64;uniqueIndex:idx_ie_tuple" json:"archive_id"`
}

func (IERow) TableName() string { return "ies" }

// ArtifactRow is the durable `artifacts` table row: one per producer-stage
// success that yields a location worth keeping around for resume/transfer.
type ArtifactRow struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Path            string    `gorm:"size:1024" json:"path"`
	RecordID        string    `gorm:"size:64;index" json:"record_id"`
	Stage           Stage     `gorm:"size:32" json:"stage"`
	DatetimeExpires time.Time `gorm:"index" json:"datetime_expires"`
}

func (ArtifactRow) TableName() string { return "artifacts" }

// TemplateRow, JobConfigRow, UserConfigRow, DeploymentRow are read-only from
// the core's perspective (populated by an upstream admin surface), but are
// modeled here so a standalone deployment can seed and query a working
// database without depending on an external schema owner.
type TemplateRow struct {
	ID                    string         `gorm:"primaryKey;size:64" json:"id"`
	Type                  TemplateType   `gorm:"size:32" json:"type"`
	AdditionalInformation datatypes.JSON `json:"additional_information,omitempty"`
	TargetArchive         string         `gorm:"size:64" json:"target_archive,omitempty"`
}

func (TemplateRow) TableName() string { return "templates" }

type JobConfigRow struct {
	ID                     string         `gorm:"primaryKey;size:64" json:"id"`
	TemplateID             string         `gorm:"size:64" json:"template_id"`
	DataSelection          datatypes.JSON `json:"data_selection,omitempty"`
	DataProcessing         datatypes.JSON `json:"data_processing,omitempty"`
	Archives               datatypes.JSON `json:"archives,omitempty"`
	DefaultTargetArchiveID string         `gorm:"size:64" json:"default_target_archive_id,omitempty"`
	ExecutionContext       datatypes.JSON `json:"execution_context,omitempty"`
}

func (JobConfigRow) TableName() string { return "job_configs" }

type UserConfigRow struct {
	ID     string         `gorm:"primaryKey;size:64" json:"id"`
	UserID string         `gorm:"size:128;index" json:"user_id"`
	Config datatypes.JSON `json:"config,omitempty"`
}

func (UserConfigRow) TableName() string { return "user_configs" }

// DeploymentRow backs the schema-bootstrap/version-check described in the
// external interfaces section: exactly one row, inserted by
// BootstrapSchema when DB_LOAD_SCHEMA is enabled.
type DeploymentRow struct {
	ID            uint   `gorm:"primaryKey"`
	SchemaLoaded  bool   `json:"schema_loaded"`
	SchemaVersion string `gorm:"size:32" json:"schema_version"`
}

func (DeploymentRow) TableName() string { return "deployment" }
