package adapters

import (
	"fmt"
	"time"

	"github.com/dcm-services/job-processor/internal/domain/jobproc"
)

// HostConfig is the subset of process-wide configuration the registry needs
// to build every stage's Transport.Config: one downstream host per stage,
// plus the shared poll/retry/timeout knobs (spec §6's closed configuration
// set).
type HostConfig struct {
	ImportModuleHost      string
	IPBuilderHost         string
	ObjectValidatorHost   string
	PreparationModuleHost string
	SIPBuilderHost        string
	TransferModuleHost    string
	BackendHost           string

	PollInterval   int // seconds
	ProcessTimeout int // seconds
	RequestTimeout int // seconds
	MaxRetries     int
	RetryInterval  int // seconds
}

// Registry is a process-local Stage -> StageAdapter map. It is built once
// per worker process at startup (never shared across forked workers —
// connection pools are unsafe to inherit across a fork), and every adapter
// is constructed up front by NewRegistry, matching the donor's "dynamic
// dispatch is a pure lookup over a stage-keyed map built once" idiom.
type Registry struct {
	adapters map[jobproc.Stage]StageAdapter
}

// NewRegistry builds every stage adapter immediately from cfg. Adapters
// hold no mutable state beyond their HTTP client, so eager construction
// here costs the same as building them at job pickup. Construction does
// not contact or validate the configured hosts; a misconfigured host first
// shows up as a failed submit when a stage runs.
func NewRegistry(cfg HostConfig) *Registry {
	base := func(host string) Config {
		return Config{
			Host:           host,
			SubmitPath:     "/process",
			ReportPath:     "/report",
			PollInterval:   secondsOr(cfg.PollInterval, 2),
			ProcessTimeout: secondsOr(cfg.ProcessTimeout, 3600),
			RequestTimeout: secondsOr(cfg.RequestTimeout, 30),
			MaxRetries:     intOr(cfg.MaxRetries, 3),
			RetryInterval:  secondsOr(cfg.RetryInterval, 5),
		}
	}

	r := &Registry{adapters: map[jobproc.Stage]StageAdapter{}}
	r.adapters[jobproc.StageImportIEs] = NewImportIEsAdapter(base(cfg.ImportModuleHost))
	r.adapters[jobproc.StageImportIPs] = NewImportIPsAdapter(base(cfg.ImportModuleHost))
	r.adapters[jobproc.StageBuildIP] = NewBuildIPAdapter(base(cfg.IPBuilderHost))
	r.adapters[jobproc.StageValidationMetadata] = NewMetadataValidationAdapter(base(cfg.ObjectValidatorHost))
	r.adapters[jobproc.StageValidationPayload] = NewPayloadValidationAdapter(base(cfg.ObjectValidatorHost))
	r.adapters[jobproc.StagePrepareIP] = NewPrepareIPAdapter(base(cfg.PreparationModuleHost))
	r.adapters[jobproc.StageBuildSIP] = NewBuildSIPAdapter(base(cfg.SIPBuilderHost))
	r.adapters[jobproc.StageTransfer] = NewTransferAdapter(base(cfg.TransferModuleHost))
	r.adapters[jobproc.StageIngest] = NewIngestAdapter(base(cfg.BackendHost))
	return r
}

// Get returns the adapter responsible for a stage, or an error if the
// registry was somehow built without one — a wiring bug, not a runtime
// condition callers should expect to recover from.
func (r *Registry) Get(stage jobproc.Stage) (StageAdapter, error) {
	a, ok := r.adapters[stage]
	if !ok {
		return nil, fmt.Errorf("no stage adapter registered for %q", stage)
	}
	return a, nil
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
