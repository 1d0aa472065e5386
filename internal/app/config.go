package app

import (
	"time"

	"github.com/dcm-services/job-processor/internal/jobs/adapters"
	"github.com/dcm-services/job-processor/internal/pkg/logger"
	"github.com/dcm-services/job-processor/internal/storage"
	"github.com/dcm-services/job-processor/internal/utils"
)

// Config is the closed configuration set spec §6 names: one downstream
// host per stage, the shared poll/retry/timeout knobs, record concurrency,
// schema bootstrap switches, and the ambient pieces (Redis, storage, auth)
// the reference deployment adds on top.
type Config struct {
	Hosts adapters.HostConfig

	ProcessRecordConcurrency int
	ProcessInterval          time.Duration
	ProcessLogErrorTracebacks bool

	ArchivesSrc            string
	DefaultTargetArchiveID string

	DBLoadSchema          bool
	DBStrictSchemaVersion bool

	RedisAddr    string
	JobLockTTL   time.Duration
	NotifyPeriod time.Duration

	Storage storage.Config

	JWTSecretKey string
	AuthEnabled  bool
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Hosts: adapters.HostConfig{
			ImportModuleHost:      utils.GetEnv("IMPORT_MODULE_HOST", "http://localhost:8081", log),
			IPBuilderHost:         utils.GetEnv("IP_BUILDER_HOST", "http://localhost:8082", log),
			ObjectValidatorHost:   utils.GetEnv("OBJECT_VALIDATOR_HOST", "http://localhost:8083", log),
			PreparationModuleHost: utils.GetEnv("PREPARATION_MODULE_HOST", "http://localhost:8084", log),
			SIPBuilderHost:        utils.GetEnv("SIP_BUILDER_HOST", "http://localhost:8085", log),
			TransferModuleHost:    utils.GetEnv("TRANSFER_MODULE_HOST", "http://localhost:8086", log),
			BackendHost:           utils.GetEnv("BACKEND_HOST", "http://localhost:8087", log),

			PollInterval:   utils.GetEnvAsInt("REQUEST_POLL_INTERVAL", 2, log),
			ProcessTimeout: utils.GetEnvAsInt("PROCESS_TIMEOUT", 3600, log),
			RequestTimeout: utils.GetEnvAsInt("REQUEST_TIMEOUT", 30, log),
			MaxRetries:     utils.GetEnvAsInt("PROCESS_REQUEST_MAX_RETRIES", 3, log),
			RetryInterval:  utils.GetEnvAsInt("PROCESS_REQUEST_RETRY_INTERVAL", 5, log),
		},

		ProcessRecordConcurrency:  utils.GetEnvAsInt("PROCESS_RECORD_CONCURRENCY", 4, log),
		ProcessInterval:           time.Duration(utils.GetEnvAsInt("PROCESS_INTERVAL", 200, log)) * time.Millisecond,
		ProcessLogErrorTracebacks: utils.GetEnv("PROCESS_LOG_ERROR_TRACEBACKS", "false", log) == "true",

		ArchivesSrc:            utils.GetEnv("ARCHIVES_SRC", "", log),
		DefaultTargetArchiveID: utils.GetEnv("DEFAULT_TARGET_ARCHIVE_ID", "", log),

		DBLoadSchema:          utils.GetEnv("DB_LOAD_SCHEMA", "true", log) == "true",
		DBStrictSchemaVersion: utils.GetEnv("DB_STRICT_SCHEMA_VERSION", "false", log) == "true",

		RedisAddr:    utils.GetEnv("REDIS_ADDR", "localhost:6379", log),
		JobLockTTL:   time.Duration(utils.GetEnvAsInt("JOB_LOCK_TTL_SECONDS", 300, log)) * time.Second,
		NotifyPeriod: time.Duration(utils.GetEnvAsInt("NOTIFY_PERIOD_MS", 1000, log)) * time.Millisecond,

		JWTSecretKey: utils.GetEnv("JWT_SECRET_KEY", "", log),
		AuthEnabled:  utils.GetEnv("AUTH_ENABLED", "false", log) == "true",
	}

	storageCfg, err := storage.ResolveConfigFromEnv()
	if err != nil {
		return cfg, err
	}
	cfg.Storage = storageCfg

	return cfg, nil
}
