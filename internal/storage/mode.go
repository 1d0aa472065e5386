package storage

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Mode selects which backend ArtifactStore resolves an artifact path
// against. The core never reads artifact bytes itself (spec §3/§4.5 — an
// artifact is an opaque location), but the reference deployment still
// needs a real place to put them, mirroring the donor's GCS/emulator
// switch plus an additional local-filesystem mode for development.
type Mode string

const (
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
	ModeLocal       Mode = "local"
)

func IsSupportedMode(mode Mode) bool {
	switch mode {
	case ModeGCS, ModeGCSEmulator, ModeLocal:
		return true
	default:
		return false
	}
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingBucket       ConfigErrorCode = "missing_bucket"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidEmulatorHost ConfigErrorCode = "invalid_emulator_host"
	ConfigErrorMissingLocalDir     ConfigErrorCode = "missing_local_dir"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Mode  Mode
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid artifact storage config"
	}
	if e.Cause != nil {
		return fmt.Sprintf("invalid artifact storage config (code=%s mode=%q): %v", e.Code, e.Mode, e.Cause)
	}
	return fmt.Sprintf("invalid artifact storage config (code=%s mode=%q)", e.Code, e.Mode)
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Config resolves ARTIFACT_STORAGE_MODE and its mode-specific settings
// from the environment, the same "explicit-or-default, validate once"
// idiom the donor uses for object storage.
type Config struct {
	Mode         Mode
	Bucket       string
	EmulatorHost string
	LocalDir     string
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		Bucket:       strings.TrimSpace(os.Getenv("ARTIFACT_GCS_BUCKET")),
		EmulatorHost: strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")),
		LocalDir:     strings.TrimSpace(os.Getenv("ARTIFACT_LOCAL_DIR")),
	}

	rawMode := strings.TrimSpace(os.Getenv("ARTIFACT_STORAGE_MODE"))
	mode := Mode(strings.ToLower(rawMode))
	switch mode {
	case "":
		if cfg.LocalDir != "" {
			cfg.Mode = ModeLocal
		} else if cfg.EmulatorHost != "" {
			cfg.Mode = ModeGCSEmulator
		} else {
			cfg.Mode = ModeGCS
		}
	case ModeGCS, ModeGCSEmulator, ModeLocal:
		cfg.Mode = mode
	default:
		return cfg, &ConfigError{Code: ConfigErrorInvalidMode, Mode: mode}
	}

	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if !IsSupportedMode(cfg.Mode) {
		return &ConfigError{Code: ConfigErrorInvalidMode, Mode: cfg.Mode}
	}
	switch cfg.Mode {
	case ModeLocal:
		if cfg.LocalDir == "" {
			return &ConfigError{Code: ConfigErrorMissingLocalDir, Mode: cfg.Mode}
		}
	case ModeGCSEmulator:
		if cfg.EmulatorHost == "" {
			return &ConfigError{Code: ConfigErrorMissingEmulatorHost, Mode: cfg.Mode}
		}
		u, err := url.Parse(cfg.EmulatorHost)
		if err != nil || strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
			return &ConfigError{Code: ConfigErrorInvalidEmulatorHost, Mode: cfg.Mode, Cause: err}
		}
		fallthrough
	case ModeGCS:
		if cfg.Bucket == "" {
			return &ConfigError{Code: ConfigErrorMissingBucket, Mode: cfg.Mode}
		}
	}
	return nil
}
