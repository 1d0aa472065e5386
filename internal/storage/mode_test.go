package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveConfigFromEnv_DefaultsToLocalWhenDirSet(t *testing.T) {
	t.Setenv("ARTIFACT_STORAGE_MODE", "")
	t.Setenv("ARTIFACT_LOCAL_DIR", "/tmp/artifacts")
	t.Setenv("ARTIFACT_GCS_BUCKET", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	cfg, err := ResolveConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, ModeLocal, cfg.Mode)
	require.Equal(t, "/tmp/artifacts", cfg.LocalDir)
}

func TestResolveConfigFromEnv_DefaultsToEmulatorWhenHostSetAndNoDir(t *testing.T) {
	t.Setenv("ARTIFACT_STORAGE_MODE", "")
	t.Setenv("ARTIFACT_LOCAL_DIR", "")
	t.Setenv("ARTIFACT_GCS_BUCKET", "archive-bucket")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://localhost:4443")

	cfg, err := ResolveConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, ModeGCSEmulator, cfg.Mode)
}

func TestResolveConfigFromEnv_DefaultsToGCSOtherwise(t *testing.T) {
	t.Setenv("ARTIFACT_STORAGE_MODE", "")
	t.Setenv("ARTIFACT_LOCAL_DIR", "")
	t.Setenv("ARTIFACT_GCS_BUCKET", "archive-bucket")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	cfg, err := ResolveConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, ModeGCS, cfg.Mode)
}

func TestResolveConfigFromEnv_InvalidModeIsRejected(t *testing.T) {
	t.Setenv("ARTIFACT_STORAGE_MODE", "s3")
	_, err := ResolveConfigFromEnv()
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, ConfigErrorInvalidMode, cfgErr.Code)
}

func TestValidateConfig_GCSRequiresBucket(t *testing.T) {
	err := ValidateConfig(Config{Mode: ModeGCS})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, ConfigErrorMissingBucket, cfgErr.Code)
}

func TestValidateConfig_EmulatorRequiresHostAndBucket(t *testing.T) {
	err := ValidateConfig(Config{Mode: ModeGCSEmulator})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, ConfigErrorMissingEmulatorHost, cfgErr.Code)

	err = ValidateConfig(Config{Mode: ModeGCSEmulator, EmulatorHost: "not a url"})
	require.Error(t, err)
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, ConfigErrorInvalidEmulatorHost, cfgErr.Code)

	err = ValidateConfig(Config{Mode: ModeGCSEmulator, EmulatorHost: "http://localhost:4443"})
	require.Error(t, err)
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, ConfigErrorMissingBucket, cfgErr.Code)

	require.NoError(t, ValidateConfig(Config{Mode: ModeGCSEmulator, EmulatorHost: "http://localhost:4443", Bucket: "b"}))
}

func TestValidateConfig_LocalRequiresDir(t *testing.T) {
	err := ValidateConfig(Config{Mode: ModeLocal})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, ConfigErrorMissingLocalDir, cfgErr.Code)

	require.NoError(t, ValidateConfig(Config{Mode: ModeLocal, LocalDir: "/tmp/x"}))
}
