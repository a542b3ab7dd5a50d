package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDurationHelpersConvertSecondsToDuration(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 60*time.Second, cfg.PerCallTimeout())
	assert.Equal(t, 3600*time.Second, cfg.CacheTTL())
	assert.Equal(t, 2*time.Second, cfg.RetryDelay())
}

func TestValidateRejectsNonPositiveTimeouts(t *testing.T) {
	cfg := Default()
	cfg.Timeout.RequestTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Timeout.PerCallTimeout = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsInvalidCacheTTLWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Cache.Enabled = true
	cfg.Cache.TTL = 0
	assert.Error(t, cfg.Validate())

	cfg.Cache.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNegativeRetrySettings(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxRetries = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Retry.RetryDelay = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresAtLeastOneStage1Invoker(t *testing.T) {
	cfg := Default()
	cfg.Stages.Stage1Local = false
	cfg.Stages.Stage1Hosted = false
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresAtLeastOneReviewer(t *testing.T) {
	cfg := Default()
	cfg.Stages.ReviewerA = false
	cfg.Stages.ReviewerB = false
	assert.Error(t, cfg.Validate())
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "stages:\n  chairman: false\ntimeout:\n  request_timeout: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Stages.Chairman)
	assert.Equal(t, 30, cfg.Timeout.RequestTimeout)
	// Unset fields must still carry their Default() values.
	assert.True(t, cfg.Stages.Stage1Local)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "stages:\n  stage1_local: false\n  stage1_hosted: false\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
