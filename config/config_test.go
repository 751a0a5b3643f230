package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "log:\n level: debug\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0.20, cfg.Allocation.TargetVol)
	assert.Equal(t, 0.25, cfg.Allocation.SprintVolThreshold)
	assert.Equal(t, 15, cfg.Allocation.SprintMaxDays)
	assert.Equal(t, 5, cfg.Execution.RetryMaxAttempts)
	assert.Equal(t, "polygon", cfg.MarketData.Provider)
	assert.Equal(t, "env", cfg.Secrets.Provider)
}

func TestLoad_UnknownFieldIsFatal(t *testing.T) {
	path := writeTempConfig(t, "not_a_real_field: 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RespectsExplicitValues(t *testing.T) {
	path := writeTempConfig(t, "allocation:\n target_vol: 0.15\n sprint_max_days: 10\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.15, cfg.Allocation.TargetVol)
	assert.Equal(t, 10, cfg.Allocation.SprintMaxDays)
}

func TestLoad_EnvOverridesLogLevel(t *testing.T) {
	path := writeTempConfig(t, "log:\n level: info\n")
	t.Setenv("LOG_LEVEL", "warn")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
