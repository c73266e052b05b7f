package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"GEMINI_API_KEY", "STAFFOPS_GEMINI_MODEL", "DATABASE_URL", "STAFFOPS_STORE_BACKEND",
		"STAFFOPS_DATA_DIR", "STAFFOPS_COMPRESS_BACKUPS", "STAFFOPS_ADDR",
		"STAFFOPS_RETENTION_YEARS", "STAFFOPS_LOG_LEVEL", "TEMPORAL_HOSTPORT", "TEMPORAL_NAMESPACE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadMissingFilesGivesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "staffops.yaml"), filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.LLM.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Proposals.MaxAgeDuration())
}

func TestYAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "staffops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  data_dir: /var/lib/staffops
  compress_backups: true
proposals:
  max_age: 2h
records:
  retention_years: 10
`), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/staffops", cfg.Store.DataDir)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.True(t, cfg.Store.CompressBackups)
	assert.Equal(t, 2*time.Hour, cfg.Proposals.MaxAgeDuration())
	assert.Equal(t, 5*time.Minute, cfg.Proposals.Grace())
	assert.Equal(t, 10, cfg.Records.RetentionYears)
}

func TestEnvFileAndOverrides(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GEMINI_API_KEY=from-dotenv\nDATABASE_URL=postgres://localhost/staffops\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("GEMINI_API_KEY")
		os.Unsetenv("DATABASE_URL")
	})
	t.Setenv("STAFFOPS_RETENTION_YEARS", "9")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.APIKey)
	assert.True(t, cfg.LLM.Enabled())
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/staffops", cfg.Store.DatabaseURL)
	assert.Equal(t, 9, cfg.Records.RetentionYears)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Proposals.MaxAge = "soon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Records.RetentionYears = 0
	assert.Error(t, cfg.Validate())
}
