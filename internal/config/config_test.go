package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 800, cfg.Analysis.MaxDimension)
	assert.Equal(t, 0.7, cfg.Analysis.EncodeQuality)
	assert.Equal(t, "jpeg", cfg.Analysis.EncodeFormat)
	assert.Equal(t, 2000, cfg.Analysis.PacingMillis)
	assert.Equal(t, "袋（パック）", cfg.Report.DefaultUnit)
	assert.Len(t, cfg.Report.ClaimTypes, 8)
	assert.Len(t, cfg.Report.Units, 9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero dimension", func(c *Config) { c.Analysis.MaxDimension = 0 }},
		{"zero quality", func(c *Config) { c.Analysis.EncodeQuality = 0 }},
		{"quality above one", func(c *Config) { c.Analysis.EncodeQuality = 1.5 }},
		{"unknown format", func(c *Config) { c.Analysis.EncodeFormat = "gif" }},
		{"negative pacing", func(c *Config) { c.Analysis.PacingMillis = -1 }},
		{"negative workers", func(c *Config) { c.Analysis.Workers = -2 }},
		{"unknown backend", func(c *Config) { c.Advisor.Enabled = true; c.Advisor.Backend = "openai" }},
		{"no claim types", func(c *Config) { c.Report.ClaimTypes = nil }},
		{"no units", func(c *Config) { c.Report.Units = nil }},
		{"default unit missing", func(c *Config) { c.Report.DefaultUnit = "トン" }},
		{"no upload size", func(c *Config) { c.Server.MaxUploadMB = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAllowsZeroPacing(t *testing.T) {
	cfg := Default()
	cfg.Analysis.PacingMillis = 0
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Analysis.MaxDimension = 640
	cfg.Advisor.Backend = BackendLlamaCpp
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 640, loaded.Analysis.MaxDimension)
	assert.Equal(t, BackendLlamaCpp, loaded.Advisor.Backend)
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"analysis":{"max_dimension":320}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Analysis.MaxDimension)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "report.csv", cfg.Report.OutputPath)
}

func TestLoadFromFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", cfg.Analysis.EncodeFormat)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GRADER_MAX_DIMENSION", "1024")
	t.Setenv("GRADER_ENCODE_QUALITY", "0.9")
	t.Setenv("GRADER_ENCODE_FORMAT", "webp")
	t.Setenv("GRADER_PACING_MS", "0")
	t.Setenv("GRADER_WORKERS", "3")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, 1024, cfg.Analysis.MaxDimension)
	assert.Equal(t, 0.9, cfg.Analysis.EncodeQuality)
	assert.Equal(t, "webp", cfg.Analysis.EncodeFormat)
	assert.Equal(t, 0, cfg.Analysis.PacingMillis)
	assert.Equal(t, 3, cfg.Analysis.Workers)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("GRADER_MAX_DIMENSION", "big")
	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, 800, cfg.Analysis.MaxDimension)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	pc := cfg.ProcessingConfig()
	assert.Equal(t, 800, pc.MaxDimension)
	assert.True(t, pc.CorrectOrientation)

	settings := cfg.ReportSettings()
	settings.Units[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Report.Units[0])

	assert.Equal(t, 300.0, cfg.AdvisorTimeout().Seconds())
	assert.Equal(t, 30.0, cfg.SessionTTL().Minutes())
}
