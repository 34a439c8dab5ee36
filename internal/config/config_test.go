package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/expense_audit.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, []string{"已付款", "待付款"}, cfg.Engine.PaidExternalStatuses)
	assert.NotEmpty(t, cfg.Engine.PersonalDocumentKeywords)
	assert.NotEmpty(t, cfg.Engine.AcademicDocumentKeywords)
	assert.Equal(t, 200, cfg.Engine.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Worker.Interval)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/audit/audit.db
logger:
  level: debug
  format: console
engine:
  paid_external_statuses: ["已付款"]
  batch_size: 50
worker:
  interval: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/audit/audit.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, []string{"已付款"}, cfg.Engine.PaidExternalStatuses)
	assert.Equal(t, 50, cfg.Engine.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Worker.Interval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EXPENSE_AUDIT_DB_PATH", "/tmp/env.db")
	t.Setenv("EXPENSE_AUDIT_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "database:\n  path: file.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Path: "audit.db"},
			Logger:   LoggerConfig{Format: "json"},
			Engine:   EngineConfig{PaidExternalStatuses: []string{"已付款"}, BatchSize: 10},
			Worker:   WorkerConfig{Interval: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"no paid statuses", func(c *Config) { c.Engine.PaidExternalStatuses = nil }, "paid_external_statuses"},
		{"zero batch", func(c *Config) { c.Engine.BatchSize = 0 }, "batch_size"},
		{"zero interval", func(c *Config) { c.Worker.Interval = 0 }, "worker.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
