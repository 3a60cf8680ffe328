package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salespipe/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/sales_data.csv", cfg.Pipeline.CSVPath)
	assert.Equal(t, "products", cfg.Pipeline.ProductKey)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.Equal(t, 3, cfg.Pipeline.MaxAPIRetries)
	assert.Equal(t, "file", cfg.Catalog.Source)
	assert.Equal(t, "output/clean_sales.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Log.MaxSizeMB)
	assert.False(t, cfg.Trigger.WatchSource)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
pipeline:
  csv_path: /srv/incoming/sales.csv
  batch_size: 50
log:
  level: debug
trigger:
  cron: "0 2 * * *"
  watch_source: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/incoming/sales.csv", cfg.Pipeline.CSVPath)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "0 2 * * *", cfg.Trigger.Cron)
	assert.True(t, cfg.Trigger.WatchSource)

	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Pipeline.MaxAPIRetries)
	assert.Equal(t, "products", cfg.Pipeline.ProductKey)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		yaml string
	}{
		{"zero batch size", "pipeline:\n  batch_size: 0\n"},
		{"zero retries", "pipeline:\n  max_api_retries: 0\n"},
		{"unknown catalog source", "catalog:\n  source: ftp\n"},
		{"database source without dsn", "catalog:\n  source: database\n  driver: postgres\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))
			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SALESPIPE_PIPELINE_BATCH_SIZE", "77")
	t.Setenv("SALESPIPE_LOG_LEVEL", "debug")
	t.Setenv("SALESPIPE_TRIGGER_WATCH_SOURCE", "true")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.Pipeline.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Trigger.WatchSource)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
}
