package config

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultWorkers(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), getDefaultWorkers())
}

func TestLoadDefaults(t *testing.T) {
	// Run from a temp dir so no rowforge.toml is picked up
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "schema.json", cfg.Generator.SchemaPath)
	assert.Equal(t, runtime.NumCPU(), cfg.Generator.Workers)
	assert.Equal(t, 25000, cfg.Generator.BatchSize)
	assert.Equal(t, 1000, cfg.Generator.DefaultRecords)
	assert.Zero(t, cfg.Generator.WorkerTimeout)
	assert.Equal(t, "output.csv", cfg.Output.Path)
	assert.Equal(t, ".", cfg.Output.ShardDir)
	assert.Equal(t, ",", cfg.Output.Delimiter)
	assert.Equal(t, "none", cfg.Output.Compression)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(oldWd)

	t.Setenv("ROWFORGE_GENERATOR_WORKERS", "3")
	t.Setenv("ROWFORGE_OUTPUT_COMPRESSION", "gzip")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Generator.Workers)
	assert.Equal(t, "gzip", cfg.Output.Compression)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Generator.Workers = 0 },
			wantErr: "generator.workers",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Generator.BatchSize = 0 },
			wantErr: "generator.batch_size",
		},
		{
			name:    "multi-char delimiter",
			mutate:  func(c *Config) { c.Output.Delimiter = ",;" },
			wantErr: "output.delimiter",
		},
		{
			name:    "unknown compression",
			mutate:  func(c *Config) { c.Output.Compression = "zstd" },
			wantErr: "output.compression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Generator: GeneratorConfig{Workers: 2, BatchSize: 100},
				Output:    OutputConfig{Delimiter: ",", Compression: "none"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
