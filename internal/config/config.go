package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for rowforge
type Config struct {
	Generator GeneratorConfig
	Output    OutputConfig
	Log       LogConfig
}

type GeneratorConfig struct {
	SchemaPath     string        // Path to the JSON column schema
	Workers        int           // Number of worker processes for the parallel pipeline
	BatchSize      int           // Rows encoded per write call inside a worker
	MaxPendingMB   int           // Unflushed bytes a worker sink may hold before applying backpressure
	DefaultRecords int           // Record count used when the CLI argument is absent or invalid
	WorkerTimeout  time.Duration // Per-worker deadline (0 = wait forever)
}

type OutputConfig struct {
	Path        string // Final output file
	ShardDir    string // Directory for intermediate shard files
	Delimiter   string // Field delimiter, single character
	Compression string // Final output compression: none, gzip
}

type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment and config file
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("ROWFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file (optional)
	v.SetConfigName("rowforge")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/rowforge/")
	v.AddConfigPath("$HOME/.rowforge/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{
		Generator: GeneratorConfig{
			SchemaPath:     v.GetString("generator.schema_path"),
			Workers:        v.GetInt("generator.workers"),
			BatchSize:      v.GetInt("generator.batch_size"),
			MaxPendingMB:   v.GetInt("generator.max_pending_mb"),
			DefaultRecords: v.GetInt("generator.default_records"),
			WorkerTimeout:  time.Duration(v.GetInt("generator.worker_timeout_seconds")) * time.Second,
		},
		Output: OutputConfig{
			Path:        v.GetString("output.path"),
			ShardDir:    v.GetString("output.shard_dir"),
			Delimiter:   v.GetString("output.delimiter"),
			Compression: v.GetString("output.compression"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (cfg *Config) Validate() error {
	if cfg.Generator.Workers < 1 {
		return fmt.Errorf("generator.workers must be >= 1, got %d", cfg.Generator.Workers)
	}
	if cfg.Generator.BatchSize < 1 {
		return fmt.Errorf("generator.batch_size must be >= 1, got %d", cfg.Generator.BatchSize)
	}
	if len(cfg.Output.Delimiter) != 1 {
		return fmt.Errorf("output.delimiter must be a single character, got %q", cfg.Output.Delimiter)
	}
	switch cfg.Output.Compression {
	case "none", "gzip":
	default:
		return fmt.Errorf("output.compression must be none or gzip, got %q", cfg.Output.Compression)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Generator defaults
	v.SetDefault("generator.schema_path", "schema.json")
	v.SetDefault("generator.workers", getDefaultWorkers())
	v.SetDefault("generator.batch_size", 25000)
	v.SetDefault("generator.max_pending_mb", 8)
	v.SetDefault("generator.default_records", 1000)
	v.SetDefault("generator.worker_timeout_seconds", 0) // 0 = no per-worker deadline

	// Output defaults
	v.SetDefault("output.path", "output.csv")
	v.SetDefault("output.shard_dir", ".")
	v.SetDefault("output.delimiter", ",")
	v.SetDefault("output.compression", "none")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func getDefaultWorkers() int {
	// One worker per core; the pipeline is write-bound, more buys nothing.
	return runtime.NumCPU()
}
