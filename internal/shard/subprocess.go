package shard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rowforge/rowforge/internal/fake"
	"github.com/rowforge/rowforge/internal/schema"
)

// JobConfig is the serializable shard assignment passed to a worker process.
// It carries everything the worker needs to write its shard in isolation.
type JobConfig struct {
	JobID           string           `json:"job_id"`
	ShardIndex      int              `json:"shard_index"`
	RecordCount     int              `json:"record_count"`
	Columns         []schema.RawSpec `json:"columns"`
	Path            string           `json:"path"`
	WriteHeader     bool             `json:"write_header"`
	BatchSize       int              `json:"batch_size"`
	MaxPendingBytes int64            `json:"max_pending_bytes"`
	Delimiter       string           `json:"delimiter"`
	Seed            int64            `json:"seed"`
}

// JobResult is returned by the worker via stdout as JSON. A parsed result
// with Success set is the worker's completion signal; a worker that dies
// without producing one is a failed run.
type JobResult struct {
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	ShardIndex  int    `json:"shard_index"`
	RowsWritten int    `json:"rows_written"`
}

// RunJob is called from the worker process to write one shard. Logging goes
// to stderr; stdout is reserved for the result JSON.
func RunJob(ctx context.Context, cfg *JobConfig) (*JobResult, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().
		Str("component", "shard-worker").
		Int("shard", cfg.ShardIndex).
		Logger()

	specs, err := schema.Load(cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	delim := byte(',')
	if cfg.Delimiter != "" {
		delim = cfg.Delimiter[0]
	}

	writer := NewWriter(WriterConfig{
		BatchSize:       cfg.BatchSize,
		MaxPendingBytes: cfg.MaxPendingBytes,
		Delimiter:       delim,
		Logger:          logger,
	}, fake.NewProvider(cfg.Seed))

	logger.Info().Int("records", cfg.RecordCount).Str("path", cfg.Path).Msg("Starting shard worker")

	rows, err := writer.WriteShard(ctx, specs, cfg.RecordCount, cfg.Path, cfg.WriteHeader)

	result := &JobResult{
		Success:     err == nil,
		ShardIndex:  cfg.ShardIndex,
		RowsWritten: rows,
	}
	if err != nil {
		result.Error = err.Error()
		logger.Error().Err(err).Msg("Shard worker failed")
		return result, err
	}

	logger.Info().Int("rows", rows).Msg("Shard worker completed")
	return result, nil
}

// RunJobInSubprocess executes one shard assignment in a worker process. The
// worker is the same binary re-executed with the "shard" subcommand; the job
// config travels via stdin, the result comes back as JSON on stdout, and the
// worker's stderr log lines are forwarded to the parent logger.
func RunJobInSubprocess(ctx context.Context, cfg *JobConfig, logger zerolog.Logger) (*JobResult, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize job config: %w", err)
	}

	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.CommandContext(ctx, execPath, "shard", "--job-stdin")
	cmd.Stdin = bytes.NewReader(configJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug().
		Int("shard", cfg.ShardIndex).
		Int("records", cfg.RecordCount).
		Msg("Starting shard worker process")

	err = cmd.Run()

	// Forward worker logs line by line
	if stderr.Len() > 0 {
		for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
			if line != "" {
				logger.Debug().Str("worker", "shard").Msg(line)
			}
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("shard %d worker cancelled: %w", cfg.ShardIndex, ctx.Err())
		}
		// The worker died without emitting its completion signal.
		return nil, fmt.Errorf("shard %d worker failed: %w (stderr: %s)", cfg.ShardIndex, err, stderr.String())
	}

	var result JobResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse shard %d result: %w (stdout: %s)", cfg.ShardIndex, err, stdout.String())
	}

	return &result, nil
}
