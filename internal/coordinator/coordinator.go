// Package coordinator drives the parallel generate-and-merge pipeline: it
// partitions the record count into shards, fans the shards out to worker
// processes, waits for every completion signal, and merges the shard files
// into the final output.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rowforge/rowforge/internal/config"
	"github.com/rowforge/rowforge/internal/fake"
	"github.com/rowforge/rowforge/internal/merge"
	"github.com/rowforge/rowforge/internal/schema"
	"github.com/rowforge/rowforge/internal/shard"
	"github.com/rowforge/rowforge/internal/sink"
)

// WorkerFunc executes one shard assignment. The default spawns a worker
// process; tests substitute an in-process implementation.
type WorkerFunc func(ctx context.Context, job *shard.JobConfig) (*shard.JobResult, error)

// Coordinator owns the run state of one generation: shard assignments out,
// completion tally in, merge at the end. Nothing else mutates the tally.
type Coordinator struct {
	cfg    *config.Config
	logger zerolog.Logger
	worker WorkerFunc
}

// New creates a Coordinator that runs shards in worker processes.
func New(cfg *config.Config, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		logger: logger,
		worker: func(ctx context.Context, job *shard.JobConfig) (*shard.JobResult, error) {
			return shard.RunJobInSubprocess(ctx, job, logger)
		},
	}
}

// ShardSizes splits totalRecords across workerCount shards. Every shard
// except the last gets ceil(total/workers); the last gets the remainder so
// the sum is exact. With more workers than records, trailing shards are
// zero, never negative.
func ShardSizes(totalRecords, workerCount int) []int {
	base := (totalRecords + workerCount - 1) / workerCount
	sizes := make([]int, workerCount)
	assigned := 0
	for i := 0; i < workerCount-1; i++ {
		if remaining := totalRecords - assigned; base > remaining {
			sizes[i] = remaining
		} else {
			sizes[i] = base
		}
		assigned += sizes[i]
	}
	sizes[workerCount-1] = totalRecords - assigned
	return sizes
}

// ShardPath returns the deterministic shard file name for an index.
func (c *Coordinator) ShardPath(index int) string {
	return filepath.Join(c.cfg.Output.ShardDir, fmt.Sprintf("output_part_%d.csv", index))
}

// Run executes the full pipeline for rawSpecs and totalRecords, returning
// the process exit code: 0 on success, 1 on any worker or merge failure.
func (c *Coordinator) Run(ctx context.Context, rawSpecs []schema.RawSpec, totalRecords int) int {
	start := time.Now()
	workers := c.cfg.Generator.Workers
	sizes := ShardSizes(totalRecords, workers)
	jobID := uuid.NewString()

	c.logger.Info().
		Str("job_id", jobID).
		Int("records", totalRecords).
		Int("workers", workers).
		Msg("Starting parallel generation")

	completions := make(chan int, workers)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < workers; i++ {
		job := &shard.JobConfig{
			JobID:           jobID,
			ShardIndex:      i,
			RecordCount:     sizes[i],
			Columns:         rawSpecs,
			Path:            c.ShardPath(i),
			WriteHeader:     i == 0,
			BatchSize:       c.cfg.Generator.BatchSize,
			MaxPendingBytes: int64(c.cfg.Generator.MaxPendingMB) * 1024 * 1024,
			Delimiter:       c.cfg.Output.Delimiter,
			Seed:            time.Now().UnixNano() + int64(i),
		}
		g.Go(func() error {
			wctx := gctx
			if timeout := c.cfg.Generator.WorkerTimeout; timeout > 0 {
				var cancel context.CancelFunc
				wctx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}

			result, err := c.worker(wctx, job)
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("shard %d failed: %s", job.ShardIndex, result.Error)
			}
			completions <- job.ShardIndex
			return nil
		})
	}

	err := g.Wait()
	close(completions)

	// Tally completion signals; the merge runs only once every worker has
	// signalled.
	done := 0
	for range completions {
		done++
	}

	if err != nil {
		c.logger.Error().Err(err).Int("completed", done).Msg("Generation failed, skipping merge")
		return 1
	}
	if done != workers {
		c.logger.Error().Int("completed", done).Int("workers", workers).Msg("Missing completion signals, skipping merge")
		return 1
	}

	merger := &merge.Merger{
		Logger: c.logger,
		Gzip:   c.cfg.Output.Compression == "gzip",
	}
	if err := merger.Merge(workers, c.ShardPath, c.cfg.Output.Path); err != nil {
		c.logger.Error().Err(err).Msg("Merge failed, unmerged shard files preserved")
		return 1
	}

	c.logger.Info().
		Int("records", totalRecords).
		Str("path", c.cfg.Output.Path).
		Dur("elapsed", time.Since(start)).
		Msg("Generation completed")
	return 0
}

// RunStream is the single-process CSV variant: one writer streaming straight
// to the final output, no shards and no merge.
func (c *Coordinator) RunStream(ctx context.Context, rawSpecs []schema.RawSpec, totalRecords int) int {
	start := time.Now()

	specs, err := schema.Load(rawSpecs)
	if err != nil {
		c.logger.Error().Err(err).Msg("Schema load failed")
		return 1
	}

	writer := shard.NewWriter(shard.WriterConfig{
		BatchSize:       c.cfg.Generator.BatchSize,
		MaxPendingBytes: int64(c.cfg.Generator.MaxPendingMB) * 1024 * 1024,
		Delimiter:       c.cfg.Output.Delimiter[0],
		Logger:          c.logger,
	}, fake.NewProvider(time.Now().UnixNano()))

	rows, err := writer.WriteShard(ctx, specs, totalRecords, c.cfg.Output.Path, true)
	if err != nil {
		c.logger.Error().Err(err).Msg("Generation failed")
		return 1
	}

	c.logger.Info().
		Int("records", rows).
		Str("path", c.cfg.Output.Path).
		Dur("elapsed", time.Since(start)).
		Msg("Generation completed")
	return 0
}

// RunSheet is the single-process spreadsheet variant, writing through the
// tabular row sink instead of the delimited-text path.
func (c *Coordinator) RunSheet(rawSpecs []schema.RawSpec, totalRecords int) int {
	start := time.Now()

	specs, err := schema.Load(rawSpecs)
	if err != nil {
		c.logger.Error().Err(err).Msg("Schema load failed")
		return 1
	}

	path := c.cfg.Output.Path
	if filepath.Ext(path) == ".csv" {
		path = path[:len(path)-len(".csv")] + ".xlsx"
	}

	s, err := sink.NewXLSXSink(path)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to open workbook")
		return 1
	}

	writer := shard.NewWriter(shard.WriterConfig{
		BatchSize: c.cfg.Generator.BatchSize,
		Logger:    c.logger,
	}, fake.NewProvider(time.Now().UnixNano()))

	rows, err := writer.WriteRows(specs, totalRecords, s)
	if err != nil {
		s.Close()
		os.Remove(path)
		c.logger.Error().Err(err).Msg("Generation failed")
		return 1
	}
	if err := s.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to save workbook")
		return 1
	}

	c.logger.Info().
		Int("records", rows).
		Str("path", path).
		Dur("elapsed", time.Since(start)).
		Msg("Generation completed")
	return 0
}

// SetWorkerFunc overrides how shard assignments are executed. Test hook.
func (c *Coordinator) SetWorkerFunc(fn WorkerFunc) {
	c.worker = fn
}
