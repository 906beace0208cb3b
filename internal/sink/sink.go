// Package sink provides the write destinations for generated rows. The file
// sink applies backpressure: a writer that outruns the disk blocks until the
// flusher has drained enough of the pending window.
package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// BatchSink accepts pre-encoded byte batches. WriteBatch blocks while the
// sink is saturated and resumes once the flusher signals drain.
type BatchSink interface {
	WriteBatch(ctx context.Context, batch []byte) error
	Close() error
}

// RowSink accepts one row of string values at a time. Used by sinks that
// cannot take raw bytes, such as the spreadsheet writer.
type RowSink interface {
	WriteHeader(names []string) error
	WriteRow(values []string) error
	Close() error
}

// FileSink is a BatchSink over a local file. Batches are handed to a
// background flusher through a bounded window of in-flight bytes; acquiring
// window capacity is the saturation wait, releasing it after a flush is the
// drain signal.
type FileSink struct {
	f      *os.File
	window *semaphore.Weighted
	max    int64
	queue  chan []byte
	wg     sync.WaitGroup
	logger zerolog.Logger

	mu  sync.Mutex
	err error

	// BytesWritten is safe to read after Close returns.
	BytesWritten int64
}

// NewFileSink creates path (truncating any existing file) and starts the
// flusher. maxPending bounds the unflushed bytes the sink may hold.
func NewFileSink(path string, maxPending int64, logger zerolog.Logger) (*FileSink, error) {
	if maxPending <= 0 {
		maxPending = 8 * 1024 * 1024
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink file: %w", err)
	}

	s := &FileSink{
		f:      f,
		window: semaphore.NewWeighted(maxPending),
		max:    maxPending,
		queue:  make(chan []byte, 64),
		logger: logger.With().Str("sink", path).Logger(),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s, nil
}

// WriteBatch enqueues one batch. The sink takes ownership of the slice; the
// caller must not reuse it. Blocks while the pending window is full.
func (s *FileSink) WriteBatch(ctx context.Context, batch []byte) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.firstErr(); err != nil {
		return err
	}

	// A batch larger than the whole window could never acquire; clamp so it
	// passes through alone.
	n := int64(len(batch))
	if n > s.max {
		n = s.max
	}
	if err := s.window.Acquire(ctx, n); err != nil {
		return err
	}

	select {
	case s.queue <- batch:
		return nil
	case <-ctx.Done():
		s.window.Release(n)
		return ctx.Err()
	}
}

// Close drains the queue, closes the file, and returns the first write
// error if any occurred.
func (s *FileSink) Close() error {
	close(s.queue)
	s.wg.Wait()

	closeErr := s.f.Close()
	if err := s.firstErr(); err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close sink file: %w", closeErr)
	}
	return nil
}

func (s *FileSink) flushLoop() {
	defer s.wg.Done()
	for batch := range s.queue {
		if s.firstErr() == nil {
			n, err := s.f.Write(batch)
			s.BytesWritten += int64(n)
			if err != nil {
				s.setErr(fmt.Errorf("sink write failed: %w", err))
				s.logger.Error().Err(err).Msg("Batch write failed")
			}
		}
		released := int64(len(batch))
		if released > s.max {
			released = s.max
		}
		s.window.Release(released)
	}
}

func (s *FileSink) firstErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *FileSink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
