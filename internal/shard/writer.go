// Package shard generates and writes one shard of the total record count,
// and defines the subprocess protocol between the coordinator and its
// workers.
package shard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rowforge/rowforge/internal/encode"
	"github.com/rowforge/rowforge/internal/fake"
	"github.com/rowforge/rowforge/internal/schema"
	"github.com/rowforge/rowforge/internal/sink"
)

// WriterConfig holds tunables for shard writing.
type WriterConfig struct {
	BatchSize       int   // Rows encoded per write call (default: 25000)
	MaxPendingBytes int64 // Backpressure window for the sink (default: 8MB)
	Delimiter       byte  // Field delimiter (default: ',')
	Logger          zerolog.Logger
}

// Writer streams generated rows to a sink file in batches.
type Writer struct {
	cfg      WriterConfig
	enc      *encode.Encoder
	provider *fake.Provider
}

// NewWriter creates a shard writer with its own value provider.
func NewWriter(cfg WriterConfig, provider *fake.Provider) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25000
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &Writer{
		cfg:      cfg,
		enc:      encode.New(cfg.Delimiter),
		provider: provider,
	}
}

// WriteShard writes recordCount generated rows to path, preceded by the
// header when withHeader is set. The coordinator sets withHeader only for
// shard index zero so the merged output carries exactly one header line.
// Rows are encoded into one buffer per batch and handed to the sink as a
// single write; the sink's backpressure window blocks the loop between
// batches when the disk falls behind. recordCount == 0 still produces a
// valid (possibly header-only) file. Any sink error is fatal and surfaces to
// the caller.
func (w *Writer) WriteShard(ctx context.Context, specs []schema.ColumnSpec, recordCount int, path string, withHeader bool) (rows int, err error) {
	if recordCount < 0 {
		return 0, fmt.Errorf("negative record count %d", recordCount)
	}

	s, err := sink.NewFileSink(path, w.cfg.MaxPendingBytes, w.cfg.Logger)
	if err != nil {
		return 0, err
	}

	if withHeader {
		if err := s.WriteBatch(ctx, []byte(w.enc.Header(specs)+"\n")); err != nil {
			s.Close()
			return 0, err
		}
	}

	values := make([]string, len(specs))
	for rows < recordCount {
		n := w.cfg.BatchSize
		if remaining := recordCount - rows; remaining < n {
			n = remaining
		}

		// Fresh buffer per batch; the sink takes ownership on WriteBatch.
		batch := make([]byte, 0, n*16*len(specs))
		for i := 0; i < n; i++ {
			for c, spec := range specs {
				values[c] = w.provider.Value(spec)
			}
			batch = w.enc.AppendRow(batch, values)
		}

		if err := s.WriteBatch(ctx, batch); err != nil {
			s.Close()
			return rows, fmt.Errorf("shard write failed after %d rows: %w", rows, err)
		}
		rows += n
	}

	if err := s.Close(); err != nil {
		return rows, fmt.Errorf("failed to finalize shard: %w", err)
	}

	w.cfg.Logger.Debug().
		Int("rows", rows).
		Int64("bytes", s.BytesWritten).
		Str("path", path).
		Msg("Shard written")
	return rows, nil
}

// WriteRows drives a RowSink one row at a time. This is the path for sinks
// that cannot accept pre-encoded byte batches, such as the spreadsheet
// writer.
func (w *Writer) WriteRows(specs []schema.ColumnSpec, recordCount int, s sink.RowSink) (int, error) {
	if err := s.WriteHeader(schema.HeaderNames(specs)); err != nil {
		return 0, err
	}

	values := make([]string, len(specs))
	for i := 0; i < recordCount; i++ {
		for c, spec := range specs {
			values[c] = w.provider.Value(spec)
		}
		if err := s.WriteRow(values); err != nil {
			return i, fmt.Errorf("row write failed after %d rows: %w", i, err)
		}
	}
	return recordCount, nil
}
