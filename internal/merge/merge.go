// Package merge concatenates shard files into the final output in shard
// index order.
package merge

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// Merger appends shard files to the final output in strict ascending index
// order, deleting each shard only after it has been fully appended. On any
// error the merge aborts and the remaining shard files stay on disk so no
// data is silently lost; a partially merged final file is a failure artifact.
type Merger struct {
	Logger zerolog.Logger
	// Gzip compresses the final output while shards stay plain text.
	Gzip bool
}

// Merge stream-copies shards 0..shardCount-1 into finalPath. The final file
// is closed only after the last shard has been appended.
func (m *Merger) Merge(shardCount int, shardPath func(int) string, finalPath string) error {
	start := time.Now()

	final, err := os.Create(finalPath)
	if err != nil {
		return fmt.Errorf("failed to create final output: %w", err)
	}
	defer final.Close()

	var out io.Writer = final
	var gz *gzip.Writer
	if m.Gzip {
		gz = gzip.NewWriter(final)
		out = gz
	}

	var total int64
	for i := 0; i < shardCount; i++ {
		n, err := m.appendShard(out, shardPath(i))
		if err != nil {
			return fmt.Errorf("merge failed at shard %d: %w", i, err)
		}
		total += n

		if err := os.Remove(shardPath(i)); err != nil {
			return fmt.Errorf("failed to delete merged shard %d: %w", i, err)
		}
		m.Logger.Debug().Int("shard", i).Int64("bytes", n).Msg("Shard merged and deleted")
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to finalize compressed output: %w", err)
		}
	}
	if err := final.Close(); err != nil {
		return fmt.Errorf("failed to close final output: %w", err)
	}

	m.Logger.Info().
		Int("shards", shardCount).
		Int64("bytes", total).
		Dur("elapsed", time.Since(start)).
		Str("path", finalPath).
		Msg("Merge completed")
	return nil
}

func (m *Merger) appendShard(out io.Writer, path string) (int64, error) {
	shard, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("unreadable shard file: %w", err)
	}
	defer shard.Close()

	n, err := io.Copy(out, shard)
	if err != nil {
		return n, fmt.Errorf("failed to append shard: %w", err)
	}
	return n, nil
}
