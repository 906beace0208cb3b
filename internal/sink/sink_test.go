package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFileSinkWritesBatchesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := NewFileSink(path, 1024, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.WriteBatch(ctx, []byte("first\n")))
	require.NoError(t, s.WriteBatch(ctx, []byte("second\n")))
	require.NoError(t, s.WriteBatch(ctx, []byte("third\n")))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\nthird\n", string(data))
	assert.Equal(t, int64(len(data)), s.BytesWritten)
}

func TestFileSinkBackpressureWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	// Tiny window forces the writer to wait for drain on every batch.
	s, err := NewFileSink(path, 16, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	want := ""
	for i := 0; i < 200; i++ {
		line := fmt.Sprintf("row-%03d\n", i)
		want += line
		require.NoError(t, s.WriteBatch(ctx, []byte(line)))
	}
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestFileSinkOversizedBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := NewFileSink(path, 8, zerolog.Nop())
	require.NoError(t, err)

	// Larger than the whole window; must still pass through.
	batch := make([]byte, 64)
	for i := range batch {
		batch[i] = 'x'
	}
	require.NoError(t, s.WriteBatch(context.Background(), batch))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 64)
}

func TestFileSinkEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := NewFileSink(path, 1024, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.WriteBatch(context.Background(), nil))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestNewFileSinkBadPath(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "no", "such", "dir", "f.csv"), 1024, zerolog.Nop())
	require.Error(t, err)
}

func TestXLSXSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	s, err := NewXLSXSink(path)
	require.NoError(t, err)

	require.NoError(t, s.WriteHeader([]string{"id", "name"}))
	require.NoError(t, s.WriteRow([]string{"1", "alice"}))
	require.NoError(t, s.WriteRow([]string{"2", "bob"}))
	require.NoError(t, s.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name"}, rows[0])
	assert.Equal(t, []string{"1", "alice"}, rows[1])
	assert.Equal(t, []string{"2", "bob"}, rows[2])
}
