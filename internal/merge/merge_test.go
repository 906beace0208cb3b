package merge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeShards(t *testing.T, dir string, bodies []string) func(int) string {
	t.Helper()
	for i, body := range bodies {
		path := filepath.Join(dir, fmt.Sprintf("output_part_%d.csv", i))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	return func(i int) string {
		return filepath.Join(dir, fmt.Sprintf("output_part_%d.csv", i))
	}
}

func TestMergePreservesShardOrder(t *testing.T) {
	dir := t.TempDir()
	shardPath := writeShards(t, dir, []string{"id,name\n1,a\n", "2,b\n3,c\n", "4,d\n"})
	finalPath := filepath.Join(dir, "output.csv")

	m := &Merger{Logger: zerolog.Nop()}
	require.NoError(t, m.Merge(3, shardPath, finalPath))

	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,a\n2,b\n3,c\n4,d\n", string(data))

	// Shards are deleted after being fully appended
	for i := 0; i < 3; i++ {
		_, err := os.Stat(shardPath(i))
		assert.True(t, os.IsNotExist(err), "shard %d should be deleted", i)
	}
}

func TestMergeEmptyShards(t *testing.T) {
	dir := t.TempDir()
	shardPath := writeShards(t, dir, []string{"id,name\n", "", ""})
	finalPath := filepath.Join(dir, "output.csv")

	m := &Merger{Logger: zerolog.Nop()}
	require.NoError(t, m.Merge(3, shardPath, finalPath))

	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n", string(data))
}

func TestMergeMissingShardPreservesRest(t *testing.T) {
	dir := t.TempDir()
	shardPath := writeShards(t, dir, []string{"id\n1\n"})
	finalPath := filepath.Join(dir, "output.csv")

	// Shard 0 exists, shard 1 is missing, shard 2 exists
	require.NoError(t, os.WriteFile(shardPath(2), []byte("3\n"), 0644))

	m := &Merger{Logger: zerolog.Nop()}
	err := m.Merge(3, shardPath, finalPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shard 1")

	// Shards not yet merged are still on disk
	_, statErr := os.Stat(shardPath(2))
	assert.NoError(t, statErr)
}

func TestMergeGzip(t *testing.T) {
	dir := t.TempDir()
	shardPath := writeShards(t, dir, []string{"id\n1\n", "2\n"})
	finalPath := filepath.Join(dir, "output.csv.gz")

	m := &Merger{Logger: zerolog.Nop(), Gzip: true}
	require.NoError(t, m.Merge(2, shardPath, finalPath))

	f, err := os.Open(finalPath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n2\n", string(data))
}

func TestMergeUnwritableFinal(t *testing.T) {
	dir := t.TempDir()
	shardPath := writeShards(t, dir, []string{"id\n"})

	m := &Merger{Logger: zerolog.Nop()}
	err := m.Merge(1, shardPath, filepath.Join(dir, "no", "such", "output.csv"))
	require.Error(t, err)

	// Nothing merged, nothing deleted
	_, statErr := os.Stat(shardPath(0))
	assert.NoError(t, statErr)
}
