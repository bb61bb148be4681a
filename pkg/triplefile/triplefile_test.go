package triplefile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTriples(t *testing.T, triples []TripleID) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "triples.bin")

	buf := make([]byte, len(triples)*ElementSize)
	for i, tr := range triples {
		off := i * ElementSize
		binary.NativeEndian.PutUint64(buf[off:], tr[0])
		binary.NativeEndian.PutUint64(buf[off+8:], tr[1])
		binary.NativeEndian.PutUint64(buf[off+16:], tr[2])
	}

	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestOpenReadOnly_RoundTrip(t *testing.T) {
	in := []TripleID{{1, 2, 3}, {4, 5, 6}}
	path := writeTriples(t, in)

	f, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, 2, f.Len())
	assert.Equal(t, in[0], f.At(0))
	assert.Equal(t, in[1], f.At(1))
}

func TestOpenSorted_RejectsUnsorted(t *testing.T) {
	path := writeTriples(t, []TripleID{{2, 0, 0}, {1, 0, 0}})

	_, err := OpenSorted(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsortedMainDataset)
}

func TestOpenSorted_AcceptsSorted(t *testing.T) {
	path := writeTriples(t, []TripleID{{1, 0, 0}, {1, 0, 1}, {2, 0, 0}})

	f, err := OpenSorted(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, 3, f.Len())
}

func TestFile_Contains(t *testing.T) {
	path := writeTriples(t, []TripleID{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}})

	f, err := OpenSorted(path)
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, f.Contains(TripleID{2, 2, 2}))
	assert.False(t, f.Contains(TripleID{2, 2, 3}))
	assert.False(t, f.Contains(TripleID{0, 0, 0}))
}

func TestFile_Sort(t *testing.T) {
	path := writeTriples(t, []TripleID{{3, 0, 0}, {1, 0, 0}, {2, 0, 0}})

	f, err := OpenShared(path)
	require.NoError(t, err)
	require.NoError(t, f.Sort())
	require.NoError(t, f.Close())

	sorted, err := OpenSorted(path)
	require.NoError(t, err)
	defer sorted.Close()

	assert.Equal(t, []TripleID{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}}, sorted.Slice())
}

func TestDedup_RemovesDuplicatesAndTruncates(t *testing.T) {
	path := writeTriples(t, []TripleID{
		{2, 0, 0},
		{1, 0, 0},
		{2, 0, 0},
		{1, 0, 0},
		{3, 0, 0},
	})

	unique, err := Dedup(path)
	require.NoError(t, err)
	assert.Equal(t, 3, unique)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(unique*ElementSize), info.Size())

	f, err := OpenSorted(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []TripleID{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}}, f.Slice())
}

func TestDedup_NoDuplicates(t *testing.T) {
	path := writeTriples(t, []TripleID{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}})

	unique, err := Dedup(path)
	require.NoError(t, err)
	assert.Equal(t, 3, unique)
}

func TestDedup_Empty(t *testing.T) {
	path := writeTriples(t, nil)

	unique, err := Dedup(path)
	require.NoError(t, err)
	assert.Equal(t, 0, unique)
}

func TestLess(t *testing.T) {
	assert.True(t, Less(TripleID{1, 9, 9}, TripleID{2, 0, 0}))
	assert.True(t, Less(TripleID{1, 1, 9}, TripleID{1, 2, 0}))
	assert.True(t, Less(TripleID{1, 1, 1}, TripleID{1, 1, 2}))
	assert.False(t, Less(TripleID{1, 1, 1}, TripleID{1, 1, 1}))
}
