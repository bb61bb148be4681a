package querybuild

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clueliss/sparql-delete-data-generator/pkg/dict"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/generator"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/triplefile"
)

func buildFixture(t *testing.T) (*triplefile.File, *dict.Mapped, string) {
	t.Helper()
	dir := t.TempDir()

	b := dict.NewBuild()
	sID := b.Intern("http://example.org/s")
	pID := b.Intern("http://example.org/p")
	o1 := b.Intern("http://example.org/o1")
	o2 := b.Intern("http://example.org/o2")
	o3 := b.Intern("http://example.org/o3")

	dictPath := filepath.Join(dir, "dict.bin")
	require.NoError(t, b.Save(dictPath))
	m, err := dict.OpenMapped(dictPath)
	require.NoError(t, err)

	triples := []triplefile.TripleID{
		{sID, pID, o1},
		{sID, pID, o2},
		{sID, pID, o3},
	}
	buf := make([]byte, 0, len(triples)*triplefile.ElementSize)
	for _, tr := range triples {
		var b [triplefile.ElementSize]byte
		putTriple(b[:], tr)
		buf = append(buf, b[:]...)
	}
	mainPath := filepath.Join(dir, "main.bin")
	require.NoError(t, os.WriteFile(mainPath, buf, 0o644))

	f, err := triplefile.OpenSorted(mainPath)
	require.NoError(t, err)

	return f, m, dir
}

func putTriple(buf []byte, t triplefile.TripleID) {
	for i := 0; i < 3; i++ {
		v := t[i]
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(v >> (8 * b))
		}
	}
}

func TestGenerate_WritesDeleteDataQueries(t *testing.T) {
	f, d, dir := buildFixture(t)
	defer f.Close()
	defer d.Close()

	specs := []QuerySpec{{NQueries: 2, TriplesPerQuery: 2}}
	factory := func(sizeHint int) generator.Producer {
		return generator.NewRandomWithReplacement(f)
	}

	destPath := filepath.Join(dir, "out.sparql")
	err := Generate(context.Background(), destPath, specs, factory, d, AsSpecified, false)
	require.NoError(t, err)

	contents, err := os.ReadFile(destPath)
	require.NoError(t, err)

	text := string(contents)
	assert.Equal(t, 2, strings.Count(text, "DELETE DATA {"))
	assert.Contains(t, text, "http://example.org/s")
}

func TestGenerate_AppendVsTruncate(t *testing.T) {
	f, d, dir := buildFixture(t)
	defer f.Close()
	defer d.Close()

	specs := []QuerySpec{{NQueries: 1, TriplesPerQuery: 1}}
	factory := func(sizeHint int) generator.Producer {
		return generator.NewRandomWithReplacement(f)
	}

	destPath := filepath.Join(dir, "out.sparql")
	require.NoError(t, Generate(context.Background(), destPath, specs, factory, d, AsSpecified, false))
	require.NoError(t, Generate(context.Background(), destPath, specs, factory, d, AsSpecified, true))

	contents, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(contents), "DELETE DATA {"))
}

func TestApplyOrder_SortedSizeAsc(t *testing.T) {
	jobs := []job{{targetSize: 5}, {targetSize: 1}, {targetSize: 3}}
	applyOrder(jobs, SortedSizeAsc)
	assert.Equal(t, []int{1, 3, 5}, []int{jobs[0].targetSize, jobs[1].targetSize, jobs[2].targetSize})
}

func TestApplyOrder_SortedSizeDesc(t *testing.T) {
	jobs := []job{{targetSize: 5}, {targetSize: 1}, {targetSize: 3}}
	applyOrder(jobs, SortedSizeDesc)
	assert.Equal(t, []int{5, 3, 1}, []int{jobs[0].targetSize, jobs[1].targetSize, jobs[2].targetSize})
}

func TestParseSpec_Absolute(t *testing.T) {
	spec, err := ParseSpec("10x5")
	require.NoError(t, err)
	assert.Equal(t, RawSpec{NQueries: 10, Absolute: 5}, spec)
}

func TestParseSpec_Percentage(t *testing.T) {
	spec, err := ParseSpec("3x50%")
	require.NoError(t, err)
	assert.Equal(t, 3, spec.NQueries)
	assert.True(t, spec.IsPercentage)
	assert.InDelta(t, 50.0, spec.Percentage, 0.001)
}

func TestParseSpec_Malformed(t *testing.T) {
	for _, s := range []string{"", "10", "10xabc", "x5", "10x-5", "10x0%"} {
		_, err := ParseSpec(s)
		require.Error(t, err, "expected error for %q", s)
		assert.ErrorIs(t, err, ErrBadSpec)
	}
}

func TestResolveSpec_Absolute(t *testing.T) {
	spec := ResolveSpec(RawSpec{NQueries: 4, Absolute: 7}, 1000)
	assert.Equal(t, QuerySpec{NQueries: 4, TriplesPerQuery: 7}, spec)
}

func TestResolveSpec_Percentage(t *testing.T) {
	spec := ResolveSpec(RawSpec{NQueries: 2, Percentage: 10, IsPercentage: true}, 200)
	assert.Equal(t, QuerySpec{NQueries: 2, TriplesPerQuery: 20}, spec)
}

func TestGenerateLinear_PairsOneChangesetPerQuery(t *testing.T) {
	f, d, dir := buildFixture(t)
	defer f.Close()
	defer d.Close()

	cs1Path := filepath.Join(dir, "cs1.bin")
	var buf1 [triplefile.ElementSize]byte
	putTriple(buf1[:], f.At(0))
	require.NoError(t, os.WriteFile(cs1Path, buf1[:], 0o644))
	cs1, err := triplefile.OpenReadOnly(cs1Path)
	require.NoError(t, err)
	defer cs1.Close()

	destPath := filepath.Join(dir, "linear.sparql")
	err = GenerateLinear(context.Background(), destPath, []*triplefile.File{cs1}, d, false)
	require.NoError(t, err)

	contents, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(contents), "DELETE DATA {"))
}
