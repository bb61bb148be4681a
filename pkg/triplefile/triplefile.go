// Package triplefile implements the compressed triple file format: a flat,
// headerless sequence of (subject, predicate, object) id triples, each a
// fixed 24 bytes, meant to be memory-mapped rather than parsed.
package triplefile

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/Clueliss/sparql-delete-data-generator/pkg/mmaputil"
)

// TripleID is an ordered (subject, predicate, object) id triple, the unit
// of storage of a compressed triple file. Stored as three consecutive
// 64-bit integers in host byte order.
type TripleID [3]uint64

// ElementSize is sizeof(TripleID) on disk: 24 bytes, no padding.
const ElementSize = 24

// ErrUnsortedMainDataset is returned when a file loaded for use as a main
// dataset (distinct sampling, containment checks) is not in non-decreasing
// lexicographic order.
var ErrUnsortedMainDataset = errors.New("triplefile: main dataset is not sorted")

// Less reports whether a sorts lexicographically before b on (s, p, o).
func Less(a, b TripleID) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] < b[2]
}

// File is a compressed triple file, mapped into memory either read-only or
// shared-writable.
type File struct {
	mapped *mmaputil.Mapped[TripleID]
}

// OpenReadOnly maps path read-only. Use this for changesets and any file
// whose ordering the caller does not need to rely on.
func OpenReadOnly(path string) (*File, error) {
	m, err := mmaputil.OpenReadOnly[TripleID](path, 0, mmaputil.WholeFile)
	if err != nil {
		return nil, fmt.Errorf("triplefile: %w", err)
	}
	return &File{mapped: m}, nil
}

// OpenSorted maps path read-only and verifies that its triples are in
// non-decreasing lexicographic order, as required of a "main dataset" used
// for distinct sampling or containment checks (§4.2). Returns
// ErrUnsortedMainDataset if the check fails; the mapping is closed before
// returning in that case.
func OpenSorted(path string) (*File, error) {
	f, err := OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	if err := f.verifySorted(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// OpenShared maps path shared-read-write, for in-place Sort/Dedup.
func OpenShared(path string) (*File, error) {
	m, err := mmaputil.OpenShared[TripleID](path, 0, mmaputil.WholeFile)
	if err != nil {
		return nil, fmt.Errorf("triplefile: %w", err)
	}
	return &File{mapped: m}, nil
}

func (f *File) verifySorted() error {
	s := f.mapped.Slice()
	for i := 1; i < len(s); i++ {
		if Less(s[i], s[i-1]) {
			return ErrUnsortedMainDataset
		}
	}
	return nil
}

// Len returns the number of triples in the file.
func (f *File) Len() int { return f.mapped.Len() }

// At returns the i-th triple.
func (f *File) At(i int) TripleID { return f.mapped.At(i) }

// Slice returns the mapped triples. Valid only until Close.
func (f *File) Slice() []TripleID { return f.mapped.Slice() }

// Close unmaps the file.
func (f *File) Close() error { return f.mapped.Close() }

// Contains reports whether t is present, via binary search. The file MUST
// have been opened via OpenSorted (or otherwise be known sorted); on an
// unsorted file the search may miss a present triple (a false negative,
// not a panic).
func (f *File) Contains(t TripleID) bool {
	s := f.mapped.Slice()
	i := sort.Search(len(s), func(i int) bool { return !Less(s[i], t) })
	return i < len(s) && s[i] == t
}

// Sort sorts the mapped triples in place. The file MUST have been opened
// via OpenShared.
func (f *File) Sort() error {
	s := f.mapped.Slice()
	sort.Slice(s, func(i, j int) bool { return Less(s[i], s[j]) })
	return f.mapped.Sync()
}

// Dedup opens path shared-read-write, sorts it in place, partitions out
// duplicate triples, and truncates the file to the unique prefix. The
// sort-then-truncate sequence is made durable (fsync) before returning.
// Returns the number of unique triples retained.
func Dedup(path string) (int, error) {
	f, err := OpenShared(path)
	if err != nil {
		return 0, err
	}

	s := f.mapped.Slice()
	sort.Slice(s, func(i, j int) bool { return Less(s[i], s[j]) })

	unique := partitionUnique(s)

	if err := f.mapped.Sync(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	if err := os.Truncate(path, int64(unique)*ElementSize); err != nil {
		return 0, fmt.Errorf("triplefile: truncate %s: %w", path, err)
	}

	// fsync the truncation itself so it survives a crash.
	fh, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("triplefile: reopen %s: %w", path, err)
	}
	defer fh.Close()
	if err := fh.Sync(); err != nil {
		return 0, fmt.Errorf("triplefile: fsync %s: %w", path, err)
	}

	return unique, nil
}

// partitionUnique compacts a sorted slice in place so that s[:n] holds one
// copy of each distinct element, and returns n.
func partitionUnique(s []TripleID) int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for i := 1; i < len(s); i++ {
		if s[i] != s[n-1] {
			s[n] = s[i]
			n++
		}
	}
	return n
}
