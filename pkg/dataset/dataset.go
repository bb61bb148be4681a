// Package dataset implements whole-file utilities over compressed triple
// files: term-cardinality statistics, in-place sort, containment checks
// against a test file, and textual decompression.
package dataset

import (
	"fmt"

	"github.com/Clueliss/sparql-delete-data-generator/internal/logger"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/dict"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/ntingest"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/triplefile"
)

// Stats holds triple and distinct-term cardinalities for a compressed
// file, computed in a single scan.
type Stats struct {
	Triples    int
	Subjects   int
	Predicates int
	Objects    int
}

// ComputeStats scans f once, counting total triples and the sizes of the
// distinct-subject, distinct-predicate, and distinct-object id sets.
func ComputeStats(f *triplefile.File) Stats {
	subjects := make(map[uint64]struct{})
	predicates := make(map[uint64]struct{})
	objects := make(map[uint64]struct{})

	for i := 0; i < f.Len(); i++ {
		t := f.At(i)
		subjects[t[0]] = struct{}{}
		predicates[t[1]] = struct{}{}
		objects[t[2]] = struct{}{}
	}

	stats := Stats{
		Triples:    f.Len(),
		Subjects:   len(subjects),
		Predicates: len(predicates),
		Objects:    len(objects),
	}

	logger.Info("computed dataset stats",
		logger.Triples(stats.Triples), logger.Entries(stats.Subjects+stats.Predicates+stats.Objects))

	return stats
}

// Sort opens path shared-read-write and sorts it in place. The caller
// decides separately whether to run Dedup afterward.
func Sort(path string) error {
	f, err := triplefile.OpenShared(path)
	if err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	return f.Sort()
}

// Containment reports how many of candidatePath's triples are present in
// mainPath, and the hit percentage.
type Containment struct {
	Hits       int
	Total      int
	Percentage float64
}

// Contained probes every triple in candidatePath against mainPath (opened
// sorted, for binary search) and reports the hit rate.
func Contained(mainPath, candidatePath string) (Containment, error) {
	main, err := triplefile.OpenSorted(mainPath)
	if err != nil {
		return Containment{}, fmt.Errorf("dataset: main dataset %w", err)
	}
	defer main.Close()

	candidate, err := triplefile.OpenReadOnly(candidatePath)
	if err != nil {
		return Containment{}, fmt.Errorf("dataset: candidate %w", err)
	}
	defer candidate.Close()

	hits := 0
	total := candidate.Len()
	for i := 0; i < total; i++ {
		if main.Contains(candidate.At(i)) {
			hits++
		}
	}

	pct := 0.0
	if total > 0 {
		pct = 100 * float64(hits) / float64(total)
	}

	logger.Info("containment check complete",
		logger.Requested(total), logger.Actual(hits))

	return Containment{Hits: hits, Total: total, Percentage: pct}, nil
}

// Decompress translates inPath back to a textual N-Triples file using d.
// Thin wrapper over ntingest.Decompress, kept here so dataset-utility
// callers don't need to import ntingest directly.
func Decompress(inPath string, d *dict.Mapped) (string, error) {
	return ntingest.Decompress(inPath, d)
}
