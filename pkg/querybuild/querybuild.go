// Package querybuild turns triple producers into SPARQL DELETE DATA query
// files: expand specs into jobs, run jobs across a worker pool, and write
// results out in a deterministic order.
package querybuild

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Clueliss/sparql-delete-data-generator/internal/logger"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/dict"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/generator"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/triplefile"
)

// ErrBadSpec is returned when a textual query spec ("<n>x<m>" or
// "<n>x<m>%") fails to parse.
var ErrBadSpec = errors.New("querybuild: malformed query spec")

// QuerySpec requests nQueries queries, each wanting triplesPerQuery
// triples.
type QuerySpec struct {
	NQueries        int
	TriplesPerQuery int
}

// RawSpec is a QuerySpec whose size is either an absolute triple count or
// a percentage of the main dataset's triple count, not yet resolved.
type RawSpec struct {
	NQueries     int
	Absolute     int
	Percentage   float64 // used when IsPercentage is true
	IsPercentage bool
}

// ParseSpec parses "<n>x<m>" (absolute size) or "<n>x<m>%" (percentage of
// the main dataset) into a RawSpec. Returns ErrBadSpec on any malformed
// input.
func ParseSpec(s string) (RawSpec, error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return RawSpec{}, fmt.Errorf("%s: %w", s, ErrBadSpec)
	}

	n, err := strconv.Atoi(parts[0])
	if err != nil || n <= 0 {
		return RawSpec{}, fmt.Errorf("%s: %w", s, ErrBadSpec)
	}

	sizePart := parts[1]
	if pct, ok := strings.CutSuffix(sizePart, "%"); ok {
		f, err := strconv.ParseFloat(pct, 64)
		if err != nil || f <= 0 {
			return RawSpec{}, fmt.Errorf("%s: %w", s, ErrBadSpec)
		}
		return RawSpec{NQueries: n, Percentage: f, IsPercentage: true}, nil
	}

	m, err := strconv.Atoi(sizePart)
	if err != nil || m <= 0 {
		return RawSpec{}, fmt.Errorf("%s: %w", s, ErrBadSpec)
	}
	return RawSpec{NQueries: n, Absolute: m}, nil
}

// ResolveSpec resolves a RawSpec against the main dataset's triple count,
// turning a percentage size into an absolute triples_per_query.
func ResolveSpec(spec RawSpec, totalTriples int) QuerySpec {
	if !spec.IsPercentage {
		return QuerySpec{NQueries: spec.NQueries, TriplesPerQuery: spec.Absolute}
	}
	size := int(spec.Percentage / 100 * float64(totalTriples))
	if size < 1 {
		size = 1
	}
	return QuerySpec{NQueries: spec.NQueries, TriplesPerQuery: size}
}

// OutputOrder controls the on-disk order of the emitted queries.
type OutputOrder int

const (
	// AsSpecified preserves the order jobs were expanded from specs.
	AsSpecified OutputOrder = iota
	// Randomized shuffles the job list uniformly before execution.
	Randomized
	// SortedSizeAsc orders jobs ascending by target size.
	SortedSizeAsc
	// SortedSizeDesc orders jobs descending by target size.
	SortedSizeDesc
)

type job struct {
	targetSize int
	producer   generator.Producer
}

type jobResult struct {
	targetSize int
	triples    []triplefile.TripleID
}

// Generate expands specs into jobs (one producer per job, built via
// producerFactory), orders them per order, runs them across a worker pool
// sized to GOMAXPROCS, and writes the resulting queries to destPath in the
// post-ordering sequence. append controls whether destPath is truncated
// or appended to.
func Generate(ctx context.Context, destPath string, specs []QuerySpec, producerFactory func(sizeHint int) generator.Producer, d *dict.Mapped, order OutputOrder, append bool) error {
	jobs := expand(specs, producerFactory)
	applyOrder(jobs, order)

	results := make([]jobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			triples, err := drain(j)
			if err != nil {
				return fmt.Errorf("querybuild: job %d: %w", i, err)
			}
			if len(triples) != j.targetSize {
				logger.Warn("producer yielded a different number of triples than requested",
					logger.Requested(j.targetSize), logger.Actual(len(triples)))
			}
			results[i] = jobResult{targetSize: j.targetSize, triples: triples}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return writeResults(destPath, results, d, append)
}

func expand(specs []QuerySpec, producerFactory func(sizeHint int) generator.Producer) []job {
	var jobs []job
	for _, spec := range specs {
		for i := 0; i < spec.NQueries; i++ {
			jobs = append(jobs, job{
				targetSize: spec.TriplesPerQuery,
				producer:   producerFactory(spec.TriplesPerQuery),
			})
		}
	}
	return jobs
}

func applyOrder(jobs []job, order OutputOrder) {
	switch order {
	case AsSpecified:
	case Randomized:
		rand.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })
	case SortedSizeAsc:
		sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].targetSize < jobs[j].targetSize })
	case SortedSizeDesc:
		sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].targetSize > jobs[j].targetSize })
	}
}

// drain pulls j.producer down to j.targetSize triples, de-duplicating
// within the query via a set.
func drain(j job) ([]triplefile.TripleID, error) {
	seen := make(map[triplefile.TripleID]struct{}, j.targetSize)
	for len(seen) < j.targetSize {
		batch, err := j.producer.Next(j.targetSize - len(seen))
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, t := range batch {
			seen[t] = struct{}{}
		}
	}

	out := make([]triplefile.TripleID, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	return out, nil
}

func writeResults(destPath string, results []jobResult, d *dict.Mapped, append bool) error {
	flags := os.O_CREATE | os.O_WRONLY
	if append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(destPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("querybuild: open %s: %w", destPath, err)
	}
	defer f.Close()

	for _, r := range results {
		if err := writeQuery(f, r.triples, d); err != nil {
			return fmt.Errorf("querybuild: write query to %s: %w", destPath, err)
		}
	}
	return nil
}

// GenerateLinear pairs each changeset, in file order, with exactly one
// query containing that changeset's full triple set — the no-size-hint
// entry point used by the linear changeset generator, which has nothing
// resembling a QuerySpec to expand.
func GenerateLinear(ctx context.Context, destPath string, changesets []*triplefile.File, d *dict.Mapped, appendOutput bool) error {
	lin := generator.NewLinearChangeset(changesets)

	results := make([]jobResult, 0, len(changesets))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		triples, ok := lin.Next()
		if !ok {
			break
		}
		results = append(results, jobResult{targetSize: len(triples), triples: triples})
	}

	return writeResults(destPath, results, d, appendOutput)
}

func writeQuery(f *os.File, triples []triplefile.TripleID, d *dict.Mapped) error {
	if _, err := fmt.Fprintln(f, "DELETE DATA {"); err != nil {
		return err
	}
	for _, t := range triples {
		s, p, o, err := d.Decompress(t[0], t[1], t[2])
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(f, "  %s %s %s .\n", s, p, o); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(f, "}"); err != nil {
		return err
	}
	return nil
}
