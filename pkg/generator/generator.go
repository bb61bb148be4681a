// Package generator implements the triple producers that feed the query
// builder: closed-form, lazy sequences of triple ids pulled size_hint
// elements at a time.
package generator

import (
	"errors"
	"math/rand/v2"

	"github.com/Clueliss/sparql-delete-data-generator/pkg/triplefile"
)

// ErrChangesetsExhausted is returned by BestFitChangeset.Next once every
// loaded changeset has been used.
var ErrChangesetsExhausted = errors.New("generator: changesets exhausted")

// ErrInsufficientTriples is returned when a distinct sample is requested
// for more triples than the dataset holds.
var ErrInsufficientTriples = errors.New("generator: dataset too small for requested distinct sample")

// Producer is the common shape of every triple source: given a size hint,
// it yields up to that many triple ids. Callers must tolerate shorter
// sequences; a nil, nil return means the producer is exhausted, except for
// BestFitChangeset, which reports exhaustion as ErrChangesetsExhausted.
type Producer interface {
	Next(sizeHint int) ([]triplefile.TripleID, error)
}

// RandomWithReplacement draws sizeHint indices uniformly from the dataset
// with replacement on every pull. Cheap, restartable, and may repeat
// triples both within and across pulls.
type RandomWithReplacement struct {
	dataset *triplefile.File
}

// NewRandomWithReplacement returns a producer sampling from dataset.
func NewRandomWithReplacement(dataset *triplefile.File) *RandomWithReplacement {
	return &RandomWithReplacement{dataset: dataset}
}

func (p *RandomWithReplacement) Next(sizeHint int) ([]triplefile.TripleID, error) {
	n := p.dataset.Len()
	if n == 0 || sizeHint <= 0 {
		return nil, nil
	}
	out := make([]triplefile.TripleID, sizeHint)
	for i := range out {
		out[i] = p.dataset.At(rand.IntN(n))
	}
	return out, nil
}

// RandomDistinct samples a fixed total of distinct indices once at
// construction, via a partial Fisher-Yates shuffle, and hands out
// consecutive slices of that pre-shuffled order on each pull. No triple
// can appear in more than one pull across the producer's lifetime.
type RandomDistinct struct {
	dataset *triplefile.File
	indices []int
	pos     int
}

// NewRandomDistinct samples totalDemand distinct indices from dataset.
// Returns ErrInsufficientTriples if totalDemand exceeds the dataset size.
func NewRandomDistinct(dataset *triplefile.File, totalDemand int) (*RandomDistinct, error) {
	n := dataset.Len()
	if totalDemand > n {
		return nil, ErrInsufficientTriples
	}
	return &RandomDistinct{dataset: dataset, indices: partialFisherYates(n, totalDemand)}, nil
}

func (p *RandomDistinct) Next(sizeHint int) ([]triplefile.TripleID, error) {
	remaining := len(p.indices) - p.pos
	if remaining <= 0 || sizeHint <= 0 {
		return nil, nil
	}
	take := sizeHint
	if take > remaining {
		take = remaining
	}
	out := make([]triplefile.TripleID, take)
	for i := 0; i < take; i++ {
		out[i] = p.dataset.At(p.indices[p.pos+i])
	}
	p.pos += take
	return out, nil
}

// partialFisherYates returns k distinct uniform-random indices in
// [0, n), using a sparse map in place of an O(n) working array so that
// sampling a small k out of a huge dataset stays cheap.
func partialFisherYates(n, k int) []int {
	swapped := make(map[int]int, k)
	get := func(i int) int {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}

	result := make([]int, k)
	last := n
	for i := 0; i < k; i++ {
		last--
		j := rand.IntN(last + 1)
		result[i] = get(j)
		swapped[j] = get(last)
	}
	return result
}

// BestFitChangeset holds a set of loaded changeset files. Each pull
// selects the unused changeset whose triple count best fits sizeHint and
// yields its triples whole.
type BestFitChangeset struct {
	changesets []*triplefile.File
	used       []bool
}

// NewBestFitChangeset returns a producer over the given changeset files.
func NewBestFitChangeset(changesets []*triplefile.File) *BestFitChangeset {
	return &BestFitChangeset{changesets: changesets, used: make([]bool, len(changesets))}
}

func (p *BestFitChangeset) Next(sizeHint int) ([]triplefile.TripleID, error) {
	best := -1
	bestDiff := 0
	for i, cs := range p.changesets {
		if p.used[i] {
			continue
		}
		diff := abs(cs.Len() - sizeHint)
		if best == -1 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best == -1 {
		return nil, ErrChangesetsExhausted
	}
	p.used[best] = true
	return append([]triplefile.TripleID(nil), p.changesets[best].Slice()...), nil
}

// FixedSizeChangesetStitch picks a random starting changeset, then flows
// triples from changesets[start:] followed by changesets[:start] in
// reverse order, keeping only triples present in the main dataset, and
// truncates the concatenation to sizeHint.
type FixedSizeChangesetStitch struct {
	changesets []*triplefile.File
	dataset    *triplefile.File
	order      []int
	pos        int
}

// NewFixedSizeChangesetStitch returns a producer stitching changesets
// together, filtered against dataset's containment.
func NewFixedSizeChangesetStitch(changesets []*triplefile.File, dataset *triplefile.File) *FixedSizeChangesetStitch {
	n := len(changesets)
	order := make([]int, 0, n)
	if n > 0 {
		start := rand.IntN(n)
		for i := start; i < n; i++ {
			order = append(order, i)
		}
		for i := start - 1; i >= 0; i-- {
			order = append(order, i)
		}
	}
	return &FixedSizeChangesetStitch{changesets: changesets, dataset: dataset, order: order}
}

func (p *FixedSizeChangesetStitch) Next(sizeHint int) ([]triplefile.TripleID, error) {
	if sizeHint <= 0 {
		return nil, nil
	}

	out := make([]triplefile.TripleID, 0, sizeHint)
	for len(out) < sizeHint && p.pos < len(p.order) {
		cs := p.changesets[p.order[p.pos]]
		for _, t := range cs.Slice() {
			if len(out) >= sizeHint {
				break
			}
			if p.dataset.Contains(t) {
				out = append(out, t)
			}
		}
		p.pos++
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// LinearChangeset yields one changeset's full triple set per call, in
// file order, ignoring any size hint. It exposes the iterator-of-iterators
// shape directly rather than Producer, since it has no size_hint
// parameter to conform to.
type LinearChangeset struct {
	changesets []*triplefile.File
	pos        int
}

// NewLinearChangeset returns a linear iterator over changesets in order.
func NewLinearChangeset(changesets []*triplefile.File) *LinearChangeset {
	return &LinearChangeset{changesets: changesets}
}

// Next returns the next changeset's full triple set and true, or (nil,
// false) once every changeset has been yielded.
func (p *LinearChangeset) Next() ([]triplefile.TripleID, bool) {
	if p.pos >= len(p.changesets) {
		return nil, false
	}
	t := p.changesets[p.pos].Slice()
	p.pos++
	return t, true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
