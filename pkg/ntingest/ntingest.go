// Package ntingest drives the N-Triples ingestion pipeline: parse an
// N-Triples file, intern its terms into a dictionary, and emit a
// compressed triple file.
package ntingest

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knakk/rdf"

	"github.com/Clueliss/sparql-delete-data-generator/internal/logger"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/dict"
	"github.com/Clueliss/sparql-delete-data-generator/pkg/triplefile"
)

// CompressedExt and UncompressedExt are the extensions the ingestor and
// decompressor swap an input path's extension for.
const (
	CompressedExt   = ".rdfc"
	UncompressedExt = ".nt"
)

// ErrAlreadyExists wraps the exclusive-create failure when the compressed
// output path is already present.
var ErrAlreadyExists = errors.New("ntingest: output file already exists")

// ErrBadTriple marks a line the external parser rejected; it is logged and
// ingestion continues.
var ErrBadTriple = errors.New("ntingest: malformed triple")

// OutputPath returns the compressed output path for an N-Triples input
// path: the input path with its extension replaced.
func OutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + CompressedExt
}

// Result summarizes a completed ingestion.
type Result struct {
	OutputPath string
	Triples    int // triples written before any dedup pass
	Unique     int // triples remaining after dedup; equals Triples if dedup was false
}

// Ingest parses inputPath as N-Triples, interning every accepted term into
// d, and writes a compressed triple file at OutputPath(inputPath). The
// output is opened exclusive-create: a pre-existing output file is
// reported as ErrAlreadyExists and nothing is parsed.
//
// Parsing and writing run as two joined goroutines: a parser goroutine
// owns d and the RDF decoder and sends accepted id-triples over a channel;
// a writer goroutine owns the output file and appends triples in
// arrival order. If dedup is true, the file is sorted, partitioned, and
// truncated to its unique prefix after both goroutines finish.
func Ingest(inputPath string, d *dict.Build, dedup bool) (Result, error) {
	outPath := OutputPath(inputPath)

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return Result{}, fmt.Errorf("ntingest: %s: %w", outPath, ErrAlreadyExists)
		}
		return Result{}, fmt.Errorf("ntingest: create %s: %w", outPath, err)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		out.Close()
		os.Remove(outPath)
		return Result{}, fmt.Errorf("ntingest: open %s: %w", inputPath, err)
	}
	defer in.Close()

	triples := make(chan triplefile.TripleID, 256)

	var wg sync.WaitGroup
	wg.Add(2)

	var parseErr error
	go func() {
		defer wg.Done()
		defer close(triples)
		parseErr = parse(in, d, triples)
	}()

	var writeErr error
	count := 0
	go func() {
		defer wg.Done()
		writeErr = write(out, triples, &count)
	}()

	wg.Wait()

	closeErr := out.Close()

	if parseErr != nil {
		os.Remove(outPath)
		return Result{}, fmt.Errorf("ntingest: parse %s: %w", inputPath, parseErr)
	}
	if writeErr != nil {
		os.Remove(outPath)
		return Result{}, fmt.Errorf("ntingest: write %s: %w", outPath, writeErr)
	}
	if closeErr != nil {
		return Result{}, fmt.Errorf("ntingest: close %s: %w", outPath, closeErr)
	}

	result := Result{OutputPath: outPath, Triples: count, Unique: count}

	if dedup {
		unique, err := triplefile.Dedup(outPath)
		if err != nil {
			return Result{}, fmt.Errorf("ntingest: dedup %s: %w", outPath, err)
		}
		result.Unique = unique
	}

	return result, nil
}

// parse drives the RDF decoder over r, filters to named-subject,
// named-or-literal-object triples, interns their terms into d, and sends
// id triples on out. Malformed lines are logged and skipped; blank
// subjects/objects are skipped silently.
func parse(r io.Reader, d *dict.Build, out chan<- triplefile.TripleID) error {
	dec := rdf.NewTripleDecoder(r, rdf.NTriples)

	line := 0
	for {
		triple, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			logger.Warn("skipping malformed triple", logger.Line(line), logger.Err(fmt.Errorf("%w: %v", ErrBadTriple, err)))
			continue
		}

		if _, ok := triple.Subj.(rdf.Blank); ok {
			continue
		}
		switch triple.Obj.(type) {
		case rdf.URI, rdf.Literal:
		default:
			continue
		}
		if _, ok := triple.Subj.(rdf.URI); !ok {
			continue
		}

		sID := d.Intern(triple.Subj.String())
		pID := d.Intern(triple.Pred.String())
		oID := d.Intern(triple.Obj.String())

		out <- triplefile.TripleID{sID, pID, oID}
	}
}

// write drains in, appending each triple to w in arrival order.
func write(w io.Writer, in <-chan triplefile.TripleID, count *int) error {
	bw := bufio.NewWriter(w)

	var buf [triplefile.ElementSize]byte
	for t := range in {
		binary.NativeEndian.PutUint64(buf[0:], t[0])
		binary.NativeEndian.PutUint64(buf[8:], t[1])
		binary.NativeEndian.PutUint64(buf[16:], t[2])
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
		*count++
	}

	return bw.Flush()
}

// Decompress translates a compressed triple file back to a line-per-triple
// N-Triples file using d. Output path is inPath with its extension
// replaced by UncompressedExt; exclusive-create avoids clobbering an
// existing file.
func Decompress(inPath string, d *dict.Mapped) (string, error) {
	f, err := triplefile.OpenReadOnly(inPath)
	if err != nil {
		return "", fmt.Errorf("ntingest: %w", err)
	}
	defer f.Close()

	ext := filepath.Ext(inPath)
	outPath := strings.TrimSuffix(inPath, ext) + UncompressedExt

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("ntingest: %s: %w", outPath, ErrAlreadyExists)
		}
		return "", fmt.Errorf("ntingest: create %s: %w", outPath, err)
	}
	defer out.Close()

	bw := bufio.NewWriter(out)
	for i := 0; i < f.Len(); i++ {
		t := f.At(i)
		s, p, o, err := d.Decompress(t[0], t[1], t[2])
		if err != nil {
			return "", fmt.Errorf("ntingest: decompress triple %d of %s: %w", i, inPath, err)
		}
		if _, err := fmt.Fprintf(bw, "%s %s %s .\n", s, p, o); err != nil {
			return "", fmt.Errorf("ntingest: write %s: %w", outPath, err)
		}
	}

	return outPath, bw.Flush()
}
