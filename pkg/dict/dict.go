// Package dict implements the term dictionary: a monotonically growing
// mapping from a hashed 64-bit term id back to the term's exact lexical
// form, persisted as a header_size prefix, an id-sorted entry array, and
// a data segment of concatenated terms (see Save).
//
// Build is the in-memory, mutable form used while ingesting; Mapped is the
// read-only, memory-mapped form used by decompression and query emission.
package dict

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/Clueliss/sparql-delete-data-generator/pkg/mmaputil"
)

// ErrBadLayout is returned when a dictionary file's header_size prefix is
// not a positive multiple of headerEntrySize or exceeds the file size.
var ErrBadLayout = errors.New("dict: bad dictionary layout")

// ErrUnknownID is returned by Decompress when a requested id has no entry.
var ErrUnknownID = errors.New("dict: unknown term id")

// headerEntrySize is sizeof(headerEntry): (id, data_off_begin,
// data_off_end), three u64s.
const headerEntrySize = 24

// headerEntry is one row of the dictionary's header array. Field order
// matches the on-disk layout exactly: it is mapped directly via
// mmaputil.Mapped[headerEntry].
type headerEntry struct {
	ID       uint64
	OffBegin uint64
	OffEnd   uint64
}

// TermID hashes term's exact lexical form with the fixed seeded
// non-cryptographic hash used for the lifetime of every dictionary. Two
// dictionaries built with different hash functions are not compatible;
// this module only ever uses this one.
func TermID(term []byte) uint64 {
	return xxhash.Sum64(term)
}

// Build is the in-memory, mutable dictionary form used while ingesting.
// Insertion is first-wins: interning a term whose id is already present
// never overwrites the stored bytes, which is what makes re-ingesting the
// same input idempotent.
type Build struct {
	entries map[uint64]string
	dirty   bool
}

// NewBuild returns an empty build-form dictionary.
func NewBuild() *Build {
	return &Build{entries: make(map[uint64]string)}
}

// FromMapped seeds a build form by copying every (id, bytes) pair out of a
// mapped dictionary. After this call the build form and m share no memory;
// m may be closed independently.
func FromMapped(m *Mapped) *Build {
	b := &Build{entries: make(map[uint64]string, m.Len())}
	for i := 0; i < m.Len(); i++ {
		e := m.header.At(i)
		b.entries[e.ID] = string(m.data.Slice()[e.OffBegin:e.OffEnd])
	}
	return b
}

// Intern hashes term, inserting it if its id is not already present, and
// returns the id. Re-interning an already-present term is a no-op read.
func (b *Build) Intern(term string) uint64 {
	id := TermID([]byte(term))
	if _, ok := b.entries[id]; !ok {
		b.entries[id] = term
		b.dirty = true
	}
	return id
}

// Len returns the number of distinct terms currently held.
func (b *Build) Len() int { return len(b.entries) }

// Dirty reports whether any term has been interned since construction (or
// since the last Save, which clears it).
func (b *Build) Dirty() bool { return b.dirty }

// Save serializes the dictionary per the header/data-segment layout:
// header_size prefix, then entries sorted ascending by id, then the
// concatenated data segment in the same order.
func (b *Build) Save(path string) error {
	ids := make([]uint64, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dict: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	headerSize := uint64(len(ids)) * headerEntrySize
	if err := binary.Write(w, binary.NativeEndian, headerSize); err != nil {
		return fmt.Errorf("dict: write header size: %w", err)
	}

	var off uint64
	offsets := make([]uint64, len(ids)+1)
	for i, id := range ids {
		offsets[i] = off
		off += uint64(len(b.entries[id]))
	}
	offsets[len(ids)] = off

	for i, id := range ids {
		e := headerEntry{ID: id, OffBegin: offsets[i], OffEnd: offsets[i+1]}
		if err := binary.Write(w, binary.NativeEndian, e); err != nil {
			return fmt.Errorf("dict: write entry: %w", err)
		}
	}

	for _, id := range ids {
		if _, err := w.WriteString(b.entries[id]); err != nil {
			return fmt.Errorf("dict: write data segment: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("dict: flush %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("dict: fsync %s: %w", path, err)
	}

	b.dirty = false
	return nil
}

// Mapped is the read-only, memory-mapped dictionary form used by
// decompression and query emission: a mapped header-entry array plus a
// mapped raw data segment. Strings returned by Lookup and Decompress are
// copies of the mapped bytes and remain valid after Close.
type Mapped struct {
	file   *os.File
	header *mmaputil.Mapped[headerEntry]
	data   *mmaputil.Mapped[byte]
}

// OpenMapped parses the header_size prefix and maps the entry array and
// data segment at the offsets implied by the §3 layout.
func OpenMapped(path string) (*Mapped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dict: open %s: %w", path, err)
	}

	var headerSize uint64
	if err := binary.Read(f, binary.NativeEndian, &headerSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("dict: read header size %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dict: stat %s: %w", path, err)
	}

	if headerSize%headerEntrySize != 0 || int64(headerSize) > info.Size()-8 {
		f.Close()
		return nil, fmt.Errorf("dict: %s: header_size=%d: %w", path, headerSize, ErrBadLayout)
	}

	header, err := mmaputil.OpenReadOnly[headerEntry](path, 8, int64(headerSize))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("dict: map header %s: %w", path, err)
	}

	dataOff := int64(8) + int64(headerSize)

	data, err := mmaputil.OpenReadOnly[byte](path, dataOff, mmaputil.WholeFile)
	if err != nil {
		header.Close()
		f.Close()
		return nil, fmt.Errorf("dict: map data segment %s: %w", path, err)
	}

	return &Mapped{file: f, header: header, data: data}, nil
}

// Len returns the number of entries in the dictionary.
func (m *Mapped) Len() int { return m.header.Len() }

// Lookup returns the lexical form stored for id via binary search over the
// sorted entry array.
func (m *Mapped) Lookup(id uint64) (string, error) {
	h := m.header.Slice()
	i := sort.Search(len(h), func(i int) bool { return h[i].ID >= id })
	if i >= len(h) || h[i].ID != id {
		return "", fmt.Errorf("dict: id %d: %w", id, ErrUnknownID)
	}
	e := h[i]
	return string(m.data.Slice()[e.OffBegin:e.OffEnd]), nil
}

// Decompress translates a (s_id, p_id, o_id) triple back into its three
// lexical forms. Returns ErrUnknownID if any id is absent.
func (m *Mapped) Decompress(sID, pID, oID uint64) (s, p, o string, err error) {
	if s, err = m.Lookup(sID); err != nil {
		return "", "", "", err
	}
	if p, err = m.Lookup(pID); err != nil {
		return "", "", "", err
	}
	if o, err = m.Lookup(oID); err != nil {
		return "", "", "", err
	}
	return s, p, o, nil
}

// Close releases the mapped header array and data segment, and closes the
// underlying file.
func (m *Mapped) Close() error {
	err := m.header.Close()
	if derr := m.data.Close(); derr != nil && err == nil {
		err = derr
	}
	if cerr := m.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
