// Package mmaputil provides a memory-mapped, typed view over a region of a
// file.
//
// A Mapped[T] reinterprets a byte range of a file as a fixed-element array
// of T without copying: reads and (for shared mappings) writes go straight
// against the OS page cache. This is the zero-copy building block that the
// dictionary (pkg/dict) and compressed triple file (pkg/triplefile)
// packages are built on.
//
// T must be a fixed-layout, comparable-size plain-data type — this package
// makes no attempt to handle pointers, interfaces, or variable-length
// fields inside T.
package mmaputil

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrBadLayout is returned when a requested byte region is not an exact
// multiple of the element size, or otherwise cannot be reinterpreted as a
// whole number of elements.
var ErrBadLayout = errors.New("mmaputil: region size is not a multiple of element size")

// WholeFile, passed as byteLen, means "map from byteOffset to end of file".
const WholeFile = 0

// Mapped is a memory-mapped, read-only or shared read/write view of a file
// region reinterpreted as a []T.
type Mapped[T any] struct {
	file   *os.File
	region []byte // the raw mmap'd bytes, page-aligned by the kernel
	slice  []T    // region reinterpreted as []T
	closed bool
}

// OpenReadOnly maps byteLen bytes of path starting at byteOffset as a
// read-only []T. byteLen == WholeFile maps to the end of the file.
func OpenReadOnly[T any](path string, byteOffset, byteLen int64) (*Mapped[T], error) {
	return open[T](path, byteOffset, byteLen, unix.PROT_READ, os.O_RDONLY)
}

// OpenShared maps byteLen bytes of path starting at byteOffset as a shared
// read/write []T: writes through the returned slice are visible to other
// mappings of the same file and are eventually written back by the kernel.
// Used by the in-place sort/dedup and header-sort operations, which require
// exclusive access to the file for the duration of the mapping.
func OpenShared[T any](path string, byteOffset, byteLen int64) (*Mapped[T], error) {
	return open[T](path, byteOffset, byteLen, unix.PROT_READ|unix.PROT_WRITE, os.O_RDWR)
}

func open[T any](path string, byteOffset, byteLen int64, prot int, flag int) (*Mapped[T], error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("mmaputil: open %s: %w", path, err)
	}

	if byteLen == WholeFile {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mmaputil: stat %s: %w", path, err)
		}
		byteLen = info.Size() - byteOffset
	}

	var zero T
	elemSize := int64(unsafe.Sizeof(zero))

	if elemSize > 0 && byteLen%elemSize != 0 {
		f.Close()
		return nil, fmt.Errorf("mmaputil: %s: %d bytes is not a multiple of element size %d: %w", path, byteLen, elemSize, ErrBadLayout)
	}

	if byteLen == 0 {
		f.Close()
		return &Mapped[T]{file: nil, closed: true}, nil
	}

	// mmap requires a page-aligned file offset: map from the page boundary
	// at or below byteOffset and skip the leading delta bytes.
	pageSize := int64(os.Getpagesize())
	alignedOff := byteOffset - byteOffset%pageSize
	delta := byteOffset - alignedOff

	region, err := unix.Mmap(int(f.Fd()), alignedOff, int(byteLen+delta), prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmaputil: mmap %s: %w", path, err)
	}

	n := 0
	if elemSize > 0 {
		n = int(byteLen / elemSize)
	}

	m := &Mapped[T]{file: f, region: region}
	if n > 0 {
		m.slice = unsafe.Slice((*T)(unsafe.Pointer(&region[delta])), n)
	}
	return m, nil
}

// Len returns the number of elements in the mapping.
func (m *Mapped[T]) Len() int {
	return len(m.slice)
}

// Slice returns the mapped region reinterpreted as []T. The returned slice
// is only valid until Close is called; callers must not retain it past the
// mapping's lifetime.
func (m *Mapped[T]) Slice() []T {
	return m.slice
}

// At returns the i-th element.
func (m *Mapped[T]) At(i int) T {
	return m.slice[i]
}

// Sync flushes dirty pages of a shared mapping to disk synchronously. It is
// a no-op on a read-only mapping.
func (m *Mapped[T]) Sync() error {
	if m.closed || len(m.region) == 0 {
		return nil
	}
	if err := unix.Msync(m.region, unix.MS_SYNC); err != nil {
		return fmt.Errorf("mmaputil: msync: %w", err)
	}
	return nil
}

// Close unmaps the region and closes the underlying file descriptor. Close
// is idempotent.
func (m *Mapped[T]) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var unmapErr error
	if len(m.region) > 0 {
		unmapErr = unix.Munmap(m.region)
	}
	m.slice = nil
	m.region = nil

	var closeErr error
	if m.file != nil {
		closeErr = m.file.Close()
		m.file = nil
	}

	if unmapErr != nil {
		return fmt.Errorf("mmaputil: munmap: %w", unmapErr)
	}
	if closeErr != nil {
		return fmt.Errorf("mmaputil: close: %w", closeErr)
	}
	return nil
}
