package storage

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrEmptyMapping is returned by [Map] when asked to map zero bytes; mmap(2)
// rejects a zero-length mapping, so callers must special-case an empty file
// themselves rather than relying on Map to paper over it.
var ErrEmptyMapping = errors.New("cannot map zero bytes")

// Mapping is a read-only memory-mapped view of a file's contents.
//
// A Mapping is a snapshot: growing the underlying file after mapping does
// not extend Bytes(). Callers that append to the file (a [BrecciaMut]
// committing a batch) must remap to observe the new tail.
type Mapping struct {
	data []byte
}

// Map memory-maps the first size bytes of fd for reading.
func Map(fd uintptr, size int) (*Mapping, error) {
	if size == 0 {
		return nil, ErrEmptyMapping
	}

	data, err := unix.Mmap(int(fd), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &Mapping{data: data}, nil
}

// Bytes returns the mapped region. The slice is invalidated by [Mapping.Close].
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Close unmaps the region. Idempotent.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}

	data := m.data
	m.data = nil

	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}

	return nil
}
