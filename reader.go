package breccia

import (
	"fmt"

	"github.com/petertodd/breccia/internal/storage"
)

// Breccia is the read side of a store: it mmaps the file, validates the
// caller's magic and header, and exposes point lookup, forward/reverse
// iteration, and bisecting search over the body's marker-word array.
//
// A Breccia is safe to share across goroutines: its mmap-backed body slice
// is immutable between calls to Reload.
type Breccia[H Header] struct {
	fsys        storage.FS
	path        string
	deserialize Deserializer[H]

	header    H
	frameSize int

	file    storage.File
	mapping *storage.Mapping
	body    []byte // file bytes from frameSize onward; nil until mapped
}

// Open opens path, validates its magic against a zero value of H, reads
// and deserializes the header, and memory-maps the body.
//
// Open fails with ErrBadMagic if the file's magic does not match, wraps the
// caller's error (match it with errors.Is/errors.As) if deserialize rejects
// the header, and fails with ErrDirtyTail if the file's last word is not a
// cleanly committed marker — Breccia is read-only and does not attempt
// recovery; see OpenMut for that.
func Open[H Header](fsys storage.FS, path string, deserialize Deserializer[H]) (*Breccia[H], error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("breccia: open %q: %w", path, err)
	}

	b := &Breccia[H]{
		fsys:        fsys,
		path:        path,
		deserialize: deserialize,
		file:        file,
	}

	if err := b.readHeader(); err != nil {
		_ = file.Close()
		return nil, err
	}

	if err := b.mapBody(); err != nil {
		_ = file.Close()
		return nil, err
	}

	return b, nil
}

func (b *Breccia[H]) readHeader() error {
	var zero H

	magic := zero.Magic()
	size := zero.SerializedSize()
	b.frameSize = alignUp8(len(magic) + size)

	frame := make([]byte, len(magic)+size)
	if _, err := b.file.Seek(0, 0); err != nil {
		return fmt.Errorf("breccia: seek %q: %w", b.path, err)
	}

	if _, err := readFull(b.file, frame); err != nil {
		return fmt.Errorf("breccia: reading header frame of %q: %w", b.path, err)
	}

	if len(magic) > 0 && string(frame[:len(magic)]) != string(magic) {
		return fmt.Errorf("%w: %q", ErrBadMagic, b.path)
	}

	header, err := b.deserialize(frame[len(magic):])
	if err != nil {
		return wrapHeaderDeserializeErr(err)
	}

	b.header = header

	return nil
}

func readFull(f storage.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}

		if n == 0 {
			return total, fmt.Errorf("unexpected EOF")
		}
	}

	return total, nil
}

func (b *Breccia[H]) mapBody() error {
	if b.mapping != nil {
		if err := b.mapping.Close(); err != nil {
			return err
		}

		b.mapping = nil
		b.body = nil
	}

	info, err := b.file.Stat()
	if err != nil {
		return fmt.Errorf("breccia: stat %q: %w", b.path, err)
	}

	bodySize := info.Size() - int64(b.frameSize)
	if bodySize <= 0 || bodySize%8 != 0 {
		return fmt.Errorf("breccia: %q: body size %d is not a positive multiple of 8", b.path, bodySize)
	}

	mapping, err := storage.Map(b.file.Fd(), int(info.Size()))
	if err != nil {
		return fmt.Errorf("breccia: mapping %q: %w", b.path, err)
	}

	b.mapping = mapping
	b.body = mapping.Bytes()[b.frameSize:]

	return b.checkTail()
}

func (b *Breccia[H]) checkTail() error {
	n := b.wordCount()
	if n == 0 {
		return fmt.Errorf("breccia: %q: body has no words", b.path)
	}

	tail := b.wordAt(n - 1)
	if tail.State() == Dirty || !isMarkerAt(tail, n-1) {
		return fmt.Errorf("%w: %q", ErrDirtyTail, b.path)
	}

	return nil
}

// Header returns the deserialized header read at Open time.
func (b *Breccia[H]) Header() H {
	return b.header
}

// Reload refreshes the mmap so that blobs committed by a writer since the
// last Open or Reload become visible.
func (b *Breccia[H]) Reload() error {
	return b.mapBody()
}

// Close unmaps the file and closes the underlying descriptor.
func (b *Breccia[H]) Close() error {
	var mapErr error
	if b.mapping != nil {
		mapErr = b.mapping.Close()
	}

	closeErr := b.file.Close()
	if mapErr != nil {
		return mapErr
	}

	return closeErr
}

func (b *Breccia[H]) wordCount() uint64 {
	return uint64(len(b.body) / 8) //nolint:gosec // body length is always a small multiple of 8
}

func (b *Breccia[H]) wordAt(i uint64) Marker {
	return DecodeMarker(b.body[i*8 : i*8+8])
}

// GetBlob returns the blob whose start marker is at body-word index o.
//
// It fails with ErrOutOfRange if o is at or past the body's word count, and
// with ErrUnaligned if the word at o is padding-only or its encoded offset
// does not equal o.
func (b *Breccia[H]) GetBlob(o Offset[H]) ([]byte, error) {
	n := b.wordCount()
	if o.Raw() >= n {
		return nil, fmt.Errorf("%w: %d >= %d", ErrOutOfRange, o.Raw(), n)
	}

	head := b.wordAt(o.Raw())
	if head.IsPadding() || head.Offset() != o.Raw() {
		return nil, fmt.Errorf("%w: %d", ErrUnaligned, o.Raw())
	}

	it := newBlobs[H](b.body[o.Raw()*8:], o)

	_, payload, ok, err := it.Next()
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: no end marker found for %d", ErrUnaligned, o.Raw())
	}

	return payload, nil
}

// Blobs returns a fused forward-and-reverse iterator over every committed
// blob in the file, in offset order.
func (b *Breccia[H]) Blobs() *Blobs[H] {
	return newBlobs[H](b.body, NewOffset[H](0))
}
