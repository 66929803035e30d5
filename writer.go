package breccia

import (
	"errors"
	"fmt"
	"os"

	"github.com/petertodd/breccia/config"
	"github.com/petertodd/breccia/internal/storage"
)

// BrecciaMut is the write side of a store: it holds the exclusive writer
// lock for its lifetime and appends blobs through Batch, the crash-atomic
// commit protocol described in spec §4.7.
//
// Only one BrecciaMut may be open on a given file at a time; a second
// OpenMut call blocks until the first is Closed (or, with a positive
// LockTimeout, fails with ErrWriterLocked once it expires). Create refuses
// any path that already exists.
type BrecciaMut[H Header] struct {
	reader *Breccia[H]
	fsys   storage.FS
	path   string
	lock   *storage.Lock
	opts   config.Options

	batch *Batch[H]
}

// Create creates a new store at path: the header frame (magic + header's
// serialized form, zero-padded to an 8-byte boundary) followed by a single
// Clean empty terminator at body-word offset 0, published with
// [storage.WriteFileAtomic] so a crash partway through never leaves a
// half-written magic+header on disk. It then opens the new file for
// writing, same as OpenMut.
//
// Create fails if path already exists.
func Create[H Header](fsys storage.FS, path string, header H, deserialize Deserializer[H], opts config.Options) (*BrecciaMut[H], error) {
	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("breccia: create %q: %w", path, err)
	}

	if exists {
		return nil, fmt.Errorf("breccia: create %q: %w", path, os.ErrExist)
	}

	magic := header.Magic()
	size := header.SerializedSize()
	frameSize := alignUp8(len(magic) + size)

	frame := make([]byte, frameSize)
	copy(frame, magic)
	header.Serialize(frame[len(magic) : len(magic)+size])

	terminator := NewMarker(0, 0, Clean).Bytes()

	contents := make([]byte, 0, frameSize+len(terminator))
	contents = append(contents, frame...)
	contents = append(contents, terminator[:]...)

	if err := storage.WriteFileAtomic(fsys, path, contents, 0o644); err != nil {
		return nil, fmt.Errorf("breccia: create %q: %w", path, err)
	}

	return openForWrite[H](fsys, path, deserialize, opts)
}

// OpenMut opens an existing store for writing.
//
// If the file's tail was left Dirty by a crashed or dropped batch, OpenMut
// recovers by truncating the file back to its last Clean terminator (the
// body-word-array equivalent of replaying a WAL only up to its last
// committed record) before opening the reader side.
func OpenMut[H Header](fsys storage.FS, path string, deserialize Deserializer[H], opts config.Options) (*BrecciaMut[H], error) {
	return openForWrite[H](fsys, path, deserialize, opts)
}

func openForWrite[H Header](fsys storage.FS, path string, deserialize Deserializer[H], opts config.Options) (*BrecciaMut[H], error) {
	locker := storage.NewLocker(fsys)

	var (
		lock *storage.Lock
		err  error
	)

	if opts.LockTimeout > 0 {
		lock, err = locker.LockWithTimeout(path, opts.LockTimeout)
	} else {
		lock, err = locker.Lock(path)
	}

	if err != nil {
		if errors.Is(err, storage.ErrWouldBlock) {
			return nil, ErrWriterLocked
		}

		return nil, err
	}

	reader, err := Open[H](fsys, path, deserialize)
	if errors.Is(err, ErrDirtyTail) {
		var zero H

		if terr := truncateToLastClean(fsys, path, FrameSize(zero)); terr != nil {
			_ = lock.Close()
			return nil, terr
		}

		reader, err = Open[H](fsys, path, deserialize)
	}

	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	return &BrecciaMut[H]{reader: reader, fsys: fsys, path: path, lock: lock, opts: opts}, nil
}

// truncateToLastClean recovers a store whose tail was left Dirty by an
// uncommitted batch: it scans backward from the end of the file for the
// last word satisfying the marker fixed-point invariant (spec §3) with a
// Clean state, and truncates everything after it.
func truncateToLastClean(fsys storage.FS, path string, frameSize int) error {
	f, err := fsys.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("breccia: recovering %q: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // best effort; truncate error below is what matters

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("breccia: recovering %q: %w", path, err)
	}

	mapping, err := storage.Map(f.Fd(), int(info.Size()))
	if err != nil {
		return fmt.Errorf("breccia: recovering %q: %w", path, err)
	}
	defer mapping.Close() //nolint:errcheck // read-only use, nothing to lose on error

	body := mapping.Bytes()[frameSize:]
	n := uint64(len(body) / 8) //nolint:gosec // body length is always a small multiple of 8

	for i := n; i > 0; i-- {
		idx := i - 1

		word := DecodeMarker(body[idx*8 : idx*8+8])
		if word.Offset() == idx && word.State() == Clean {
			newSize := int64(frameSize) + int64(idx+1)*8
			if err := f.Truncate(newSize); err != nil {
				return fmt.Errorf("breccia: truncating %q to last clean terminator: %w", path, err)
			}

			return nil
		}
	}

	return fmt.Errorf("%w: %q: no clean terminator found during recovery", ErrCorruptPadding, path)
}

// Header returns the deserialized header read at Create/OpenMut time.
func (bm *BrecciaMut[H]) Header() H {
	return bm.reader.Header()
}

// Reader returns the BrecciaMut's underlying Breccia, for callers that need
// package-level functions like BinarySearch that take a *Breccia[H]
// directly. The returned value shares state with bm: it is refreshed by
// every committed Batch.
func (bm *BrecciaMut[H]) Reader() *Breccia[H] {
	return bm.reader
}

// GetBlob delegates to the underlying reader; see Breccia.GetBlob.
func (bm *BrecciaMut[H]) GetBlob(o Offset[H]) ([]byte, error) {
	return bm.reader.GetBlob(o)
}

// Blobs delegates to the underlying reader; see Breccia.Blobs.
func (bm *BrecciaMut[H]) Blobs() *Blobs[H] {
	return bm.reader.Blobs()
}

// StartBatch begins a new batch of appends. Only one Batch may be
// outstanding per BrecciaMut; StartBatch fails with ErrBatchAlreadyOpen if
// the previous one was neither Committed nor Abandoned.
func (bm *BrecciaMut[H]) StartBatch() (*Batch[H], error) {
	if bm.batch != nil {
		return nil, ErrBatchAlreadyOpen
	}

	file, err := bm.fsys.OpenFile(bm.path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("breccia: starting batch on %q: %w", bm.path, err)
	}

	terminatorIdx := bm.reader.wordCount() - 1
	terminator := bm.reader.wordAt(terminatorIdx)

	if terminator.State() != Clean {
		_ = file.Close()
		return nil, ErrDirtyTail
	}

	batch := &Batch[H]{
		bm:               bm,
		file:             file,
		frameSize:        bm.reader.frameSize,
		lastMarkerOffset: terminatorIdx,
		lastMarker:       terminator,
	}

	bm.batch = batch

	return batch, nil
}

// WriteBlob is a convenience wrapper around StartBatch/Batch.WriteBlob/
// Batch.Commit for the common case of a single-blob batch.
func (bm *BrecciaMut[H]) WriteBlob(blob []byte) (Offset[H], error) {
	batch, err := bm.StartBatch()
	if err != nil {
		return Offset[H]{}, err
	}

	off, err := batch.WriteBlob(blob)
	if err != nil {
		_ = batch.Abandon()
		return Offset[H]{}, err
	}

	if err := batch.Commit(); err != nil {
		return Offset[H]{}, err
	}

	return off, nil
}

// Close releases the writer lock and closes the reader's file descriptor
// and mapping. It does not commit or abandon an outstanding Batch; callers
// must do that first.
func (bm *BrecciaMut[H]) Close() error {
	readerErr := bm.reader.Close()
	lockErr := bm.lock.Close()

	if readerErr != nil {
		return readerErr
	}

	return lockErr
}
