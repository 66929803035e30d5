package breccia

import (
	"fmt"
	"io"

	"github.com/petertodd/breccia/config"
	"github.com/petertodd/breccia/internal/storage"
)

// Batch is one append transaction: zero or more calls to WriteBlob followed
// by exactly one Commit (or Abandon to discard).
//
// Each WriteBlob leaves its new end marker Dirty and buffered in memory,
// flushing it to disk only when the next WriteBlob or Commit needs the slot
// after it — see spec §4.7. A Batch dropped without Commit or Abandon
// leaves the store's on-disk terminator exactly as it was when StartBatch
// was called; any bytes written for blobs in the abandoned batch are
// recovered away the next time the file is opened for writing (see
// truncateToLastClean).
type Batch[H Header] struct {
	bm    *BrecciaMut[H]
	file  storage.File
	frameSize int

	lastMarkerOffset uint64
	lastMarker       Marker
	pendingFlush     bool

	done bool
}

// WriteBlob appends blob immediately after the batch's current terminator,
// applying the collision-avoidance padding algorithm from spec §4.3, and
// returns the offset of the blob's start marker — which is always the word
// index of the terminator as it stood before this call; that word's bytes
// are left unchanged on disk and reused as the new blob's start marker.
func (batch *Batch[H]) WriteBlob(blob []byte) (Offset[H], error) {
	if batch.done {
		return Offset[H]{}, fmt.Errorf("breccia: batch already committed or abandoned")
	}

	if err := batch.flushPending(); err != nil {
		return Offset[H]{}, err
	}

	k := batch.lastMarkerOffset

	chunks, tailFill := buildChunks(blob)

	limit := batch.bm.opts.CollisionProbeLimit
	if limit <= 0 {
		limit = config.DefaultCollisionProbeLimit
	}

	padding, err := findPadding(k, chunks, limit)
	if err != nil {
		return Offset[H]{}, err
	}

	for i := uint64(1); i <= padding; i++ {
		if err := batch.writeWordAt(k+i, NewPaddingMarker(k+i).Bytes()); err != nil {
			return Offset[H]{}, err
		}
	}

	payloadStart := k + padding + 1

	for i, chunk := range chunks {
		if err := batch.writeWordAt(payloadStart+uint64(i), chunk); err != nil { //nolint:gosec // chunk count bounded by blob length
			return Offset[H]{}, err
		}
	}

	endIdx := k + padding + uint64(len(chunks)) + 1

	batch.lastMarkerOffset = endIdx
	batch.lastMarker = NewMarker(endIdx, tailFill, Dirty)
	batch.pendingFlush = true

	return NewOffset[H](k), nil
}

// Commit flips the batch's trailing end marker Clean, writes it, optionally
// fsyncs (config.Options.FsyncOnCommit), and reloads the BrecciaMut's
// reader so the new blobs become visible.
//
// A Commit with no preceding WriteBlob calls is a no-op that simply
// re-affirms the pre-existing terminator.
func (batch *Batch[H]) Commit() error {
	if batch.done {
		return fmt.Errorf("breccia: batch already committed or abandoned")
	}

	if batch.pendingFlush {
		batch.lastMarker = batch.lastMarker.WithState(Clean)
	}

	if err := batch.writeWordAt(batch.lastMarkerOffset, batch.lastMarker.Bytes()); err != nil {
		return err
	}

	batch.pendingFlush = false

	if batch.bm.opts.FsyncOnCommit {
		if err := batch.file.Sync(); err != nil {
			return fmt.Errorf("breccia: fsync on commit: %w", err)
		}
	}

	if err := batch.file.Close(); err != nil {
		return fmt.Errorf("breccia: closing batch fd: %w", err)
	}

	batch.done = true
	batch.bm.batch = nil

	return batch.bm.reader.Reload()
}

// Abandon discards the batch without committing. Any blob bytes already
// written to disk for this batch are left in place, uncommitted; they are
// recovered away the next time the file is opened for writing.
func (batch *Batch[H]) Abandon() error {
	if batch.done {
		return nil
	}

	batch.done = true
	batch.bm.batch = nil

	return batch.file.Close()
}

func (batch *Batch[H]) flushPending() error {
	if !batch.pendingFlush {
		return nil
	}

	if err := batch.writeWordAt(batch.lastMarkerOffset, batch.lastMarker.Bytes()); err != nil {
		return err
	}

	batch.pendingFlush = false

	return nil
}

func (batch *Batch[H]) writeWordAt(idx uint64, data [8]byte) error {
	pos := int64(batch.frameSize) + int64(idx)*8 //nolint:gosec // idx is bounded by MaxOffset (60 bits)

	if _, err := batch.file.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("breccia: seek: %w", err)
	}

	if _, err := batch.file.Write(data[:]); err != nil {
		return fmt.Errorf("breccia: write: %w", err)
	}

	return nil
}

// buildChunks splits blob into 8-byte chunks, filling the final partial
// chunk's unused tail bytes with 0xFE (spec §3). It returns nil, 0 for an
// empty blob.
func buildChunks(blob []byte) ([][8]byte, int) {
	n := len(blob)
	if n == 0 {
		return nil, 0
	}

	numChunks := (n + 7) / 8
	tailFill := (8 - n%8) % 8

	chunks := make([][8]byte, numChunks)

	for i := range chunks {
		start := i * 8
		end := start + 8

		if end > n {
			end = n
		}

		copy(chunks[i][:], blob[start:end])

		for j := end - start; j < 8; j++ {
			chunks[i][j] = 0xFE
		}
	}

	return chunks, tailFill
}

// findPadding implements the collision-avoidance probe from spec §4.3: the
// smallest padding such that none of the blob's chunks, once written
// starting at k+padding+1, would land on a word whose encoded offset
// already equals its own position — which would make that word
// indistinguishable from a marker.
func findPadding(k uint64, chunks [][8]byte, limit int) (uint64, error) {
	numChunks := uint64(len(chunks))
	if numChunks == 0 {
		return 0, nil
	}

	for padding := uint64(0); ; padding++ {
		if limit > 0 && padding >= uint64(limit) {
			return 0, ErrCollisionProbeExceeded
		}

		collision := false

		for i := uint64(1); i <= numChunks; i++ {
			pos := k + padding + i
			candidate := DecodeMarker(chunks[i-1][:])

			if candidate.Offset() == pos {
				collision = true
				break
			}
		}

		if !collision {
			return padding, nil
		}
	}
}
