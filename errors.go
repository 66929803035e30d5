package breccia

import "errors"

var (
	// ErrBadMagic means the file's magic bytes do not match the header
	// schema's Magic().
	ErrBadMagic = errors.New("breccia: bad magic")

	// ErrHeaderDeserialize wraps an error returned by a caller's
	// Deserializer. The returned error wraps both this sentinel and the
	// cause; use errors.Is or errors.As to match the cause.
	ErrHeaderDeserialize = errors.New("breccia: header deserialize failed")

	// ErrWithinHeader means a raw file byte offset falls inside the
	// header frame.
	ErrWithinHeader = errors.New("breccia: offset within header frame")

	// ErrUnaligned means a raw file byte offset is not 8-byte aligned,
	// or a body-word index passed to GetBlob does not land on a marker.
	ErrUnaligned = errors.New("breccia: unaligned offset")

	// ErrOutOfRange means GetBlob was called with an offset at or past
	// the body's word count.
	ErrOutOfRange = errors.New("breccia: offset out of range")

	// ErrDirtyTail means the file's last word was not a Clean marker at
	// its own index at open time (it was Dirty, or not a marker at all):
	// a writer crashed mid-batch and left an uncommitted suffix.
	ErrDirtyTail = errors.New("breccia: dirty tail")

	// ErrCorruptPadding means a marker's padding_len (Clean or Dirty) claims more
	// tail-fill than the bytes preceding it can supply, and is not the
	// legitimate zero-payload, padding_len-7 pad-marker collision
	// avoidance inserts (spec §4.4 step 2, second bullet; §9). It is also
	// returned when dirty-tail recovery's backward scan reaches the start
	// of the body without finding any Clean fixed-point marker at all.
	ErrCorruptPadding = errors.New("breccia: corrupt padding marker")

	// ErrCollisionProbeExceeded means the padding collision-avoidance
	// loop exceeded its configured bound without finding a safe offset.
	ErrCollisionProbeExceeded = errors.New("breccia: collision probe exceeded limit")

	// ErrWriterLocked means another BrecciaMut already holds the
	// exclusive writer lock on this file.
	ErrWriterLocked = errors.New("breccia: writer lock held")

	// ErrBatchAlreadyOpen means StartBatch was called on a BrecciaMut
	// that already has an uncommitted Batch outstanding.
	ErrBatchAlreadyOpen = errors.New("breccia: batch already open")

	// ErrRangeInverted means BinarySearchInRange was called with
	// start > end.
	ErrRangeInverted = errors.New("breccia: inverted search range")
)
