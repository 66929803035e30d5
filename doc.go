// Package breccia implements a single-file, append-only blob store with
// efficient random access and binary search over an ordered sequence of
// opaque byte blobs.
//
// Each stored blob is identified by a logical [Offset] that remains stable
// once assigned. The file is self-describing (a typed magic plus a
// caller-supplied [Header]) and self-synchronizing: every 8-byte aligned
// word in the body is either blob payload or a [Marker] word whose value
// encodes its own position, so a reader can locate blob boundaries from any
// byte offset without an external index. This is what lets the file be
// mapped into memory and scanned or binary-searched directly on the
// mapping.
//
// [Breccia] is the read side: it mmaps the file and exposes point lookup,
// forward/reverse iteration, and bisecting search. [BrecciaMut] is the
// write side: it creates files, appends blobs one at a time or inside a
// [Batch], and publishes a batch atomically by flipping a single commit
// bit in the trailing marker.
//
// Breccia does not support concurrent writers, mutation or deletion of
// existing blobs, compression, or encryption. Callers that want a sorted
// binary-searchable store must maintain that sort order themselves; Breccia
// never reorders or validates blob ordering.
package breccia
