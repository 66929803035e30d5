package breccia

import "encoding/binary"

// State is the one-bit commit state carried by every marker word.
type State uint8

const (
	// Clean means the marker is committed: the blob it terminates is
	// part of the durable prefix of the file.
	Clean State = 0

	// Dirty means the marker is either mid-batch (not yet committed) or
	// a padding-only word.
	Dirty State = 1
)

const (
	markerOffsetBits   = 60
	markerOffsetMask   = uint64(1)<<markerOffsetBits - 1
	markerStateBit     = uint64(1) << 60
	markerPaddingShift = 61
)

// MaxOffset is the largest body-word index a Marker can encode.
const MaxOffset = markerOffsetMask

// Marker is the 8-byte little-endian word that terminates every blob
// record: a body-word offset in the low 60 bits, a 1-bit commit state in
// bit 60, and a 0..7 padding length in the top 3 bits.
type Marker uint64

// NewMarker builds a marker encoding offset, paddingLen (0..7), and state.
// Panics if offset exceeds MaxOffset or paddingLen is out of range.
func NewMarker(offset uint64, paddingLen int, state State) Marker {
	if offset > MaxOffset {
		panic("breccia: marker offset overflows 60 bits")
	}

	if paddingLen < 0 || paddingLen > 7 {
		panic("breccia: marker padding_len out of range")
	}

	m := offset & markerOffsetMask
	if state == Dirty {
		m |= markerStateBit
	}

	m |= uint64(paddingLen) << markerPaddingShift

	return Marker(m)
}

// NewPaddingMarker builds a padding-only marker at offset: Dirty with
// padding_len 7.
func NewPaddingMarker(offset uint64) Marker {
	return NewMarker(offset, 7, Dirty)
}

// Offset returns the marker's encoded body-word index.
func (m Marker) Offset() uint64 {
	return uint64(m) & markerOffsetMask
}

// PaddingLen returns the marker's encoded padding length, 0..7.
func (m Marker) PaddingLen() int {
	return int(uint64(m) >> markerPaddingShift)
}

// State returns the marker's commit state.
func (m Marker) State() State {
	if uint64(m)&markerStateBit != 0 {
		return Dirty
	}

	return Clean
}

// WithState returns m with its state bit replaced by s.
func (m Marker) WithState(s State) Marker {
	raw := uint64(m) &^ markerStateBit
	if s == Dirty {
		raw |= markerStateBit
	}

	return Marker(raw)
}

// IsPadding reports whether m is a padding-only marker: Dirty with
// padding_len == 7. Such a word carries no blob.
func (m Marker) IsPadding() bool {
	return m.State() == Dirty && m.PaddingLen() == 7
}

// Bytes encodes m as an 8-byte little-endian word.
func (m Marker) Bytes() [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(m))

	return b
}

// DecodeMarker reads an 8-byte little-endian word as a Marker. Panics if
// src is shorter than 8 bytes.
func DecodeMarker(src []byte) Marker {
	return Marker(binary.LittleEndian.Uint64(src))
}

// isMarkerAt reports whether word, located at body-word index i, is a
// marker word rather than a payload word: the invariant in spec §3 is that
// a word is a marker iff its encoded offset equals its own body index.
func isMarkerAt(word Marker, i uint64) bool {
	return word.Offset() == i
}
