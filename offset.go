package breccia

// Offset is a phantom-typed logical index into a Breccia body's marker-word
// array. The type parameter H pins an Offset to the header schema it was
// produced from: an Offset obtained from a Breccia[SchemaA] cannot be
// passed to a Breccia[SchemaB] without a compile error, even though both
// instantiate to the identical uint64 representation underneath.
type Offset[H Header] struct {
	raw uint64
}

// NewOffset wraps a raw body-word index as an Offset.
func NewOffset[H Header](raw uint64) Offset[H] {
	return Offset[H]{raw: raw}
}

// Raw returns the underlying body-word index.
func (o Offset[H]) Raw() uint64 {
	return o.raw
}

// Add returns o advanced by n words.
func (o Offset[H]) Add(n uint64) Offset[H] {
	return Offset[H]{raw: o.raw + n}
}

// Sub returns o moved back by n words. Panics if n > o.Raw().
func (o Offset[H]) Sub(n uint64) Offset[H] {
	if n > o.raw {
		panic("breccia: Offset.Sub underflow")
	}

	return Offset[H]{raw: o.raw - n}
}

// Less reports whether o precedes other.
func (o Offset[H]) Less(other Offset[H]) bool {
	return o.raw < other.raw
}

// Equal reports whether o and other address the same body word.
func (o Offset[H]) Equal(other Offset[H]) bool {
	return o.raw == other.raw
}

// Midpoint returns the offset halfway between lo and hi, rounded down. It
// never exceeds hi.
func Midpoint[H Header](lo, hi Offset[H]) Offset[H] {
	return Offset[H]{raw: lo.raw + (hi.raw-lo.raw)/2}
}

// TryFromFileOffset converts a raw file byte offset into a body-word
// Offset, given the size in bytes of the header frame (magic + header +
// zero padding).
//
// It fails with ErrWithinHeader if byteOff falls inside the header frame,
// and ErrUnaligned if the remainder is not a multiple of 8.
func TryFromFileOffset[H Header](byteOff int64, frameSize int) (Offset[H], error) {
	rel := byteOff - int64(frameSize)
	if rel < 0 {
		return Offset[H]{}, ErrWithinHeader
	}

	if rel%8 != 0 {
		return Offset[H]{}, ErrUnaligned
	}

	return Offset[H]{raw: uint64(rel / 8)}, nil //nolint:gosec // rel is non-negative, checked above
}

// FileOffset converts o back into a raw file byte offset, given the header
// frame size.
func (o Offset[H]) FileOffset(frameSize int) int64 {
	return int64(frameSize) + int64(o.raw)*8
}
