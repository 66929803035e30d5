package breccia

// Direction tells BinarySearch which half of the range to recurse into
// when a Comparator has not yet reached a verdict.
type Direction int

const (
	// Next means: this blob was inconclusive, keep scanning forward from
	// the current midpoint without changing the search range.
	Next Direction = iota

	// Left means: recurse on [lo, mid).
	Left

	// Right means: recurse on [offset+1, hi), where offset (always ≥ mid)
	// is the blob just compared. Starting past that blob keeps it, and
	// every blob already seen at this step, out of the new range; the +1
	// also keeps a singleton range from recursing on itself forever.
	Right
)

// Verdict is what a Comparator returns for each candidate blob offered by
// BinarySearch.
type Verdict[R any] struct {
	stop   bool
	found  bool
	result R
	dir    Direction
}

// Match ends the search immediately, returning result as the found value.
func Match[R any](result R) Verdict[R] {
	return Verdict[R]{stop: true, found: true, result: result}
}

// Abort ends the search immediately with no match.
func Abort[R any]() Verdict[R] {
	return Verdict[R]{stop: true, found: false}
}

// GoLeft tells BinarySearch to recurse on the lower half of the range.
func GoLeft[R any]() Verdict[R] {
	return Verdict[R]{dir: Left}
}

// GoRight tells BinarySearch to recurse on the upper half of the range.
func GoRight[R any]() Verdict[R] {
	return Verdict[R]{dir: Right}
}

// SearchNext tells BinarySearch this blob was inconclusive; keep scanning
// forward without narrowing the range yet.
func SearchNext[R any]() Verdict[R] {
	return Verdict[R]{dir: Next}
}

// Comparator is invoked once per candidate blob visited during a binary
// search, in increasing offset order within each bisection step, and
// decides how the search proceeds.
// It is never invoked twice with the same offset within one search.
type Comparator[H Header, R any] func(offset Offset[H], blob []byte) (Verdict[R], error)

// BinarySearch bisects the full range [0, body word count) of b.
//
// See BinarySearchInRange for the algorithm.
func BinarySearch[H Header, R any](b *Breccia[H], cmp Comparator[H, R]) (R, bool, error) {
	return BinarySearchInRange(b, cmp, NewOffset[H](0), NewOffset[H](b.wordCount()))
}

// BinarySearchInRange bisects the half-open range [lo, hi).
//
// At each step it computes mid = Midpoint(lo, hi), seeds a forward iterator
// at mid (which, via the iterator's resync, yields the first blob whose
// start marker is ≥ mid), and for each such blob with offset < hi calls cmp:
//
//   - Match/Abort ends the search immediately.
//   - SearchNext continues to the next blob at the same range.
//   - GoRight recurses on [offset+1, hi), offset being the blob just compared.
//   - GoLeft recurses on [lo, mid).
//
// If the sub-iterator is exhausted without a verdict, it recurses on
// [lo, mid) if that range is non-empty, else returns (zero, false, nil).
//
// BinarySearchInRange fails with ErrRangeInverted if lo.Raw() > hi.Raw().
func BinarySearchInRange[H Header, R any](b *Breccia[H], cmp Comparator[H, R], lo, hi Offset[H]) (R, bool, error) {
	var zero R

	if lo.Raw() > hi.Raw() {
		return zero, false, ErrRangeInverted
	}

	return binarySearchRange(b, cmp, lo, hi)
}

func binarySearchRange[H Header, R any](b *Breccia[H], cmp Comparator[H, R], lo, hi Offset[H]) (R, bool, error) {
	var zero R

	if lo.Raw() >= hi.Raw() {
		return zero, false, nil
	}

	mid := Midpoint(lo, hi)
	it := newBlobs[H](b.body[mid.Raw()*8:], mid)

	for {
		offset, blob, ok, err := it.Next()
		if err != nil {
			return zero, false, err
		}

		if !ok || offset.Raw() >= hi.Raw() {
			break
		}

		verdict, err := cmp(offset, blob)
		if err != nil {
			return zero, false, err
		}

		if verdict.stop {
			return verdict.result, verdict.found, nil
		}

		switch verdict.dir {
		case Right:
			return binarySearchRange(b, cmp, offset.Add(1), hi)
		case Left:
			return binarySearchRange(b, cmp, lo, mid)
		case Next:
			continue
		}
	}

	if lo.Raw() < mid.Raw() {
		return binarySearchRange(b, cmp, lo, mid)
	}

	return zero, false, nil
}
