package breccia

import "fmt"

// Blobs is a fused, double-ended iterator over the blobs in a word-slice of
// a Breccia body. Once Next or NextBack returns ok=false, both stay
// ok=false forever; if that end was reached because of corrupt padding, err
// is returned again on every subsequent call.
//
// NextBack's resync only decodes offsets relative to the start of the full
// body (see Breccia.Blobs): it is only correct when it.offset addresses
// word 0 of the underlying body, which holds for every Blobs value Breccia
// produces.
type Blobs[H Header] struct {
	body   []byte
	offset Offset[H]
	done   bool
	err    error
}

// newBlobs seeds an iterator at body[:], treating its first word as
// offset.Raw(), then resyncs (spec §4.4 step 1): it drops words from the
// front until the head word's encoded offset matches the running offset,
// which is what lets binary search start an iterator at an arbitrary
// midpoint and land on the first real blob at or after it.
func newBlobs[H Header](body []byte, offset Offset[H]) *Blobs[H] {
	for len(body) >= 8 {
		head := DecodeMarker(body[:8])
		if head.Offset() == offset.Raw() {
			break
		}

		body = body[8:]
		offset = offset.Add(1)
	}

	return &Blobs[H]{body: body, offset: offset}
}

// Next returns the next blob in forward order, or ok=false if the
// remaining slice holds no complete blob (end of file, or an uncommitted
// tail). err is non-nil only when iteration stopped because a marker's
// padding_len was corrupt (spec §9); it is returned again on every
// subsequent call.
func (it *Blobs[H]) Next() (Offset[H], []byte, bool, error) {
	if it.done {
		return Offset[H]{}, nil, false, it.err
	}

	start := it.offset
	blobLenWords := uint64(0)

	for {
		idx := 1 + blobLenWords
		if idx >= it.wordCount() {
			it.done = true
			return Offset[H]{}, nil, false, nil
		}

		potential := DecodeMarker(it.body[idx*8 : idx*8+8])
		endOffset := start.Raw() + blobLenWords + 1

		if potential.Offset() == endOffset {
			blob := it.body[8 : idx*8]
			padLen := uint64(potential.PaddingLen())

			if uint64(len(blob)) >= padLen {
				payload := blob[:uint64(len(blob))-padLen]

				it.body = it.body[idx*8:]
				it.offset = NewOffset[H](endOffset)

				return start, payload, true, nil
			}

			// Insufficient payload to satisfy the claimed tail-fill.
			// padding_len is at most 7 and payload_bytes grows in whole
			// words, so this can only happen at n==1. A zero-payload
			// Dirty marker with padding_len 7 is a legitimate pad-marker
			// (spec §4.4 step 2, second bullet); anything else claims
			// padding over bytes that don't exist, which is corrupt.
			if !potential.IsPadding() {
				it.done = true
				it.err = fmt.Errorf("%w: at word %d", ErrCorruptPadding, endOffset)

				return Offset[H]{}, nil, false, it.err
			}

			it.body = it.body[8:]
			start = start.Add(1)
			blobLenWords = 0

			continue
		}

		blobLenWords++
	}
}

// NextBack returns the last blob in the remaining slice, or ok=false if
// none remains. err is non-nil only when iteration stopped because a
// marker's padding_len was corrupt (spec §9); it is returned again on every
// subsequent call.
func (it *Blobs[H]) NextBack() (Offset[H], []byte, bool, error) {
	if it.done {
		return Offset[H]{}, nil, false, it.err
	}

	for it.wordCount() >= 2 {
		lastIdx := it.wordCount() - 1
		last := DecodeMarker(it.body[lastIdx*8 : lastIdx*8+8])

		if last.IsPadding() && isMarkerAt(last, lastIdx) {
			it.body = it.body[:lastIdx*8]
			continue
		}

		break
	}

	if it.wordCount() < 2 {
		it.done = true
		return Offset[H]{}, nil, false, nil
	}

	endIdx := it.wordCount() - 1
	endMarker := DecodeMarker(it.body[endIdx*8 : endIdx*8+8])

	start := endIdx - 1
	for start > 0 && !isMarkerAt(DecodeMarker(it.body[start*8:start*8+8]), start) {
		start--
	}

	if !isMarkerAt(DecodeMarker(it.body[start*8:start*8+8]), start) {
		it.done = true
		return Offset[H]{}, nil, false, nil
	}

	blob := it.body[(start+1)*8 : endIdx*8]
	padLen := uint64(endMarker.PaddingLen())

	if uint64(len(blob)) < padLen {
		it.done = true
		it.err = fmt.Errorf("%w: at word %d", ErrCorruptPadding, endIdx)

		return Offset[H]{}, nil, false, it.err
	}

	payload := blob[:uint64(len(blob))-padLen]

	offset := NewOffset[H](start)
	it.body = it.body[:(start+1)*8]

	return offset, payload, true, nil
}

func (it *Blobs[H]) wordCount() uint64 {
	return uint64(len(it.body) / 8) //nolint:gosec // body length is always a small multiple of 8
}
