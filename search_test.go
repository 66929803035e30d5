package breccia

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/petertodd/breccia/config"
	"github.com/petertodd/breccia/internal/storage"
)

func Test_BinarySearchInRange_RejectsInvertedRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.breccia")

	bm, err := Create[NullHeader](storage.NewReal(), path, NullHeader{}, DeserializeNullHeader, config.Default())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer bm.Close() //nolint:errcheck // best effort in test cleanup

	cmp := func(Offset[NullHeader], []byte) (Verdict[Offset[NullHeader]], error) {
		return Abort[Offset[NullHeader]](), nil
	}

	_, _, err = BinarySearchInRange(bm.reader, cmp, NewOffset[NullHeader](5), NewOffset[NullHeader](2))
	if !errors.Is(err, ErrRangeInverted) {
		t.Fatalf("BinarySearchInRange(5, 2): got %v, want ErrRangeInverted", err)
	}
}

func Test_BinarySearch_EmptyRangeNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.breccia")

	bm, err := Create[NullHeader](storage.NewReal(), path, NullHeader{}, DeserializeNullHeader, config.Default())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer bm.Close() //nolint:errcheck // best effort in test cleanup

	cmp := func(Offset[NullHeader], []byte) (Verdict[Offset[NullHeader]], error) {
		t.Fatal("comparator should not be invoked on an empty file")
		return Abort[Offset[NullHeader]](), nil
	}

	_, found, err := BinarySearch(bm.reader, cmp)
	if err != nil {
		t.Fatalf("BinarySearch: %v", err)
	}

	if found {
		t.Fatal("BinarySearch on empty file: want not found")
	}
}

func Test_BinarySearch_ComparatorErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.breccia")

	bm, err := Create[NullHeader](storage.NewReal(), path, NullHeader{}, DeserializeNullHeader, config.Default())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer bm.Close() //nolint:errcheck // best effort in test cleanup

	if _, err := bm.WriteBlob([]byte("x")); err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	wantErr := errors.New("comparator blew up")

	cmp := func(Offset[NullHeader], []byte) (Verdict[NullHeader], error) {
		return Verdict[NullHeader]{}, wantErr
	}

	_, _, err = BinarySearch(bm.reader, cmp)
	if !errors.Is(err, wantErr) {
		t.Fatalf("BinarySearch: got %v, want %v", err, wantErr)
	}
}

func Test_BinarySearch_SearchNextSkipsInconclusiveBlobs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.breccia")

	bm, err := Create[NullHeader](storage.NewReal(), path, NullHeader{}, DeserializeNullHeader, config.Default())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer bm.Close() //nolint:errcheck // best effort in test cleanup

	const n = 16

	offsets := make([]Offset[NullHeader], n)

	for i := range n {
		blob := make([]byte, 8)
		binary.LittleEndian.PutUint64(blob, uint64(i)) //nolint:gosec // i is in [0,16)

		off, err := bm.WriteBlob(blob)
		if err != nil {
			t.Fatalf("WriteBlob(%d): %v", i, err)
		}

		offsets[i] = off
	}

	const target = 11

	cmp := func(offset Offset[NullHeader], blob []byte) (Verdict[Offset[NullHeader]], error) {
		val := binary.LittleEndian.Uint64(blob)

		switch {
		case val == target:
			return Match(offset), nil
		case val%2 == 0:
			// Even values are treated as inconclusive, forcing the search
			// to keep scanning forward within the same sub-range instead
			// of narrowing.
			return SearchNext[Offset[NullHeader]](), nil
		case val < target:
			return GoRight[Offset[NullHeader]](), nil
		default:
			return GoLeft[Offset[NullHeader]](), nil
		}
	}

	result, found, err := BinarySearch(bm.reader, cmp)
	if err != nil {
		t.Fatalf("BinarySearch: %v", err)
	}

	if !found {
		t.Fatal("BinarySearch: want found")
	}

	if result.Raw() != offsets[target].Raw() {
		t.Fatalf("BinarySearch = %d, want %d", result.Raw(), offsets[target].Raw())
	}
}
