package breccia

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/petertodd/breccia/config"
	"github.com/petertodd/breccia/internal/storage"
)

func Test_OpenMut_RecoversDirtyTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.breccia")

	bm, err := Create[NullHeader](storage.NewReal(), path, NullHeader{}, DeserializeNullHeader, config.Default())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := bm.WriteBlob([]byte("committed")); err != nil {
		t.Fatalf("WriteBlob(committed): %v", err)
	}

	batch, err := bm.StartBatch()
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}

	if _, err := batch.WriteBlob([]byte("never committed")); err != nil {
		t.Fatalf("WriteBlob(uncommitted): %v", err)
	}

	if err := batch.flushPending(); err != nil {
		t.Fatalf("flushPending: %v", err)
	}

	if err := batch.file.Close(); err != nil {
		t.Fatalf("file.Close: %v", err)
	}

	if err := bm.Close(); err != nil {
		t.Fatalf("bm.Close: %v", err)
	}

	recovered, err := OpenMut[NullHeader](storage.NewReal(), path, DeserializeNullHeader, config.Default())
	if err != nil {
		t.Fatalf("OpenMut: %v", err)
	}
	defer recovered.Close() //nolint:errcheck // best effort in test cleanup

	count := 0

	for it := recovered.Blobs(); ; {
		_, blob, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}

		if !ok {
			break
		}

		count++

		if string(blob) != "committed" {
			t.Fatalf("recovered blob = %q, want %q", blob, "committed")
		}
	}

	if count != 1 {
		t.Fatalf("recovered store has %d blobs, want 1 (the uncommitted batch must be truncated away)", count)
	}
}

func Test_OpenMut_SecondWriterBlocked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.breccia")

	bm, err := Create[NullHeader](storage.NewReal(), path, NullHeader{}, DeserializeNullHeader, config.Default())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer bm.Close() //nolint:errcheck // best effort in test cleanup

	opts := config.Default()
	opts.LockTimeout = 10 * time.Millisecond

	_, err = OpenMut[NullHeader](storage.NewReal(), path, DeserializeNullHeader, opts)
	if !errors.Is(err, ErrWriterLocked) {
		t.Fatalf("second OpenMut: got %v, want ErrWriterLocked", err)
	}
}
