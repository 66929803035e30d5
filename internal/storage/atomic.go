package storage

import (
	"bytes"
	"os"

	natomic "github.com/natefinch/atomic"
)

// WriteFileAtomic writes data to path atomically and durably.
//
// When fsys is [Real], this delegates straight to
// [github.com/natefinch/atomic.WriteFile], since that package only
// understands the real OS filesystem. For any other [FS] (fakes used in
// tests), it falls back to [AtomicWriter], which implements the same
// temp-file-then-rename protocol through the FS abstraction.
func WriteFileAtomic(fsys FS, path string, data []byte, perm os.FileMode) error {
	if _, ok := fsys.(*Real); ok {
		return natomic.WriteFile(path, bytes.NewReader(data))
	}

	return NewAtomicWriter(fsys).Write(path, bytes.NewReader(data), AtomicWriteOptions{
		SyncDir: true,
		Perm:    perm,
	})
}
