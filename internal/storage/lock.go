package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by TryLock when the lock is held by another
// process, or by LockWithTimeout when the acquisition timeout expires.
var ErrWouldBlock = errors.New("lock would block")

// errInodeMismatch is an internal sentinel indicating the store file was
// replaced between open and flock. Callers should retry.
var errInodeMismatch = errors.New("inode mismatch")

// Locker acquires the exclusive writer lock a [breccia.BrecciaMut] holds for
// its lifetime, enforcing the one-outstanding-writer rule with flock(2)
// rather than just caller discipline.
//
// flock locks an inode (the open file), not a pathname, so Locker verifies
// after acquiring the lock that the path still refers to the inode it
// locked — guarding against the file having been replaced while the lock
// was being acquired.
//
// Locker has no mutable state beyond its dependencies and is safe for
// concurrent use as long as the underlying [FS] is.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker creates a Locker that uses the given filesystem for stat calls.
func NewLocker(fs FS) *Locker {
	return &Locker{fs: fs, flock: unix.Flock}
}

// Lock represents a held exclusive lock. Call [Lock.Close] to release it.
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close releases the lock and closes the underlying file descriptor.
//
// Close is idempotent; subsequent calls return nil.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())

	unlockErr := flockRetryEINTR(lk.flock, fd, unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		return fmt.Errorf("unlocking store file: %w", unlockErr)
	}

	if closeErr != nil {
		return fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return nil
}

// Lock acquires an exclusive lock on the file at path, blocking until the
// lock is available. The file must already exist.
//
// Race conditions where the file is replaced (renamed, deleted+recreated)
// during lock acquisition are handled automatically: the lock is always
// acquired on the inode currently at path.
func (l *Locker) Lock(path string) (*Lock, error) {
	for {
		lock, err := l.tryAcquire(path, false)
		if err == nil {
			return lock, nil
		}

		if errors.Is(err, errInodeMismatch) {
			continue
		}

		return nil, err
	}
}

// LockWithTimeout attempts to acquire an exclusive lock, retrying with
// exponential backoff until the timeout expires. A zero timeout tries once
// (non-blocking) and returns [ErrWouldBlock] immediately if unavailable.
func (l *Locker) LockWithTimeout(path string, timeout time.Duration) (*Lock, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	backoff := time.Millisecond

	for {
		lock, err := l.tryAcquire(path, true)
		if err == nil {
			return lock, nil
		}

		retryable := errors.Is(err, ErrWouldBlock) || errors.Is(err, errInodeMismatch)
		if !retryable {
			return nil, err
		}

		if timeout == 0 {
			return nil, ErrWouldBlock
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: timed out after %s", ErrWouldBlock, timeout)
		}

		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}

		time.Sleep(sleep)

		if backoff < 25*time.Millisecond {
			backoff *= 2
			if backoff > 25*time.Millisecond {
				backoff = 25 * time.Millisecond
			}
		}
	}
}

func (l *Locker) tryAcquire(path string, nonBlocking bool) (*Lock, error) {
	file, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening store file: %w", err)
	}

	fd := int(file.Fd())

	flags := unix.LOCK_EX
	if nonBlocking {
		flags |= unix.LOCK_NB
	}

	if err := flockRetryEINTR(l.flock, fd, flags); err != nil {
		_ = file.Close()

		if isWouldBlock(err) {
			return nil, ErrWouldBlock
		}

		return nil, err
	}

	match, err := l.inodeMatchesPath(path, file)
	if err != nil {
		_ = flockRetryEINTR(l.flock, fd, unix.LOCK_UN)
		_ = file.Close()

		return nil, fmt.Errorf("verifying inode match: %w", err)
	}

	if !match {
		_ = flockRetryEINTR(l.flock, fd, unix.LOCK_UN)
		_ = file.Close()

		return nil, errInodeMismatch
	}

	return &Lock{file: file, flock: l.flock}, nil
}

// inodeMatchesPath verifies that f (the fd we just locked) still refers to
// the file currently at path. See [Locker] doc comment for why this matters.
func (l *Locker) inodeMatchesPath(path string, f File) (bool, error) {
	openInfo, err := f.Stat()
	if err != nil {
		return false, err
	}

	openSys, ok := openInfo.Sys().(*unix.Stat_t)
	if !ok || openSys == nil {
		return false, fmt.Errorf("file.Stat Sys=%T, want *unix.Stat_t", openInfo.Sys())
	}

	pathInfo, err := l.fs.Stat(path)
	if err != nil {
		return false, err
	}

	pathSys, ok := pathInfo.Sys().(*unix.Stat_t)
	if !ok || pathSys == nil {
		return false, fmt.Errorf("fs.Stat Sys=%T, want *unix.Stat_t", pathInfo.Sys())
	}

	return openSys.Dev == pathSys.Dev && openSys.Ino == pathSys.Ino, nil
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)
}

// flockRetryEINTR wraps flock, retrying on EINTR (the syscall was
// interrupted by a signal before it could complete; it didn't fail, it just
// needs to run again).
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
