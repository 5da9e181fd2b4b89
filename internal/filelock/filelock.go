// Package filelock provides non-blocking advisory file locks guarding the
// exception registry and the Guardian disk cache against concurrent
// readers/writers across processes.
package filelock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrBusy is returned when the lock is already held by another process.
var ErrBusy = errors.New("filelock: resource busy")

// Lock holds an open file descriptor with an advisory flock applied.
type Lock struct {
	f *os.File
}

// Acquire takes a non-blocking exclusive lock on path, creating the lock
// file if necessary. Callers must call Release when done.
func Acquire(path string) (*Lock, error) {
	return acquire(path, unix.LOCK_EX)
}

// AcquireShared takes a non-blocking shared (read) lock on path, creating
// the lock file if necessary. Multiple readers may hold the lock
// concurrently; a pending or held exclusive lock surfaces as ErrBusy.
func AcquireShared(path string) (*Lock, error) {
	return acquire(path, unix.LOCK_SH)
}

func acquire(path string, how int) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filelock: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("filelock: flock %s: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release drops the lock and closes the underlying descriptor.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	if err != nil {
		return err
	}
	return cerr
}
