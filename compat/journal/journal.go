// Package journal provides implementations of compat's Journaler interface to
// write to a file and to a terminal. It also provides a file locking
// abstraction so that only one compatd instance can run with the same journal
// file.
package journal

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"git.unix.lgbt/diamondburned/compatd/compat"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// multiWriter combines multiple journalers.
type multiWriter []compat.Journaler

// MultiWriter creates a journaler that writes to multiple other journalers.
// Every journaler is written to even if an earlier one fails; the first error
// is returned.
func MultiWriter(ws ...compat.Journaler) compat.Journaler {
	return multiWriter(ws)
}

func (w multiWriter) Write(event compat.Event) error {
	var firstErr error
	for _, writer := range w {
		if err := writer.Write(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// FileLockJournaler is a journaler that uses a file lock (flock) to lock the
// given file and writes to it. The FileLockJournaler instance must be closed by
// the caller or by the operating system when the application exits.
//
// Reading the Journal
//
// The caller does not need to acquire a file lock in order to read the written
// journal, as each Write operation performed on the file is a single append of
// one whole line. Use Reader to read it from the end.
type FileLockJournaler struct {
	Writer
	f *os.File
	l *flock.Flock
}

var _ compat.Journaler = (*FileLockJournaler)(nil)

// ErrLockedElsewhere is returned if NewFileLockJournaler can't acquire the file
// lock.
var ErrLockedElsewhere = errors.New("file already locked elsewhere")

// NewFileLockJournaler creates a new file journaler if it can acquire a flock
// on the path. It returns an error if it fails to acquire the lock.
func NewFileLockJournaler(path string) (*FileLockJournaler, error) {
	return newFileLockJournaler(nil, path)
}

// NewFileLockJournalerWait creates a new file journaler but waits until the
// lock can be acquired or until the context times out.
func NewFileLockJournalerWait(ctx context.Context, path string) (*FileLockJournaler, error) {
	return newFileLockJournaler(ctx, path)
}

func newFileLockJournaler(ctx context.Context, path string) (*FileLockJournaler, error) {
	// Ensure the directory exists.
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}

	l := flock.New(path)

	var locked bool
	var err error

	if ctx != nil {
		locked, err = l.TryLockContext(ctx, 25*time.Millisecond)
	} else {
		locked, err = l.TryLock()
	}

	if err != nil {
		if ctx != nil && ctx.Err() != nil {
			return nil, ErrLockedElsewhere
		}
		return nil, errors.Wrap(err, "failed to acquire lock")
	}

	if !locked {
		return nil, ErrLockedElsewhere
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_SYNC, 0600)
	if err != nil {
		l.Unlock()
		return nil, errors.Wrap(err, "failed to open file")
	}

	return &FileLockJournaler{
		Writer: NewWriter(f),
		f:      f,
		l:      l,
	}, nil
}

// Close closes the file and releases the flock.
func (f *FileLockJournaler) Close() error {
	f.f.Close()
	return f.l.Unlock()
}
