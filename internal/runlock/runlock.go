// Package runlock keeps two reelgen processes from writing into the same
// videos directory at once.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"reelgen/internal/services"
)

// FileName is the lock file created inside the guarded directory.
const FileName = ".reelgen.lock"

// Lock is a held directory lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the lock for dir without blocking. It fails with
// services.ErrValidation when another process holds it.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "runlock", "acquire",
			fmt.Sprintf("another reelgen run is using %s", dir), nil)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
