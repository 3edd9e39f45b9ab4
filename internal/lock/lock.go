// Package lock guards an output directory against concurrent gardener processes.
package lock

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"git.home.luguber.info/inful/gardener/internal/foundation/errors"
)

// ErrAlreadyLocked is returned when another process holds the output lock.
var ErrAlreadyLocked = errors.FileSystemError("output directory is in use by another gardener process").UserAction().Build()

// Flocker is the subset of flock.Flock used here.
type Flocker interface {
	TryLock() (bool, error)
	Unlock() error
}

// Lock is a fail-fast advisory lock.
type Lock struct {
	flocker Flocker
	path    string
}

// New wraps f.
func New(f Flocker) *Lock {
	return &Lock{flocker: f}
}

// ForOutput returns the lock for outputDir. The lock file sits beside the directory, so
// clearing the output tree never removes it.
func ForOutput(outputDir string) *Lock {
	clean := filepath.Clean(outputDir)
	p := filepath.Join(filepath.Dir(clean), "."+filepath.Base(clean)+".lock")
	l := New(flock.New(p))
	l.path = p
	return l
}

// Path is the lock file, empty for injected Flockers.
func (l *Lock) Path() string { return l.path }

// TryLock acquires the lock without blocking.
func (l *Lock) TryLock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ok, err := l.flocker.TryLock()
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "acquiring output lock").
			WithContext("path", l.path).
			Build()
	}
	if !ok {
		return ErrAlreadyLocked
	}
	return nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if err := l.flocker.Unlock(); err != nil {
		return fmt.Errorf("releasing output lock: %w", err)
	}
	return nil
}
