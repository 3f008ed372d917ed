package output

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AtomicFile is written under a temporary name and only appears at its
// final path once Commit succeeds.
type AtomicFile struct {
	*os.File
	path string
	done bool
}

// CreateAtomic opens a temporary file next to path.
func CreateAtomic(path string) (*AtomicFile, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	return &AtomicFile{File: f, path: path}, nil
}

// Path is the final destination.
func (a *AtomicFile) Path() string {
	return a.path
}

// Commit flushes the file to disk and renames it into place.
func (a *AtomicFile) Commit() error {
	if a.done {
		return errors.New("atomic file already finished")
	}
	a.done = true

	tmp := a.File.Name()
	if err := a.File.Sync(); err != nil {
		a.File.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "sync temp file")
	}
	if err := a.File.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmp, a.path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "rename into %s", a.path)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit, so it can
// be deferred.
func (a *AtomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	a.File.Close()
	if err := os.Remove(a.File.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove temp file")
	}
	return nil
}
