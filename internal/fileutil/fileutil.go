// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package fileutil collects the filesystem helpers shared by the
// repository and the sync engine.
package fileutil

import (
	stderrors "errors"
	"io"
	"log"
	"os"
	"syscall"

	"github.com/gofrs/flock"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

func isCrossDevice(err error) bool {
	return stderrors.Is(err, syscall.EXDEV)
}

// ErrLocked indicates an exclusive lock file is held by another process.
var ErrLocked = errors.New("lock file is held by another process")

// LockFile is an exclusively locked file. The lock is advisory; every
// cooperating process must acquire it through CreateAndLock.
type LockFile struct {
	fl *flock.Flock
}

// CreateAndLock creates path if needed and takes an exclusive
// non-blocking lock on it. Contention yields ErrLocked.
func CreateAndLock(path string) (*LockFile, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "locking %s", path)
	}
	if !locked {
		return nil, errors.Wrapf(ErrLocked, "locking %s", path)
	}
	return &LockFile{fl: fl}, nil
}

// Release unlocks and removes the lock file.
func (l *LockFile) Release() {
	path := l.fl.Path()
	_ = l.fl.Unlock()
	_ = os.Remove(path)
}

// MkDirs creates dir and its parents. An existing non-directory at dir
// is an error, an existing directory is not.
func MkDirs(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating directory %s", dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "stat %s", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Move renames src to dst, falling back to a copy when the rename fails
// because src and dst live on different filesystems.
func Move(src, dst string) error {
	log.Printf("mv %s to %s", src, dst)
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return errors.Wrapf(err, "renaming %s to %s", src, dst)
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return errors.Wrapf(os.Remove(src), "removing %s after copy", src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening %s", src)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", src)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "creating %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copying %s to %s", src, dst)
	}
	return errors.Wrapf(out.Close(), "closing %s", dst)
}

// ReadTOMLFile decodes the TOML document at path into out.
func ReadTOMLFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

// WriteTOMLFile encodes v as TOML into the file at path.
func WriteTOMLFile(path string, v any) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
