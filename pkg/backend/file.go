// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"

	"github.com/binrep/binrep/pkg/progress"
)

// FileBackend stores blobs under a root directory; the remote key
// "a/b/c" maps to "<root>/a/b/c".
type FileBackend struct {
	fs  billy.Filesystem
	rep progress.Reporter
}

// NewFileBackend creates a backend rooted at root.
func NewFileBackend(root string, rep progress.Reporter) *FileBackend {
	return &FileBackend{fs: osfs.New(root), rep: rep}
}

var _ Backend = &FileBackend{}

func mapNotExist(err error) error {
	if stderrors.Is(err, fs.ErrNotExist) {
		return stderrors.Join(err, ErrNotFound)
	}
	return err
}

func (b *FileBackend) ReadText(ctx context.Context, p string) (string, error) {
	key := cleanKey(p)
	f, err := b.fs.Open(key)
	if err != nil {
		return "", errors.Wrapf(mapNotExist(err), "reading %s", key)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", key)
	}
	return string(data), nil
}

// WriteText writes to a temporary file next to the target and renames
// it into place, so a crashed write never exposes a partial document.
func (b *FileBackend) WriteText(ctx context.Context, p string, data string) error {
	key := cleanKey(p)
	if dir := path.Dir(key); dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating parents of %s", key)
		}
	}
	tmp, err := b.fs.TempFile(path.Dir(key), ".write-")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", key)
	}
	if _, err := io.WriteString(tmp, data); err != nil {
		tmp.Close()
		b.fs.Remove(tmp.Name())
		return errors.Wrapf(err, "writing %s", key)
	}
	if err := tmp.Close(); err != nil {
		b.fs.Remove(tmp.Name())
		return errors.Wrapf(err, "closing %s", key)
	}
	if err := b.fs.Rename(tmp.Name(), key); err != nil {
		b.fs.Remove(tmp.Name())
		return errors.Wrapf(err, "renaming %s into place", key)
	}
	return nil
}

func (b *FileBackend) Upload(ctx context.Context, local string, remote string) error {
	key := cleanKey(remote)
	in, err := os.Open(local)
	if err != nil {
		return errors.Wrapf(err, "opening %s", local)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", local)
	}
	if dir := path.Dir(key); dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating parents of %s", key)
		}
	}
	out, err := b.fs.Create(key)
	if err != nil {
		return errors.Wrapf(err, "creating %s", key)
	}
	bar := b.rep.NewBar(path.Base(key), info.Size())
	defer bar.Finish()
	if _, err := io.Copy(out, bar.ProxyReader(in)); err != nil {
		out.Close()
		return errors.Wrapf(err, "uploading %s", key)
	}
	return errors.Wrapf(out.Close(), "closing %s", key)
}

func (b *FileBackend) Download(ctx context.Context, remote string, local string) error {
	key := cleanKey(remote)
	in, err := b.fs.Open(key)
	if err != nil {
		return errors.Wrapf(mapNotExist(err), "downloading %s", key)
	}
	defer in.Close()
	info, err := b.fs.Stat(key)
	if err != nil {
		return errors.Wrapf(err, "stat %s", key)
	}
	out, err := os.Create(local)
	if err != nil {
		return errors.Wrapf(err, "creating %s", local)
	}
	bar := b.rep.NewBar(path.Base(key), info.Size())
	defer bar.Finish()
	if _, err := io.Copy(out, bar.ProxyReader(in)); err != nil {
		out.Close()
		return errors.Wrapf(err, "downloading %s", key)
	}
	return errors.Wrapf(out.Close(), "closing %s", local)
}
