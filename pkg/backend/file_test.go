// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/progress"
)

func newTestBackend(t *testing.T) (*FileBackend, string) {
	t.Helper()
	root := t.TempDir()
	return NewFileBackend(root, progress.Noop{}), root
}

func TestWriteReadText(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	if err := b.WriteText(ctx, "foo/bar/some.txt", "This is some data"); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	got, err := b.ReadText(ctx, "foo/bar/some.txt")
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if got != "This is some data" {
		t.Errorf("ReadText() = %q", got)
	}
}

func TestPathHygiene(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	if err := b.WriteText(ctx, "some/file.txt", "data"); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	// Leading slashes, doubled slashes and "." segments all address
	// the same object.
	for _, key := range []string{"some/file.txt", "/some/file.txt", "some//file.txt", "./some/file.txt", "//some/file.txt"} {
		got, err := b.ReadText(ctx, key)
		if err != nil {
			t.Fatalf("ReadText(%q) error = %v", key, err)
		}
		if got != "data" {
			t.Errorf("ReadText(%q) = %q, want %q", key, got, "data")
		}
	}
}

func TestReadTextNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.ReadText(context.Background(), "missing.txt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadText() error = %v, want ErrNotFound", err)
	}
}

func TestWriteTextLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	b, root := newTestBackend(t)
	if err := b.WriteText(ctx, "doc.txt", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteText(ctx, "doc.txt", "v2"); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.txt" {
		t.Errorf("unexpected entries in root: %v", entries)
	}
	got, err := b.ReadText(ctx, "doc.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v2" {
		t.Errorf("ReadText() = %q, want v2", got)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBackend(t)
	local := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(local, []byte("hello world"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := b.Upload(ctx, local, "a/1.0.0/payload.bin"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := b.Download(ctx, "a/1.0.0/payload.bin", dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Errorf("downloaded %q, want %q", got, "hello world")
	}
}

func TestDownloadNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	err := b.Download(context.Background(), "a/1.0.0/none.bin", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
}

func TestNewDispatch(t *testing.T) {
	if _, err := New(&config.Config{Backend: config.Backend{Type: config.BackendFile}}, progress.Noop{}); err == nil {
		t.Error("New() without a root should fail")
	}
	if _, err := New(&config.Config{Backend: config.Backend{Type: "ftp"}}, progress.Noop{}); err == nil {
		t.Error("New() with an unknown type should fail")
	}
	be, err := New(&config.Config{Backend: config.Backend{Type: config.BackendFile, Root: t.TempDir()}}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := be.(*FileBackend); !ok {
		t.Errorf("New() = %T, want *FileBackend", be)
	}
}

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"a/b/c":    "a/b/c",
		"/a/b/c":   "a/b/c",
		"a//b/c":   "a/b/c",
		"./a/b/c":  "a/b/c",
		"//a//b//": "a/b",
	}
	for in, want := range cases {
		if got := cleanKey(in); got != want {
			t.Errorf("cleanKey(%q) = %q, want %q", in, got, want)
		}
	}
}
