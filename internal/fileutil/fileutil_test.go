// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestMkDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := MkDirs(dir); err != nil {
		t.Fatalf("MkDirs() error = %v", err)
	}
	// Idempotent on an existing directory.
	if err := MkDirs(dir); err != nil {
		t.Fatalf("second MkDirs() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("Stat() = %v, %v, want a directory", info, err)
	}
}

func TestMkDirsOnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := MkDirs(path); err == nil {
		t.Error("MkDirs() on an existing file should fail")
	}
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("payload"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := Move(src, dst); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still present after Move()")
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("moved content = %q", got)
	}
}

func TestLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	lock, err := CreateAndLock(path)
	if err != nil {
		t.Fatalf("CreateAndLock() error = %v", err)
	}
	if _, err := CreateAndLock(path); !errors.Is(err, ErrLocked) {
		t.Errorf("second CreateAndLock() error = %v, want ErrLocked", err)
	}
	lock.Release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still present after Release()")
	}
	relock, err := CreateAndLock(path)
	if err != nil {
		t.Fatalf("CreateAndLock() after release error = %v", err)
	}
	relock.Release()
}

func TestTOMLFileRoundTrip(t *testing.T) {
	type doc struct {
		Name  string `toml:"name"`
		Count int    `toml:"count"`
	}
	path := filepath.Join(t.TempDir(), "doc.sane")
	if err := WriteTOMLFile(path, &doc{Name: "a", Count: 3}); err != nil {
		t.Fatalf("WriteTOMLFile() error = %v", err)
	}
	var got doc
	if err := ReadTOMLFile(path, &got); err != nil {
		t.Fatalf("ReadTOMLFile() error = %v", err)
	}
	if got.Name != "a" || got.Count != 3 {
		t.Errorf("round trip = %+v", got)
	}
}
