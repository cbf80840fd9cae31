// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package binrep

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/binrep/binrep/internal/fileutil"
	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/metadata"
	"github.com/binrep/binrep/pkg/progress"
)

const testHMACKey = "Ia5m317AYNN9V6Xz8ISm/NqfvHUrTJIN7OxGtWezx9eG/sA/RWT/xP/VwZ8ELaQ3"

func testBinrep(t *testing.T) *Binrep {
	t.Helper()
	cfg := &config.Config{
		Backend: config.Backend{Type: config.BackendFile, Root: t.TempDir()},
		PublishParameters: &config.PublishParameters{
			SignatureMethod: metadata.SignatureHMACSHA384,
			ChecksumMethod:  metadata.ChecksumSHA384,
			HMACSigningKey:  "test",
		},
		HMACKeys: map[string]string{"test": testHMACKey},
	}
	br, err := FromConfig(cfg, progress.Noop{})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	return br
}

func pushFile(t *testing.T, br *Binrep, name, version, filename, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := br.Push(context.Background(), name, semver.MustParse(version), []string{path}); err != nil {
		t.Fatalf("Push(%s %s) error = %v", name, version, err)
	}
}

func mustReq(t *testing.T, s string) *semver.Constraints {
	t.Helper()
	req, err := ParseVersionReq(s)
	if err != nil {
		t.Fatalf("ParseVersionReq(%q) error = %v", s, err)
	}
	return req
}

func TestParseVersionReqAliases(t *testing.T) {
	for _, alias := range []string{"latest", "any", "*"} {
		req := mustReq(t, alias)
		if !req.Check(semver.MustParse("2.0.0")) {
			t.Errorf("%q does not match 2.0.0", alias)
		}
		// Wildcards exclude pre-releases.
		if req.Check(semver.MustParse("1.0.0-alpha1")) {
			t.Errorf("%q matches the pre-release 1.0.0-alpha1", alias)
		}
	}
	if _, err := ParseVersionReq("not a requirement"); err == nil {
		t.Error("ParseVersionReq() accepted garbage")
	}
}

func TestLastVersion(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	pushFile(t, br, "a", "1.0.0", "f", "1")
	pushFile(t, br, "a", "1.2.0", "f", "12")
	pushFile(t, br, "a", "2.0.0", "f", "2")

	last, err := br.LastVersion(ctx, "a", mustReq(t, "~1"))
	if err != nil {
		t.Fatalf("LastVersion() error = %v", err)
	}
	if !last.Equal(semver.MustParse("1.2.0")) {
		t.Errorf("LastVersion(~1) = %s, want 1.2.0", last)
	}
	last, err = br.LastVersion(ctx, "a", mustReq(t, "*"))
	if err != nil {
		t.Fatal(err)
	}
	if !last.Equal(semver.MustParse("2.0.0")) {
		t.Errorf("LastVersion(*) = %s, want 2.0.0", last)
	}
	last, err = br.LastVersion(ctx, "a", mustReq(t, ">=3"))
	if err != nil {
		t.Fatal(err)
	}
	if last != nil {
		t.Errorf("LastVersion(>=3) = %s, want nil", last)
	}
}

func TestListVersionsFiltered(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	pushFile(t, br, "a", "2.0.0", "f", "2")
	pushFile(t, br, "a", "1.0.0", "f", "1")

	versions, err := br.ListVersions(ctx, "a", nil)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 2 || !versions[0].Equal(semver.MustParse("1.0.0")) {
		t.Errorf("ListVersions() = %v, want ascending [1.0.0 2.0.0]", versions)
	}
	versions, err = br.ListVersions(ctx, "a", mustReq(t, "^2"))
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 || !versions[0].Equal(semver.MustParse("2.0.0")) {
		t.Errorf("ListVersions(^2) = %v, want [2.0.0]", versions)
	}
}

func TestListArtifacts(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	pushFile(t, br, "tool-a", "1.0.0", "f", "a")
	pushFile(t, br, "tool-b", "1.0.0", "f", "b")

	artifacts, err := br.ListArtifacts(ctx)
	if err != nil {
		t.Fatalf("ListArtifacts() error = %v", err)
	}
	if !artifacts.Contains("tool-a") || !artifacts.Contains("tool-b") {
		t.Errorf("ListArtifacts() = %v", artifacts.Artifacts)
	}
}

func TestSyncLifecycle(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	dest := t.TempDir()

	pushFile(t, br, "a", "1.0.0", "app", "v1")

	result, err := br.Sync(ctx, "a", mustReq(t, "any"), dest)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Status != Updated || !result.Artifact.Version.Equal(semver.MustParse("1.0.0")) {
		t.Fatalf("Sync() = %s at %s, want Updated at 1.0.0", result.Status, result.Artifact.Version)
	}

	// Idempotent: same repository state, second sync touches nothing.
	result, err = br.Sync(ctx, "a", mustReq(t, "any"), dest)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != UpToDate {
		t.Fatalf("second Sync() = %s, want UpToDate", result.Status)
	}

	pushFile(t, br, "a", "1.2.0", "app", "v12")
	pushFile(t, br, "a", "2.0.0", "app", "v2")

	result, err = br.Sync(ctx, "a", mustReq(t, "*"), dest)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Updated || !result.Artifact.Version.Equal(semver.MustParse("2.0.0")) {
		t.Fatalf("Sync(*) = %s at %s, want Updated at 2.0.0", result.Status, result.Artifact.Version)
	}

	// Downgrade via requirement.
	result, err = br.Sync(ctx, "a", mustReq(t, "~1"), dest)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Updated || !result.Artifact.Version.Equal(semver.MustParse("1.2.0")) {
		t.Fatalf("Sync(~1) = %s at %s, want Updated at 1.2.0", result.Status, result.Artifact.Version)
	}
	result, err = br.Sync(ctx, "a", mustReq(t, "~1"), dest)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != UpToDate {
		t.Fatalf("Sync(~1) again = %s, want UpToDate", result.Status)
	}

	got, err := os.ReadFile(filepath.Join(dest, "app"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v12" {
		t.Errorf("app content = %q, want v12", got)
	}
}

func TestSyncPrerelease(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	dest := t.TempDir()
	pushFile(t, br, "a", "1.0.0-alpha1", "app", "alpha")

	_, err := br.Sync(ctx, "a", mustReq(t, "any"), dest)
	if !errors.Is(err, ErrNoMatchingVersion) {
		t.Fatalf("Sync(any) error = %v, want ErrNoMatchingVersion", err)
	}

	result, err := br.Sync(ctx, "a", mustReq(t, ">=1.0.0-alpha"), dest)
	if err != nil {
		t.Fatalf("Sync(>=1.0.0-alpha) error = %v", err)
	}
	if result.Status != Updated || !result.Artifact.Version.Equal(semver.MustParse("1.0.0-alpha1")) {
		t.Fatalf("Sync() = %s at %s, want Updated at 1.0.0-alpha1", result.Status, result.Artifact.Version)
	}
}

func TestSyncFilePresence(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	dest := t.TempDir()

	pushFile(t, br, "a", "1.0.0", "a-1.zip", "one")
	pushFile(t, br, "a", "2.0.0", "a-2.zip", "two")

	if _, err := br.Sync(ctx, "a", mustReq(t, "1.0.0"), dest); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "a-1.zip")); err != nil {
		t.Errorf("a-1.zip missing after sync to 1.0.0: %v", err)
	}

	// The file set changes across versions: the old file is swept.
	if _, err := br.Sync(ctx, "a", mustReq(t, "2.0.0"), dest); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "a-2.zip")); err != nil {
		t.Errorf("a-2.zip missing after sync to 2.0.0: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "a-1.zip")); !os.IsNotExist(err) {
		t.Errorf("a-1.zip still present after sync to 2.0.0")
	}
}

func TestSyncConvergesAfterManualDelete(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	dest := t.TempDir()
	pushFile(t, br, "a", "1.0.0", "app", "v1")
	if _, err := br.Sync(ctx, "a", mustReq(t, "any"), dest); err != nil {
		t.Fatal(err)
	}
	// Partial prior state: the synced file vanished but the metadata
	// stayed. The next sync of a new version still converges.
	if err := os.Remove(filepath.Join(dest, "app")); err != nil {
		t.Fatal(err)
	}
	pushFile(t, br, "a", "1.1.0", "app", "v11")
	result, err := br.Sync(ctx, "a", mustReq(t, "any"), dest)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Status != Updated {
		t.Fatalf("Sync() = %s, want Updated", result.Status)
	}
	got, err := os.ReadFile(filepath.Join(dest, "app"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v11" {
		t.Errorf("app content = %q, want v11", got)
	}
}

func TestSyncNoTempLeftovers(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	dest := t.TempDir()
	pushFile(t, br, "a", "1.0.0", "app", "v1")
	if _, err := br.Sync(ctx, "a", mustReq(t, "any"), dest); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		switch e.Name() {
		case "app", ".a_sync.sane", ".a.sync.lock":
		default:
			t.Errorf("unexpected entry %q in destination", e.Name())
		}
	}
}

func TestSyncLockHeld(t *testing.T) {
	ctx := context.Background()
	br := testBinrep(t)
	dest := t.TempDir()
	pushFile(t, br, "a", "1.0.0", "app", "v1")

	lock, err := fileutil.CreateAndLock(filepath.Join(dest, ".a.sync.lock"))
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = br.Sync(ctx, "a", mustReq(t, "any"), dest)
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("Sync() error = %v, want ErrLockHeld", err)
	}
}
