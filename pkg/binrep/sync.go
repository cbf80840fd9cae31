// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package binrep

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/binrep/binrep/internal/fileutil"
	"github.com/binrep/binrep/pkg/metadata"
)

// Sync failures.
var (
	ErrNoMatchingVersion = errors.New("no version is matching the requirement")
	// ErrLockHeld reports sync lock contention; acquisition is
	// non-blocking by default.
	ErrLockHeld = fileutil.ErrLocked
)

// SyncStatus is the outcome of a sync.
type SyncStatus int

const (
	// UpToDate: the destination already held the target version.
	UpToDate SyncStatus = iota
	// Updated: the target version was materialized.
	Updated
)

func (s SyncStatus) String() string {
	switch s {
	case UpToDate:
		return "UpToDate"
	case Updated:
		return "Updated"
	default:
		return "Unknown"
	}
}

// SyncResult reports the outcome and the manifest now materialized.
type SyncResult struct {
	Status   SyncStatus
	Artifact *metadata.Artifact
}

// SyncMetadata is the client-side record of the version currently
// materialized in a destination directory.
type SyncMetadata struct {
	LastUpdated string            `toml:"last_updated"`
	Artifact    metadata.Artifact `toml:"artifact"`
}

func syncMetaPath(name, dir string) string {
	return filepath.Join(dir, "."+name+"_sync.sane")
}

func readSyncMeta(name, dir string) (*SyncMetadata, error) {
	path := syncMetaPath(name, dir)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	var meta SyncMetadata
	if err := fileutil.ReadTOMLFile(path, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Sync brings destDir to the greatest published version of name
// matching req. The per-artifact lock file serializes concurrent
// syncers on the same destination; the sync metadata is written last,
// so a crashed sync leaves the previous state plus sweepable orphans.
func (b *Binrep) Sync(ctx context.Context, name string, req *semver.Constraints, destDir string) (*SyncResult, error) {
	if err := fileutil.MkDirs(destDir); err != nil {
		return nil, err
	}
	target, err := b.LastVersion(ctx, name, req)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.Wrapf(ErrNoMatchingVersion, "%s %s", name, req)
	}

	lock, err := fileutil.CreateAndLock(filepath.Join(destDir, "."+name+".sync.lock"))
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	meta, err := readSyncMeta(name, destDir)
	if err != nil {
		return nil, err
	}
	if meta != nil && meta.Artifact.Version != nil && meta.Artifact.Version.Equal(target) {
		log.Printf("%s already at %s", name, target)
		artifact := meta.Artifact
		return &SyncResult{Status: UpToDate, Artifact: &artifact}, nil
	}

	tmpDir, err := os.MkdirTemp(destDir, ".binrep-sync-")
	if err != nil {
		return nil, errors.Wrapf(err, "creating temp dir in %s", destDir)
	}
	defer os.RemoveAll(tmpDir)

	artifact, err := b.repo.Pull(ctx, name, target, tmpDir, true)
	if err != nil {
		return nil, err
	}

	// Sweep the previous version's files. Missing files are fine:
	// partial prior states still converge.
	if meta != nil {
		for _, f := range meta.Artifact.Files {
			if err := os.Remove(filepath.Join(destDir, f.Name)); err != nil && !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "removing stale %s", f.Name)
			}
		}
	}
	for _, f := range artifact.Files {
		if err := fileutil.Move(filepath.Join(tmpDir, f.Name), filepath.Join(destDir, f.Name)); err != nil {
			return nil, err
		}
	}

	newMeta := SyncMetadata{
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Artifact:    *artifact,
	}
	if err := fileutil.WriteTOMLFile(syncMetaPath(name, destDir), &newMeta); err != nil {
		return nil, err
	}
	log.Printf("synced %s to %s", name, artifact.Version)
	return &SyncResult{Status: Updated, Artifact: artifact}, nil
}
