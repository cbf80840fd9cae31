// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package repository is the low-level API to the artifact store: the
// namespace layout, the metadata documents, and publish/fetch with
// mandatory verification.
package repository

import (
	"context"
	"encoding/base64"
	"log"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/binrep/binrep/internal/fileutil"
	"github.com/binrep/binrep/pkg/backend"
	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/crypto"
	"github.com/binrep/binrep/pkg/metadata"
	"github.com/binrep/binrep/pkg/progress"
)

// Matchable failures. All are deterministic and never retried.
var (
	ErrNameInvalid                  = errors.New("wrong artifact naming, only alphanumeric characters and -_. are allowed")
	ErrVersionAlreadyExists         = errors.New("artifact version already exists")
	ErrWrongSignature               = errors.New("wrong artifact signature")
	ErrWrongFileChecksum            = errors.New("wrong file checksum")
	ErrDestinationFileAlreadyExists = errors.New("destination file already exists")
)

// Repository couples a backend with a configuration. All operations
// are pure functions of that pair plus their inputs.
type Repository struct {
	backend backend.Backend
	cfg     *config.Config
}

// New constructs the Repository with the backend selected by cfg.
func New(cfg *config.Config, rep progress.Reporter) (*Repository, error) {
	be, err := backend.New(cfg, rep)
	if err != nil {
		return nil, err
	}
	return &Repository{backend: be, cfg: cfg}, nil
}

// NewWithBackend wires an explicit backend, mainly for tests.
func NewWithBackend(cfg *config.Config, be backend.Backend) *Repository {
	return &Repository{backend: be, cfg: cfg}
}

func readDoc[T any](ctx context.Context, r *Repository, path string) (*T, error) {
	log.Printf("reading %s", path)
	text, err := r.backend.ReadText(ctx, path)
	if err != nil {
		return nil, err
	}
	doc := new(T)
	if err := toml.Unmarshal([]byte(text), doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return doc, nil
}

func (r *Repository) writeDoc(ctx context.Context, path string, doc any) error {
	log.Printf("writing %s", path)
	data, err := toml.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	return r.backend.WriteText(ctx, path, string(data))
}

// ListArtifacts reads the root index. A backend not-found is surfaced
// as-is so callers can distinguish "uninitialized" from "broken".
func (r *Repository) ListArtifacts(ctx context.Context) (*metadata.Artifacts, error) {
	return readDoc[metadata.Artifacts](ctx, r, artifactsFile)
}

// ListVersions reads the unfiltered version list of an artifact.
func (r *Repository) ListVersions(ctx context.Context, name string) (*metadata.Versions, error) {
	if err := validateArtifactName(name); err != nil {
		return nil, err
	}
	return readDoc[metadata.Versions](ctx, r, versionsPath(name))
}

// Get fetches and verifies the manifest of one version. It never
// returns an unverified manifest.
func (r *Repository) Get(ctx context.Context, name string, version *semver.Version) (*metadata.Artifact, error) {
	if err := validateArtifactName(name); err != nil {
		return nil, err
	}
	artifact, err := readDoc[metadata.Artifact](ctx, r, manifestPath(name, version))
	if err != nil {
		return nil, err
	}
	verifier, err := crypto.NewVerifier(r.cfg, artifact.Signature.SignatureMethod, artifact.Signature.KeyID)
	if err != nil {
		return nil, err
	}
	sig, err := base64.StdEncoding.DecodeString(artifact.Signature.Signature)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding signature of %s %s", name, version)
	}
	if !verifier.Verify(artifact.SignedMessage(), sig) {
		return nil, errors.Wrapf(ErrWrongSignature, "%s %s", name, version)
	}
	return artifact, nil
}

// init ensures the root index exists and returns it.
func (r *Repository) init(ctx context.Context) (*metadata.Artifacts, error) {
	artifacts, err := r.ListArtifacts(ctx)
	if err == nil {
		return artifacts, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, err
	}
	artifacts = &metadata.Artifacts{Artifacts: []string{}}
	if err := r.writeDoc(ctx, artifactsFile, artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// initArtifact lazily creates the index entry and version list of a
// new artifact. Only a backend not-found triggers creation; any other
// failure aborts so a network error cannot truncate an existing list.
func (r *Repository) initArtifact(ctx context.Context, name string) (*metadata.Versions, error) {
	if err := validateArtifactName(name); err != nil {
		return nil, err
	}
	versions, err := r.ListVersions(ctx, name)
	if err == nil {
		return versions, nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, err
	}
	log.Printf("initializing new artifact %s", name)
	artifacts, err := r.init(ctx)
	if err != nil {
		return nil, err
	}
	versions = &metadata.Versions{Versions: []*semver.Version{}}
	if err := r.writeDoc(ctx, versionsPath(name), versions); err != nil {
		return nil, err
	}
	if !artifacts.Contains(name) {
		artifacts.Artifacts = append(artifacts.Artifacts, name)
		if err := r.writeDoc(ctx, artifactsFile, artifacts); err != nil {
			return nil, err
		}
	}
	return versions, nil
}

// Push publishes the local files as one immutable version.
//
// Payloads are uploaded before the manifest and the manifest before
// the version list: a crash in between leaves orphan blobs or a dark
// manifest, never a discoverable corrupted version. Concurrent
// publishers of different versions race on the list rewrite with
// last-writer-wins; there is no cross-object transaction.
func (r *Repository) Push(ctx context.Context, name string, version *semver.Version, files []string) (*metadata.Artifact, error) {
	versions, err := r.initArtifact(ctx, name)
	if err != nil {
		return nil, err
	}
	if versions.Contains(version) {
		return nil, errors.Wrapf(ErrVersionAlreadyExists, "%s %s", name, version)
	}

	algs, err := crypto.NewPublishAlgorithms(r.cfg)
	if err != nil {
		return nil, err
	}
	hash, err := algs.ChecksumMethod.Hash()
	if err != nil {
		return nil, err
	}

	entries := make([]metadata.File, 0, len(files))
	for _, file := range files {
		sum, err := crypto.DigestFile(file, hash)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(file)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", file)
		}
		mode := uint32(info.Mode().Perm()) & 0o777
		entries = append(entries, metadata.File{
			Name:           filepath.Base(file),
			Checksum:       base64.StdEncoding.EncodeToString(sum),
			ChecksumMethod: algs.ChecksumMethod,
			UnixMode:       &mode,
		})
	}

	artifact := &metadata.Artifact{Version: version, Files: entries}
	sig, err := algs.Signer.Sign(artifact.SignedMessage())
	if err != nil {
		return nil, errors.Wrapf(err, "signing %s %s", name, version)
	}
	artifact.Signature = metadata.Signature{
		KeyID:           algs.Signer.KeyID(),
		SignatureMethod: algs.Signer.Method(),
		Signature:       base64.StdEncoding.EncodeToString(sig),
	}

	for i, file := range files {
		if err := r.backend.Upload(ctx, file, artifactFilePath(name, version, entries[i].Name)); err != nil {
			return nil, err
		}
	}
	if err := r.writeDoc(ctx, manifestPath(name, version), artifact); err != nil {
		return nil, err
	}
	versions.Versions = append(versions.Versions, version)
	if err := r.writeDoc(ctx, versionsPath(name), versions); err != nil {
		return nil, err
	}
	return artifact, nil
}

// Pull materializes one version into destDir: download to a temporary
// directory inside destDir, verify every checksum, then rename into
// place. No partial file ever lands in destDir.
func (r *Repository) Pull(ctx context.Context, name string, version *semver.Version, destDir string, overwrite bool) (*metadata.Artifact, error) {
	artifact, err := r.Get(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if err := fileutil.MkDirs(destDir); err != nil {
		return nil, err
	}
	tmpDir, err := os.MkdirTemp(destDir, ".binrep-pull-")
	if err != nil {
		return nil, errors.Wrapf(err, "creating temp dir in %s", destDir)
	}
	defer os.RemoveAll(tmpDir)

	tmpPaths := make([]string, 0, len(artifact.Files))
	for _, f := range artifact.Files {
		tmpPath, err := r.pullFile(ctx, name, version, &f, tmpDir)
		if err != nil {
			return nil, err
		}
		tmpPaths = append(tmpPaths, tmpPath)
	}

	// All files are on local disk with verified checksums; check for
	// collisions before any of them moves.
	destPaths := make([]string, 0, len(artifact.Files))
	for _, f := range artifact.Files {
		destPath := filepath.Join(destDir, f.Name)
		if _, err := os.Stat(destPath); err == nil {
			if !overwrite {
				return nil, errors.Wrap(ErrDestinationFileAlreadyExists, destPath)
			}
			if err := os.Remove(destPath); err != nil {
				return nil, errors.Wrapf(err, "removing %s", destPath)
			}
		}
		destPaths = append(destPaths, destPath)
	}
	for i, src := range tmpPaths {
		if err := fileutil.Move(src, destPaths[i]); err != nil {
			return nil, err
		}
	}
	return artifact, nil
}

func (r *Repository) pullFile(ctx context.Context, name string, version *semver.Version, f *metadata.File, tmpDir string) (string, error) {
	dest := filepath.Join(tmpDir, f.Name)
	log.Printf("pulling %s to %s", f.Name, dest)
	if err := r.backend.Download(ctx, artifactFilePath(name, version, f.Name), dest); err != nil {
		return "", err
	}
	if f.UnixMode != nil {
		if err := os.Chmod(dest, os.FileMode(*f.UnixMode&0o777)); err != nil {
			return "", errors.Wrapf(err, "chmod %s", dest)
		}
	}
	hash, err := f.ChecksumMethod.Hash()
	if err != nil {
		return "", err
	}
	sum, err := crypto.DigestFile(dest, hash)
	if err != nil {
		return "", err
	}
	if base64.StdEncoding.EncodeToString(sum) != f.Checksum {
		return "", errors.Wrap(ErrWrongFileChecksum, f.Name)
	}
	return dest, nil
}
