// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package binrep is the high-level API: configuration resolution, the
// repository facade, and the sync engine the CLIs drive.
package binrep

import (
	"context"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/metadata"
	"github.com/binrep/binrep/pkg/progress"
	"github.com/binrep/binrep/pkg/repository"
)

// ConfigName is the file name probed in the default search locations.
const ConfigName = "config.sane"

// Binrep wraps a Repository with requirement-aware operations.
type Binrep struct {
	repo *repository.Repository
}

// New resolves the configuration (explicit path, then ~/.binrep,
// then /etc/binrep) and builds the facade.
func New(configPath string, rep progress.Reporter) (*Binrep, error) {
	var cfg config.Config
	if err := config.Resolve(configPath, ConfigName, &cfg); err != nil {
		return nil, err
	}
	return FromConfig(&cfg, rep)
}

// FromConfig builds the facade from an already-loaded configuration.
func FromConfig(cfg *config.Config, rep progress.Reporter) (*Binrep, error) {
	repo, err := repository.New(cfg, rep)
	if err != nil {
		return nil, err
	}
	return &Binrep{repo: repo}, nil
}

// ParseVersionReq parses a requirement expression. The tokens "latest"
// and "any" alias "*". Wildcards match only non-pre-release versions
// unless the requirement itself names a pre-release.
func ParseVersionReq(input string) (*semver.Constraints, error) {
	if input == "latest" || input == "any" {
		input = "*"
	}
	c, err := semver.NewConstraint(input)
	return c, errors.Wrapf(err, "parsing version requirement %q", input)
}

// ListArtifacts returns the root index.
func (b *Binrep) ListArtifacts(ctx context.Context) (*metadata.Artifacts, error) {
	return b.repo.ListArtifacts(ctx)
}

// ListVersions returns the published versions matching req, sorted
// ascending. A nil req matches everything.
func (b *Binrep) ListVersions(ctx context.Context, name string, req *semver.Constraints) ([]*semver.Version, error) {
	versions, err := b.repo.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	var matching []*semver.Version
	for _, v := range versions.Versions {
		if req == nil || req.Check(v) {
			matching = append(matching, v)
		}
	}
	sort.Sort(semver.Collection(matching))
	return matching, nil
}

// LastVersion returns the greatest version matching req, or nil when
// nothing matches.
func (b *Binrep) LastVersion(ctx context.Context, name string, req *semver.Constraints) (*semver.Version, error) {
	matching, err := b.ListVersions(ctx, name, req)
	if err != nil {
		return nil, err
	}
	if len(matching) == 0 {
		return nil, nil
	}
	return matching[len(matching)-1], nil
}

// Artifact fetches the verified manifest of one version.
func (b *Binrep) Artifact(ctx context.Context, name string, version *semver.Version) (*metadata.Artifact, error) {
	return b.repo.Get(ctx, name, version)
}

// Push publishes files as a new version.
func (b *Binrep) Push(ctx context.Context, name string, version *semver.Version, files []string) (*metadata.Artifact, error) {
	return b.repo.Push(ctx, name, version, files)
}

// Pull materializes one version into destDir.
func (b *Binrep) Pull(ctx context.Context, name string, version *semver.Version, destDir string, overwrite bool) (*metadata.Artifact, error) {
	return b.repo.Pull(ctx, name, version, destDir, overwrite)
}
