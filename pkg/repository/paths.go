// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Backend namespace. Callers depend on the exact shape:
//
//	artifacts.sane
//	<name>/versions.sane
//	<name>/<version>/artifact.sane
//	<name>/<version>/<file-basename>
const artifactsFile = "artifacts.sane"

func versionsPath(name string) string {
	return name + "/versions.sane"
}

func manifestPath(name string, v *semver.Version) string {
	return name + "/" + v.String() + "/artifact.sane"
}

func artifactFilePath(name string, v *semver.Version, filename string) string {
	return name + "/" + v.String() + "/" + filename
}

var artifactNameRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateArtifactName(name string) error {
	if !artifactNameRE.MatchString(name) {
		return errors.Wrap(ErrNameInvalid, name)
	}
	return nil
}
