// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"

	"github.com/binrep/binrep/internal/fileutil"
	"github.com/pkg/errors"
)

// ErrNoConfigFile indicates that no configuration document was found in
// any of the search locations.
var ErrNoConfigFile = errors.New("no config file provided nor found in default locations")

// Resolve decodes the named configuration document into out. An
// explicit path wins; otherwise ~/.binrep/<name> then /etc/binrep/<name>
// are probed.
func Resolve(explicit string, name string, out any) error {
	if explicit != "" {
		return fileutil.ReadTOMLFile(explicit, out)
	}
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".binrep", name))
	}
	candidates = append(candidates, filepath.Join("/etc/binrep", name))

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return fileutil.ReadTOMLFile(path, out)
	}
	return errors.Wrap(ErrNoConfigFile, name)
}
