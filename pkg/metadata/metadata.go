// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata defines the documents persisted on the backend: the
// artifact index, the per-artifact version list, and the per-version
// artifact manifest.
package metadata

import (
	"crypto"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// ChecksumMethod names the digest algorithm recorded for a file.
type ChecksumMethod string

const (
	ChecksumSHA256 ChecksumMethod = "SHA256"
	ChecksumSHA384 ChecksumMethod = "SHA384"
	ChecksumSHA512 ChecksumMethod = "SHA512"
)

// Hash returns the crypto.Hash behind the method.
func (m ChecksumMethod) Hash() (crypto.Hash, error) {
	switch m {
	case ChecksumSHA256:
		return crypto.SHA256, nil
	case ChecksumSHA384:
		return crypto.SHA384, nil
	case ChecksumSHA512:
		return crypto.SHA512, nil
	default:
		return 0, errors.Errorf("unknown checksum method %q", string(m))
	}
}

// UnmarshalText validates the method on parse.
func (m *ChecksumMethod) UnmarshalText(text []byte) error {
	v := ChecksumMethod(text)
	if _, err := v.Hash(); err != nil {
		return err
	}
	*m = v
	return nil
}

// SignatureMethod names the scheme of a manifest signature.
type SignatureMethod string

const (
	SignatureHMACSHA256 SignatureMethod = "HMAC_SHA256"
	SignatureHMACSHA384 SignatureMethod = "HMAC_SHA384"
	SignatureHMACSHA512 SignatureMethod = "HMAC_SHA512"
	SignatureEd25519    SignatureMethod = "ED25519"
)

// IsHMAC reports whether the method is one of the HMAC-SHA2 schemes.
func (m SignatureMethod) IsHMAC() bool {
	switch m {
	case SignatureHMACSHA256, SignatureHMACSHA384, SignatureHMACSHA512:
		return true
	}
	return false
}

// Hash returns the digest behind an HMAC method.
func (m SignatureMethod) Hash() (crypto.Hash, error) {
	switch m {
	case SignatureHMACSHA256:
		return crypto.SHA256, nil
	case SignatureHMACSHA384:
		return crypto.SHA384, nil
	case SignatureHMACSHA512:
		return crypto.SHA512, nil
	default:
		return 0, errors.Errorf("signature method %q has no digest", string(m))
	}
}

func (m *SignatureMethod) UnmarshalText(text []byte) error {
	v := SignatureMethod(text)
	if !v.IsHMAC() && v != SignatureEd25519 {
		return errors.Errorf("unknown signature method %q", string(v))
	}
	*m = v
	return nil
}

// Artifacts is the root index of the repository: the set of artifact
// names that have ever been published.
type Artifacts struct {
	Artifacts []string `toml:"artifacts"`
}

// Contains reports whether name is registered.
func (a *Artifacts) Contains(name string) bool {
	for _, n := range a.Artifacts {
		if n == name {
			return true
		}
	}
	return false
}

// Versions is the ordered list of published versions of one artifact.
type Versions struct {
	Versions []*semver.Version `toml:"versions"`
}

// Contains reports whether v has been published.
func (vs *Versions) Contains(v *semver.Version) bool {
	for _, have := range vs.Versions {
		if have.Equal(v) {
			return true
		}
	}
	return false
}

// File describes one published file of an artifact version.
type File struct {
	Name           string         `toml:"name"`
	Checksum       string         `toml:"checksum"`
	ChecksumMethod ChecksumMethod `toml:"checksum_method"`
	UnixMode       *uint32        `toml:"unix_mode,omitempty"`
}

// Signature is the manifest signature block.
type Signature struct {
	KeyID           string          `toml:"key_id"`
	Signature       string          `toml:"signature"`
	SignatureMethod SignatureMethod `toml:"signature_method"`
}

// Artifact is the immutable manifest of one published version.
type Artifact struct {
	Version   *semver.Version `toml:"version"`
	Signature Signature       `toml:"signature"`
	Files     []File          `toml:"files"`
}

// SignedMessage builds the byte string covered by the manifest
// signature: the concatenation of every file name and checksum, in
// manifest order.
func (a *Artifact) SignedMessage() []byte {
	var b strings.Builder
	for _, f := range a.Files {
		b.WriteString(f.Name)
		b.WriteString(f.Checksum)
	}
	return []byte(b.String())
}

func (a *Artifact) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s", a.Version, a.Signature.Signature)
	for _, f := range a.Files {
		fmt.Fprintf(&b, "\n  %s - %s", f.Name, f.Checksum)
		if f.UnixMode != nil {
			fmt.Fprintf(&b, " - %o", *f.UnixMode)
		}
	}
	return b.String()
}
