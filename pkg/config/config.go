// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package config models the binrep configuration file and its
// resolution from the default search paths.
package config

import (
	"github.com/binrep/binrep/internal/fileutil"
	"github.com/binrep/binrep/pkg/metadata"
	"github.com/pkg/errors"
)

// Matchable configuration failures. Factories in pkg/crypto wrap these
// with the offending key id.
var (
	ErrNoPublishParameters = errors.New("no publish parameters configured")
	ErrKeyNotConfigured    = errors.New("key not configured")
	ErrKeyMalformed        = errors.New("malformed key material")
	ErrKeyWrongLength      = errors.New("key has the wrong length")
)

// BackendType selects the storage plane.
type BackendType string

const (
	BackendFile BackendType = "file"
	BackendS3   BackendType = "s3"
)

// DefaultRequestTimeoutSecs bounds each object-store request when the
// configuration does not say otherwise.
const DefaultRequestTimeoutSecs = 120

// Backend holds the storage plane settings. Root applies to the file
// backend; the rest to S3.
type Backend struct {
	Type               BackendType `toml:"type"`
	Root               string      `toml:"root,omitempty"`
	Bucket             string      `toml:"bucket,omitempty"`
	Region             string      `toml:"region,omitempty"`
	Profile            string      `toml:"profile,omitempty"`
	RequestTimeoutSecs *uint64     `toml:"request_timeout_secs,omitempty"`
}

// PublishParameters configures the publisher side. Readers do not need
// it; only Push fails on its absence.
type PublishParameters struct {
	SignatureMethod   metadata.SignatureMethod `toml:"signature_method"`
	ChecksumMethod    metadata.ChecksumMethod  `toml:"checksum_method"`
	HMACSigningKey    string                   `toml:"hmac_signing_key,omitempty"`
	Ed25519SigningKey string                   `toml:"ed25519_signing_key,omitempty"`
}

// Ed25519Key is a named Ed25519 key entry. A PKCS8 entry can sign and
// verify; a PublicKey entry can only verify.
type Ed25519Key struct {
	PKCS8     string `toml:"pkcs8,omitempty"`
	PublicKey string `toml:"public_key,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	Backend           Backend               `toml:"backend"`
	PublishParameters *PublishParameters    `toml:"publish_parameters,omitempty"`
	HMACKeys          map[string]string     `toml:"hmac_keys,omitempty"`
	Ed25519Keys       map[string]Ed25519Key `toml:"ed25519_keys,omitempty"`
}

// ReadFromFile loads a Config from the TOML document at path.
func ReadFromFile(path string) (*Config, error) {
	var cfg Config
	if err := fileutil.ReadTOMLFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
