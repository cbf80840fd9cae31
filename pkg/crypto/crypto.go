// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package crypto implements the content digesting and the
// signing/verification pipeline of the repository.
package crypto

import (
	stdcrypto "crypto"
	"os"

	"github.com/binrep/binrep/internal/hashext"
	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/metadata"
	"github.com/pkg/errors"
)

// Signer produces manifest signatures under a named key.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	Method() metadata.SignatureMethod
	KeyID() string
}

// Verifier checks a manifest signature. Verification is a pure boolean;
// failures carry no detail by design of the pipeline.
type Verifier interface {
	Verify(msg, signature []byte) bool
}

// DigestFile streams the file at path through the named hash and
// returns the raw sum.
func DigestFile(path string, algo stdcrypto.Hash) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	sum, err := hashext.Digest(algo, f)
	return sum, errors.Wrapf(err, "digesting %s", path)
}

// PublishAlgorithms couples the configured signer with the configured
// checksum method.
type PublishAlgorithms struct {
	Signer         Signer
	ChecksumMethod metadata.ChecksumMethod
}

// NewPublishAlgorithms resolves the publish side of cfg. Reader-only
// configurations yield config.ErrNoPublishParameters.
func NewPublishAlgorithms(cfg *config.Config) (*PublishAlgorithms, error) {
	params := cfg.PublishParameters
	if params == nil {
		return nil, config.ErrNoPublishParameters
	}
	if _, err := params.ChecksumMethod.Hash(); err != nil {
		return nil, err
	}
	signer, err := NewSigner(cfg)
	if err != nil {
		return nil, err
	}
	return &PublishAlgorithms{Signer: signer, ChecksumMethod: params.ChecksumMethod}, nil
}

// NewSigner builds the signer named by cfg's publish parameters.
func NewSigner(cfg *config.Config) (Signer, error) {
	params := cfg.PublishParameters
	if params == nil {
		return nil, config.ErrNoPublishParameters
	}
	switch {
	case params.SignatureMethod.IsHMAC():
		if params.HMACSigningKey == "" {
			return nil, errors.Wrap(config.ErrKeyNotConfigured, "no hmac signing key configured")
		}
		return newHMACSigner(cfg, params.SignatureMethod, params.HMACSigningKey)
	case params.SignatureMethod == metadata.SignatureEd25519:
		if params.Ed25519SigningKey == "" {
			return nil, errors.Wrap(config.ErrKeyNotConfigured, "no ed25519 signing key configured")
		}
		return newEd25519Signer(cfg, params.Ed25519SigningKey)
	default:
		return nil, errors.Errorf("unknown signature method %q", params.SignatureMethod)
	}
}

// NewVerifier builds a verifier for the given method under the key
// named by keyID. Key selection happens per manifest, so a reader can
// accept artifacts signed under several rotating keys.
func NewVerifier(cfg *config.Config, method metadata.SignatureMethod, keyID string) (Verifier, error) {
	switch {
	case method.IsHMAC():
		return newHMACVerifier(cfg, method, keyID)
	case method == metadata.SignatureEd25519:
		return newEd25519Verifier(cfg, keyID)
	default:
		return nil, errors.Errorf("unknown signature method %q", method)
	}
}
