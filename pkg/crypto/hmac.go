// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/hmac"
	"encoding/base64"

	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/metadata"
	"github.com/pkg/errors"
)

// hmacSignature signs and verifies with HMAC-SHA2. The same key
// material serves both directions.
type hmacSignature struct {
	method metadata.SignatureMethod
	key    []byte
	keyID  string
}

func hmacKeyBytes(cfg *config.Config, method metadata.SignatureMethod, keyID string) ([]byte, error) {
	hash, err := method.Hash()
	if err != nil {
		return nil, err
	}
	material, ok := cfg.HMACKeys[keyID]
	if !ok {
		return nil, errors.Wrapf(config.ErrKeyNotConfigured, "hmac key %q", keyID)
	}
	key, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		return nil, errors.Wrapf(config.ErrKeyMalformed, "hmac key %q: %v", keyID, err)
	}
	// An HMAC key is exactly as long as the digest it drives.
	if len(key) != hash.Size() {
		return nil, errors.Wrapf(config.ErrKeyWrongLength, "hmac key %q: got %d bytes, want %d", keyID, len(key), hash.Size())
	}
	return key, nil
}

func newHMACSigner(cfg *config.Config, method metadata.SignatureMethod, keyID string) (*hmacSignature, error) {
	key, err := hmacKeyBytes(cfg, method, keyID)
	if err != nil {
		return nil, err
	}
	return &hmacSignature{method: method, key: key, keyID: keyID}, nil
}

func newHMACVerifier(cfg *config.Config, method metadata.SignatureMethod, keyID string) (*hmacSignature, error) {
	return newHMACSigner(cfg, method, keyID)
}

func (s *hmacSignature) Sign(msg []byte) ([]byte, error) {
	hash, err := s.method.Hash()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(hash.New, s.key)
	mac.Write(msg)
	return mac.Sum(nil), nil
}

func (s *hmacSignature) Verify(msg, signature []byte) bool {
	computed, err := s.Sign(msg)
	if err != nil {
		return false
	}
	return hmac.Equal(computed, signature)
}

func (s *hmacSignature) Method() metadata.SignatureMethod { return s.method }

func (s *hmacSignature) KeyID() string { return s.keyID }
