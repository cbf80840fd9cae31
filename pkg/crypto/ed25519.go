// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"

	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/metadata"
	"github.com/pkg/errors"
)

type ed25519Signer struct {
	priv  ed25519.PrivateKey
	keyID string
}

type ed25519Verifier struct {
	pub ed25519.PublicKey
}

func ed25519KeyEntry(cfg *config.Config, keyID string) (*config.Ed25519Key, error) {
	entry, ok := cfg.Ed25519Keys[keyID]
	if !ok {
		return nil, errors.Wrapf(config.ErrKeyNotConfigured, "ed25519 key %q", keyID)
	}
	return &entry, nil
}

func parsePKCS8(keyID, material string) (ed25519.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		return nil, errors.Wrapf(config.ErrKeyMalformed, "ed25519 key %q: %v", keyID, err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Wrapf(config.ErrKeyMalformed, "ed25519 key %q: %v", keyID, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.Wrapf(config.ErrKeyMalformed, "ed25519 key %q: PKCS#8 blob is not an Ed25519 key", keyID)
	}
	return priv, nil
}

func newEd25519Signer(cfg *config.Config, keyID string) (*ed25519Signer, error) {
	entry, err := ed25519KeyEntry(cfg, keyID)
	if err != nil {
		return nil, err
	}
	// Signing needs the full PKCS#8 entry; a public-key entry cannot serve.
	if entry.PKCS8 == "" {
		return nil, errors.Wrapf(config.ErrKeyMalformed, "ed25519 key %q: PKCS#8 key data is needed for signing", keyID)
	}
	priv, err := parsePKCS8(keyID, entry.PKCS8)
	if err != nil {
		return nil, err
	}
	return &ed25519Signer{priv: priv, keyID: keyID}, nil
}

func newEd25519Verifier(cfg *config.Config, keyID string) (*ed25519Verifier, error) {
	entry, err := ed25519KeyEntry(cfg, keyID)
	if err != nil {
		return nil, err
	}
	if entry.PKCS8 != "" {
		priv, err := parsePKCS8(keyID, entry.PKCS8)
		if err != nil {
			return nil, err
		}
		return &ed25519Verifier{pub: priv.Public().(ed25519.PublicKey)}, nil
	}
	if entry.PublicKey == "" {
		return nil, errors.Wrapf(config.ErrKeyMalformed, "ed25519 key %q: neither pkcs8 nor public_key set", keyID)
	}
	pub, err := base64.StdEncoding.DecodeString(entry.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(config.ErrKeyMalformed, "ed25519 key %q: %v", keyID, err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(config.ErrKeyWrongLength, "ed25519 key %q: got %d bytes, want %d", keyID, len(pub), ed25519.PublicKeySize)
	}
	return &ed25519Verifier{pub: ed25519.PublicKey(pub)}, nil
}

func (s *ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

func (s *ed25519Signer) Method() metadata.SignatureMethod { return metadata.SignatureEd25519 }

func (s *ed25519Signer) KeyID() string { return s.keyID }

func (v *ed25519Verifier) Verify(msg, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(v.pub, msg, signature)
}

// GenerateEd25519KeyPair produces a fresh key pair encoded for the
// configuration file: a base64 PKCS#8 blob and a base64 raw public key.
func GenerateEd25519KeyPair() (pkcs8 string, publicKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", "", errors.Wrap(err, "generating ed25519 key")
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", errors.Wrap(err, "encoding PKCS#8")
	}
	return base64.StdEncoding.EncodeToString(der), base64.StdEncoding.EncodeToString(pub), nil
}
