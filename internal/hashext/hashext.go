// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package hashext provides extensions to the standard crypto and hash packages.
package hashext

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"hash"
	"io"

	"github.com/pkg/errors"
)

// TypedHash is a hash.Hash annotated with its algorithm.
type TypedHash struct {
	hash.Hash
	Algorithm crypto.Hash
}

// NewTypedHash constructs a new TypedHash.
func NewTypedHash(algo crypto.Hash) TypedHash {
	return TypedHash{Hash: algo.New(), Algorithm: algo}
}

// digestBufferSize is the chunk size used when digesting streams.
const digestBufferSize = 4096

// Digest consumes r in fixed-size chunks and returns the final sum.
func Digest(algo crypto.Hash, r io.Reader) ([]byte, error) {
	h := NewTypedHash(algo)
	buf := make([]byte, digestBufferSize)
	// Hide any WriterTo on r so CopyBuffer really reads through buf.
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{r}, buf); err != nil {
		return nil, errors.Wrap(err, "digesting stream")
	}
	return h.Sum(nil), nil
}
