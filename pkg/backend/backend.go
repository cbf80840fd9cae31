// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend abstracts the storage plane: a flat, slash-keyed
// blob store over a local filesystem tree or an S3 bucket.
package backend

import (
	"context"
	"strings"

	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/progress"
	"github.com/pkg/errors"
)

// ErrNotFound indicates the requested key is absent from the store.
// The repository depends on this discrimination to tell an
// uninitialized repository from a broken one.
var ErrNotFound = errors.New("resource not found")

// Backend is the storage plane. Operations are idempotent on the same
// input; there is no state machine behind them.
type Backend interface {
	// ReadText returns the UTF-8 document stored at path.
	ReadText(ctx context.Context, path string) (string, error)
	// WriteText stores a UTF-8 document at path, creating intermediate
	// directories. A crashed write must not expose a partial document.
	WriteText(ctx context.Context, path string, data string) error
	// Upload streams the local file to the remote path.
	Upload(ctx context.Context, local string, remote string) error
	// Download streams the remote path into the local file.
	Download(ctx context.Context, remote string, local string) error
}

// New constructs the backend selected by cfg.
func New(cfg *config.Config, rep progress.Reporter) (Backend, error) {
	if rep == nil {
		rep = progress.Noop{}
	}
	switch cfg.Backend.Type {
	case config.BackendFile:
		if cfg.Backend.Root == "" {
			return nil, errors.New("file backend root is missing")
		}
		return NewFileBackend(cfg.Backend.Root, rep), nil
	case config.BackendS3:
		if cfg.Backend.Bucket == "" || cfg.Backend.Region == "" {
			return nil, errors.New("missing S3 configuration")
		}
		return NewS3Backend(&cfg.Backend, rep)
	default:
		return nil, errors.Errorf("unknown backend type %q", cfg.Backend.Type)
	}
}

// cleanKey normalizes a slash-separated key: empty and "." segments are
// dropped, so "/a//b", "./a/b" and "a/b" address the same object.
func cleanKey(path string) string {
	parts := strings.Split(path, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/")
}
