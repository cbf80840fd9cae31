// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package progress is the transfer-progress capability the backends
// report through. Three implementations: interactive terminal bars,
// non-interactive logging, and no-op.
package progress

import (
	"io"
	"log"
	"os"

	"github.com/cheggaaa/pb"
	isatty "github.com/mattn/go-isatty"
)

// Reporter creates one Bar per transfer.
type Reporter interface {
	NewBar(name string, total int64) Bar
}

// Bar tracks a single transfer. ProxyReader must be wrapped around the
// stream being transferred; Finish must be called when the transfer
// ends, success or not.
type Bar interface {
	ProxyReader(r io.Reader) io.Reader
	Finish()
}

// Default picks the interactive reporter on a terminal and the logging
// one otherwise.
func Default() Reporter {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return Interactive{}
	}
	return NonInteractive{}
}

// Noop reports nothing.
type Noop struct{}

type noopBar struct{}

func (Noop) NewBar(string, int64) Bar { return noopBar{} }

func (noopBar) ProxyReader(r io.Reader) io.Reader { return r }

func (noopBar) Finish() {}

// NonInteractive logs one line per transfer instead of drawing.
type NonInteractive struct{}

func (NonInteractive) NewBar(name string, total int64) Bar {
	log.Printf("transferring %s (%d bytes)", name, total)
	return noopBar{}
}

// Interactive draws a terminal progress bar per transfer.
type Interactive struct{}

type pbBar struct {
	bar *pb.ProgressBar
}

func (Interactive) NewBar(name string, total int64) Bar {
	bar := pb.New64(total)
	bar.SetUnits(pb.U_BYTES)
	bar.Prefix(name + " ")
	bar.Start()
	return pbBar{bar: bar}
}

func (b pbBar) ProxyReader(r io.Reader) io.Reader {
	return b.bar.NewProxyReader(r)
}

func (b pbBar) Finish() {
	b.bar.Finish()
}
