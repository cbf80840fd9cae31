// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Package exec runs post-sync hook commands and captures their output
// line by line.
package exec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sync"

	"github.com/pkg/errors"
)

// LineType classifies a captured line.
type LineType int

const (
	// Cmd is the synthetic first line carrying the command itself.
	Cmd LineType = iota
	// Out is a stdout line.
	Out
	// Err is a stderr line.
	Err
)

func (t LineType) String() string {
	switch t {
	case Cmd:
		return "Cmd"
	case Out:
		return "Out"
	case Err:
		return "Err"
	default:
		return "Unknown"
	}
}

// Line is one captured line of hook output.
type Line struct {
	Type LineType
	Text string
}

func (l Line) String() string {
	return fmt.Sprintf("%s(%s)", l.Type, l.Text)
}

// Output is the full capture of one command run.
type Output struct {
	ExitStatus int
	Lines      []Line
}

// maxLineSize bounds a single captured line.
const maxLineSize = 1024 * 1024

// Run executes cmd, capturing stdout and stderr line by line. When tee
// is set, output is mirrored to the parent process streams as it
// arrives. The returned error covers start failures only; a non-zero
// exit lands in Output.ExitStatus.
func Run(cmd *osexec.Cmd, tee bool) (*Output, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "piping stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "piping stderr")
	}

	var mu sync.Mutex
	lines := []Line{{Type: Cmd, Text: cmd.String()}}
	var teeOut, teeErr io.Writer
	if tee {
		teeOut, teeErr = os.Stdout, os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting %q", cmd.String())
	}

	var wg sync.WaitGroup
	capture := func(r io.Reader, t LineType, mirror io.Writer) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			text := scanner.Text()
			if mirror != nil {
				fmt.Fprintln(mirror, text)
			}
			mu.Lock()
			lines = append(lines, Line{Type: t, Text: text})
			mu.Unlock()
		}
	}
	wg.Add(2)
	go capture(stdout, Out, teeOut)
	go capture(stderr, Err, teeErr)
	wg.Wait()

	status := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *osexec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "waiting for %q", cmd.String())
		}
		status = exitErr.ExitCode()
	}
	return &Output{ExitStatus: status, Lines: lines}, nil
}
