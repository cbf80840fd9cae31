// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

package exec

import (
	"fmt"
	osexec "os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/binrep/binrep/pkg/metadata"
	"github.com/pkg/errors"
)

// ArtifactVersionEnv carries the synced artifact version into hooks.
const ArtifactVersionEnv = "BINREP_ARTIFACT_VERSION"

// ExecutionError reports a hook that exited non-zero, with its full
// captured output preserved for reporting.
type ExecutionError struct {
	Command    string
	ExitStatus int
	Lines      []Line
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q returned with status %d", e.Command, e.ExitStatus)
}

// Hook runs command after a sync of artifact into pullDir. A command
// containing the literal "{}" runs once per manifest file with the
// absolute materialized path substituted; any other command runs once.
// An empty command is a no-op.
func Hook(artifact *metadata.Artifact, pullDir string, command string, tee bool) ([]Line, error) {
	if command == "" {
		return nil, nil
	}
	if !strings.Contains(command, "{}") {
		return runCommand(command, artifact, tee)
	}
	var lines []Line
	for _, f := range artifact.Files {
		abs, err := filepath.Abs(filepath.Join(pullDir, f.Name))
		if err != nil {
			return nil, errors.Wrapf(err, "resolving %s", f.Name)
		}
		out, err := runCommand(strings.ReplaceAll(command, "{}", abs), artifact, tee)
		lines = append(lines, out...)
		if err != nil {
			return lines, err
		}
	}
	return lines, nil
}

func runCommand(command string, artifact *metadata.Artifact, tee bool) ([]Line, error) {
	var cmd *osexec.Cmd
	if runtime.GOOS == "windows" {
		cmd = osexec.Command("cmd", "/C", command)
	} else {
		cmd = osexec.Command("sh", "-c", command)
	}
	cmd.Env = append(cmd.Environ(), ArtifactVersionEnv+"="+artifact.Version.String())
	output, err := Run(cmd, tee)
	if err != nil {
		return nil, err
	}
	if output.ExitStatus != 0 {
		return output.Lines, &ExecutionError{
			Command:    command,
			ExitStatus: output.ExitStatus,
			Lines:      output.Lines,
		}
	}
	return output.Lines, nil
}
