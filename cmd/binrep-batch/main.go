// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Binrep-batch reads a batch document describing sync operations and
// performs them all, reporting per-operation failures without
// aborting the run.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/binrep/binrep/internal/fileutil"
	"github.com/binrep/binrep/pkg/binrep"
	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/exec"
	"github.com/binrep/binrep/pkg/progress"
	"github.com/binrep/binrep/pkg/slack"
)

// BatchConfigName is the batch document probed in the default search
// locations.
const BatchConfigName = "batch.sane"

// SyncOperation is one entry of the batch document.
type SyncOperation struct {
	Name        string         `toml:"name"`
	VersionReq  string         `toml:"version"`
	Destination string         `toml:"destination"`
	Exec        string         `toml:"exec,omitempty"`
	Slack       *SlackNotifier `toml:"slack,omitempty"`
}

// SlackNotifier couples a webhook target with an enable switch so a
// batch-wide default can be toggled per operation.
type SlackNotifier struct {
	Enabled             bool `toml:"enabled"`
	slack.WebhookConfig
}

// BatchConfig is the batch document: an optional includes glob, the
// operations, and a default notifier merged into per-operation ones.
type BatchConfig struct {
	Includes string          `toml:"includes,omitempty"`
	Sync     []SyncOperation `toml:"sync"`
	Slack    *SlackNotifier  `toml:"slack,omitempty"`
}

func (op SyncOperation) notifier(def *SlackNotifier) *SlackNotifier {
	if op.Slack == nil {
		return def
	}
	merged := *op.Slack
	if def != nil {
		merged.WebhookConfig = def.WebhookConfig.OverrideWith(op.Slack.WebhookConfig)
	}
	return &merged
}

var (
	configFile string
	batchFile  string
)

func configPath() string {
	if env := os.Getenv("BINREP_CONFIG"); env != "" {
		return env
	}
	return configFile
}

func loadBatch() (*BatchConfig, error) {
	var batch BatchConfig
	if err := config.Resolve(batchFile, BatchConfigName, &batch); err != nil {
		return nil, err
	}
	if batch.Includes == "" {
		return &batch, nil
	}
	matches, err := filepath.Glob(batch.Includes)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding includes %q", batch.Includes)
	}
	for _, path := range matches {
		var included BatchConfig
		if err := fileutil.ReadTOMLFile(path, &included); err != nil {
			return nil, err
		}
		batch.Sync = append(batch.Sync, included.Sync...)
	}
	return &batch, nil
}

func runOperation(ctx context.Context, br *binrep.Binrep, op SyncOperation, def *SlackNotifier) error {
	req, err := binrep.ParseVersionReq(op.VersionReq)
	if err != nil {
		return err
	}
	result, err := br.Sync(ctx, op.Name, req, op.Destination)
	if err != nil {
		return err
	}
	log.Printf("%s %s: %s", op.Name, result.Artifact.Version, result.Status)
	if result.Status != binrep.Updated {
		return nil
	}
	if _, err := exec.Hook(result.Artifact, op.Destination, op.Exec, true); err != nil {
		return err
	}
	if n := op.notifier(def); n != nil && n.Enabled {
		text := fmt.Sprintf("%s updated to version %s in %s", op.Name, result.Artifact.Version, op.Destination)
		if _, err := n.Send(ctx, text); err != nil {
			log.Printf("slack notification failed: %v", err)
		}
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:           "binrep-batch",
	Short:         "Run the sync operations of a batch document",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := loadBatch()
		if err != nil {
			return err
		}
		br, err := binrep.New(configPath(), progress.Default())
		if err != nil {
			return err
		}
		failed := 0
		for _, op := range batch.Sync {
			if err := runOperation(cmd.Context(), br, op, batch.Slack); err != nil {
				log.Printf("sync %s to %s failed: %v", op.Name, op.Destination, err)
				failed++
			}
		}
		if failed > 0 {
			return errors.Errorf("%d of %d sync operations failed", failed, len(batch.Sync))
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file (default ~/.binrep/config.sane then /etc/binrep/config.sane)")
	rootCmd.Flags().StringVarP(&batchFile, "batch-config", "b", "", "batch document (default ~/.binrep/batch.sane then /etc/binrep/batch.sane)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
