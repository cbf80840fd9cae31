// Copyright 2025 The Binrep Authors
// SPDX-License-Identifier: Apache-2.0

// Binrep is the operator CLI: publish, list, fetch, and synchronize
// signed artifact versions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/binrep/binrep/pkg/binrep"
	"github.com/binrep/binrep/pkg/config"
	"github.com/binrep/binrep/pkg/crypto"
	"github.com/binrep/binrep/pkg/exec"
	"github.com/binrep/binrep/pkg/progress"
	"github.com/binrep/binrep/pkg/slack"
)

var (
	configFile  string
	execCommand string
	overwrite   bool
)

// configPath returns the explicit configuration location, if any. The
// BINREP_CONFIG environment variable wins over the flag.
func configPath() string {
	if env := os.Getenv("BINREP_CONFIG"); env != "" {
		return env
	}
	return configFile
}

func newBinrep() (*binrep.Binrep, error) {
	return binrep.New(configPath(), progress.Default())
}

func slackWebhook() slack.WebhookConfig {
	var cfg slack.Config
	if err := config.Resolve(configPath(), binrep.ConfigName, &cfg); err != nil {
		return slack.WebhookConfig{}
	}
	return cfg.Webhook()
}

var rootCmd = &cobra.Command{
	Use:           "binrep",
	Short:         "Signed, versioned binary artifact repository",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var pushCmd = &cobra.Command{
	Use:   "push NAME VERSION FILE...",
	Short: "Publish files as a new artifact version",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := semver.NewVersion(args[1])
		if err != nil {
			return errors.Wrapf(err, "parsing version %q", args[1])
		}
		br, err := newBinrep()
		if err != nil {
			return err
		}
		artifact, err := br.Push(cmd.Context(), args[0], version, args[2:])
		if err != nil {
			return err
		}
		fmt.Println(artifact)
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull NAME VERSION DESTINATION_DIR",
	Short: "Fetch one artifact version into a directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := semver.NewVersion(args[1])
		if err != nil {
			return errors.Wrapf(err, "parsing version %q", args[1])
		}
		br, err := newBinrep()
		if err != nil {
			return err
		}
		artifact, err := br.Pull(cmd.Context(), args[0], version, args[2], overwrite)
		if err != nil {
			return err
		}
		fmt.Println(artifact)
		_, err = exec.Hook(artifact, args[2], execCommand, true)
		return err
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync NAME VERSION_REQ DESTINATION_DIR",
	Short: "Mirror the latest matching version into a directory",
	Long: `Mirror the latest published version satisfying VERSION_REQ
(eg: *, 1.x, ^1.0.0, ~1, latest) into DESTINATION_DIR, then run the
exec hook if the directory was updated.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := binrep.ParseVersionReq(args[1])
		if err != nil {
			return err
		}
		br, err := newBinrep()
		if err != nil {
			return err
		}
		result, err := br.Sync(cmd.Context(), args[0], req, args[2])
		if err != nil {
			return err
		}
		switch result.Status {
		case binrep.Updated:
			fmt.Printf("%s %s\n", color.GreenString("updated"), result.Artifact.Version)
		case binrep.UpToDate:
			fmt.Printf("%s at %s\n", color.CyanString("up-to-date"), result.Artifact.Version)
		}
		if result.Status != binrep.Updated {
			return nil
		}
		if _, err := exec.Hook(result.Artifact, args[2], execCommand, true); err != nil {
			return err
		}
		notifySync(cmd.Context(), args[0], args[2], result)
		return nil
	},
}

func notifySync(ctx context.Context, name, dest string, result *binrep.SyncResult) {
	webhook := slackWebhook()
	text := fmt.Sprintf("%s updated to version %s in %s", name, result.Artifact.Version, dest)
	if _, err := webhook.Send(ctx, text); err != nil {
		fmt.Fprintf(os.Stderr, "slack notification failed: %v\n", err)
	}
}

var lsCmd = &cobra.Command{
	Use:   "ls [NAME [VERSION_REQ]]",
	Short: "List artifacts, or the versions of one artifact",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		br, err := newBinrep()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			artifacts, err := br.ListArtifacts(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range artifacts.Artifacts {
				fmt.Println(name)
			}
			return nil
		}
		var req *semver.Constraints
		if len(args) == 2 {
			if req, err = binrep.ParseVersionReq(args[1]); err != nil {
				return err
			}
		}
		versions, err := br.ListVersions(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		for _, v := range versions {
			fmt.Println(v)
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect NAME VERSION",
	Short: "Print the verified manifest of one version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := semver.NewVersion(args[1])
		if err != nil {
			return errors.Wrapf(err, "parsing version %q", args[1])
		}
		br, err := newBinrep()
		if err != nil {
			return err
		}
		artifact, err := br.Artifact(cmd.Context(), args[0], version)
		if err != nil {
			return err
		}
		fmt.Println(artifact)
		return nil
	},
}

var utilsCmd = &cobra.Command{
	Use:   "utils",
	Short: "Helper utilities",
}

var genKeypairCmd = &cobra.Command{
	Use:   "gen-ed25519-keypair",
	Short: "Generate a base64 encoded Ed25519 key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pkcs8, pub, err := crypto.GenerateEd25519KeyPair()
		if err != nil {
			return err
		}
		fmt.Printf("pkcs8:      %s\n", pkcs8)
		fmt.Printf("public_key: %s\n", pub)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (default ~/.binrep/config.sane then /etc/binrep/config.sane)")
	pullCmd.Flags().StringVarP(&execCommand, "exec", "e", "", "command to execute after the artifact has been pulled")
	pullCmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing destination files")
	syncCmd.Flags().StringVarP(&execCommand, "exec", "e", "", "command to execute if a new version has been pulled")
	utilsCmd.AddCommand(genKeypairCmd)
	rootCmd.AddCommand(pushCmd, pullCmd, syncCmd, lsCmd, inspectCmd, utilsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
