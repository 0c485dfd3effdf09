// Command deploy wraps the CDK CLI so every environment is synthesized
// and deployed with the same context and credentials handling.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/platform-team/observability/config"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		environment   string
		account       string
		region        string
		bootstrapOnly bool
		diffOnly      bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the observability platform stacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Debug().Msg("No .env file loaded")
			}

			// Fail on bad settings before the CDK CLI spins up.
			if _, err := config.Load(environment, os.Getenv("OBS_CONFIG_FILE")); err != nil {
				return err
			}

			if account == "" {
				account = os.Getenv("CDK_DEFAULT_ACCOUNT")
			}
			if account == "" {
				return fmt.Errorf("no account given and CDK_DEFAULT_ACCOUNT is unset")
			}

			if _, err := exec.LookPath("cdk"); err != nil {
				return fmt.Errorf("cdk CLI not found in PATH: %w", err)
			}

			if err := runCDK(cmd, "bootstrap", environment, account, region); err != nil {
				return err
			}
			if bootstrapOnly {
				return nil
			}

			action := "deploy"
			if diffOnly {
				action = "diff"
			}
			return runCDK(cmd, action, environment, account, region)
		},
	}

	cmd.Flags().StringVarP(&environment, "environment", "e", "dev", "target environment (dev, staging, prod)")
	cmd.Flags().StringVar(&account, "account", "", "AWS account id (defaults to CDK_DEFAULT_ACCOUNT)")
	cmd.Flags().StringVar(&region, "region", "us-east-1", "AWS region")
	cmd.Flags().BoolVar(&bootstrapOnly, "bootstrap-only", false, "bootstrap the environment and exit")
	cmd.Flags().BoolVar(&diffOnly, "diff", false, "show the stack diff instead of deploying")

	return cmd
}

func runCDK(cmd *cobra.Command, action, environment, account, region string) error {
	args := []string{action,
		"-c", "environment=" + environment,
		"-c", "account=" + account,
		"-c", "region=" + region,
	}
	if action == "deploy" {
		args = append(args, "--all", "--require-approval", "never")
	}

	log.Info().Str("action", action).Str("environment", environment).Str("region", region).Msg("Running cdk")

	cdk := exec.CommandContext(cmd.Context(), "cdk", args...)
	cdk.Stdout = os.Stdout
	cdk.Stderr = os.Stderr
	if err := cdk.Run(); err != nil {
		return fmt.Errorf("cdk %s: %w", action, err)
	}
	return nil
}
