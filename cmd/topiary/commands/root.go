// Package commands wires the CLI surface: flag parsing, configuration
// resolution, and the mapping from a reconciliation summary to the
// process exit code.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	jsonOutput bool
)

// exitCodeError carries a non-zero exit code from a command back to
// main without treating the run as a usage error.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// ExitCode extracts the requested process exit code from a command
// error. The boolean is false for ordinary errors, which map to exit
// code 1.
func ExitCode(err error) (int, bool) {
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code, true
	}
	return 0, false
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "topiary",
		Short: "Topiary - SNS/SQS topology provisioner",
		Long: `Topiary reconciles a declared SNS/SQS messaging topology against AWS.

It reads a topology document (inline, from a file, or from a Kubernetes
ConfigMap), suffixes every logical name with the deployment environment,
and idempotently creates or adopts the queues, topics, and subscriptions
the document declares. Failures are isolated per resource and reported
through the exit code, so a partially successful run still provisions
everything it can.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}
