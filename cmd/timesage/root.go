// Package cli wires the timesage commands: the local server, one-shot task
// invocations, and account sign-in.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/timesage/timesage/internal/config"
)

var cfg *config.Config

// SetupRootCmd builds the root command with the loaded configuration.
func SetupRootCmd(c *config.Config) *cobra.Command {
	cfg = c

	root := &cobra.Command{
		Use:           "timesage",
		Short:         "AI-assisted time tracking gateway",
		Long:          "timesage turns tracked desktop context into AI task calls: screenshot descriptions, activity classification, and timesheet summaries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		analyzeCmd(),
		taskCmd(),
		loginCmd(),
		logoutCmd(),
		versionCmd(),
	)
	return root
}
