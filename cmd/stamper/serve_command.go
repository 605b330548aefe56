package main

import (
	"github.com/spf13/cobra"

	"stamper/internal/daemonrun"
)

// newServeCommand runs the daemon loop in the foreground. `stamper start`
// launches this command as a detached child process.
func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run the stamper daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemonrun.Run(cmd.Context(), ctx.configValue(), daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}
