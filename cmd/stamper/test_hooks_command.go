package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stamper/internal/ipc"
)

func newTestHooksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-hooks",
		Short: "Send a test event to every configured hook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestHooks()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Sent {
					fmt.Fprintln(stdout, "Test event delivered to all configured hooks")
				} else if resp.Message != "" {
					fmt.Fprintln(stdout, resp.Message)
				} else {
					fmt.Fprintln(stdout, "No hooks configured")
				}
				return nil
			})
		},
	}
}
