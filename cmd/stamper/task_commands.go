package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stamper/internal/ipc"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage the task queue",
	}
	tasksCmd.AddCommand(
		newTasksListCommand(ctx),
		newTasksShowCommand(ctx),
		newTasksClearCommand(ctx),
		newTasksRetryCommand(ctx),
		newTasksResetCommand(ctx),
		newTasksSweepCommand(ctx),
		newTasksHealthCommand(ctx),
	)
	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskList(statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Tasks)
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(stdout, "No tasks in the queue")
					return nil
				}
				rows := make([][]string, 0, len(resp.Tasks))
				for _, task := range resp.Tasks {
					rows = append(rows, []string{
						shortTaskID(task.ID),
						task.Kind,
						task.Label,
						task.Status,
						fmt.Sprintf("%d/%d", task.RetryCount, task.MaxRetries),
						task.CreatedAt,
					})
				}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
				fmt.Fprintln(stdout, renderTable([]string{"ID", "Kind", "Label", "Status", "Retries", "Created"}, rows, aligns))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show tasks with these statuses (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit tasks as JSON")
	return cmd
}

func newTasksShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show the full record for one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskDescribe(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Task)
				}

				stdout := cmd.OutOrStdout()
				task := resp.Task
				fmt.Fprintf(stdout, "ID:        %s\n", task.ID)
				fmt.Fprintf(stdout, "Kind:      %s\n", task.Kind)
				if task.Label != "" {
					fmt.Fprintf(stdout, "Label:     %s\n", task.Label)
				}
				fmt.Fprintf(stdout, "Status:    %s\n", task.Status)
				fmt.Fprintf(stdout, "Files:     %s\n", strings.Join(task.InputPaths, ", "))
				if task.Text != "" {
					fmt.Fprintf(stdout, "Text:      %s\n", task.Text)
				}
				if task.Position != "" {
					fmt.Fprintf(stdout, "Position:  %s\n", task.Position)
				}
				fmt.Fprintf(stdout, "Retries:   %d/%d\n", task.RetryCount, task.MaxRetries)
				if task.NextAttempt != "" {
					fmt.Fprintf(stdout, "Next try:  %s\n", task.NextAttempt)
				}
				if task.ErrorMessage != "" {
					fmt.Fprintf(stdout, "Error:     %s\n", task.ErrorMessage)
				}
				if task.CreatedAt != "" {
					fmt.Fprintf(stdout, "Created:   %s\n", task.CreatedAt)
				}
				if task.StartedAt != "" {
					fmt.Fprintf(stdout, "Started:   %s\n", task.StartedAt)
				}
				if task.CompletedAt != "" {
					fmt.Fprintf(stdout, "Completed: %s\n", task.CompletedAt)
				}
				if len(task.Result) > 0 {
					fmt.Fprintf(stdout, "Result:    %s\n", string(task.Result))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the task as JSON")
	return cmd
}

func newTasksClearCommand(ctx *commandContext) *cobra.Command {
	var (
		completedOnly bool
		failedOnly    bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove tasks from the queue",
		Long: "Remove all tasks, or narrow the removal with --completed or --failed.\n" +
			"Tasks currently processing are never removed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if completedOnly && failedOnly {
				return fmt.Errorf("--completed and --failed are mutually exclusive")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				var removed int64
				switch {
				case completedOnly:
					resp, err := client.TaskClearCompleted()
					if err != nil {
						return err
					}
					removed = resp.Removed
				case failedOnly:
					resp, err := client.TaskClearFailed()
					if err != nil {
						return err
					}
					removed = resp.Removed
				default:
					resp, err := client.TaskClear()
					if err != nil {
						return err
					}
					removed = resp.Removed
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d task(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only remove completed tasks")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only remove failed tasks")
	return cmd
}

func newTasksRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Requeue all failed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskRetry()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed task(s)\n", resp.Updated)
				return nil
			})
		},
	}
}

func newTasksResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset stuck processing tasks back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskReset()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stuck task(s)\n", resp.Updated)
				return nil
			})
		},
	}
}

func newTasksSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove completed tasks older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskSweep()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Swept %d task(s)\n", resp.Removed)
				return nil
			})
		},
	}
}

func newTasksHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show queue counters per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskHealth()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				rows := [][]string{
					{"pending", strconv.Itoa(resp.Pending)},
					{"processing", strconv.Itoa(resp.Processing)},
					{"retrying", strconv.Itoa(resp.Retrying)},
					{"completed", strconv.Itoa(resp.Completed)},
					{"failed", strconv.Itoa(resp.Failed)},
					{"total", strconv.Itoa(resp.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit counters as JSON")
	return cmd
}

// shortTaskID trims a UUID down to its first block for table display.
func shortTaskID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}
