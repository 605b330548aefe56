package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stamper/internal/ipc"
	"stamper/internal/services/ffmpeg"
)

// styleFlags collects the optional watermark appearance overrides shared by
// the add, batch, and sample commands. Zero values leave the daemon defaults
// in place.
type styleFlags struct {
	fontFile        string
	fontSize        int
	padding         int
	fontColor       string
	borderColor     string
	borderThickness int
}

func (f *styleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fontFile, "font-file", "", "Path to a font file for the watermark text")
	cmd.Flags().IntVar(&f.fontSize, "font-size", 0, "Watermark font size in points")
	cmd.Flags().IntVar(&f.padding, "padding", 0, "Distance in pixels between the watermark and the frame edge")
	cmd.Flags().StringVar(&f.fontColor, "font-color", "", "Watermark text color as a hex value, e.g. FFC0CB")
	cmd.Flags().StringVar(&f.borderColor, "border-color", "", "Watermark border color as a hex value")
	cmd.Flags().IntVar(&f.borderThickness, "border-width", 0, "Watermark border thickness in pixels")
}

func (f *styleFlags) style() ffmpeg.Style {
	return ffmpeg.Style{
		FontFile:        strings.TrimSpace(f.fontFile),
		FontSize:        f.fontSize,
		Padding:         f.padding,
		FontColor:       strings.TrimSpace(f.fontColor),
		BorderColor:     strings.TrimSpace(f.borderColor),
		BorderThickness: f.borderThickness,
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		text     string
		position string
		style    styleFlags
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Queue a single file for watermarking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(ipc.EnqueueRequest{
					Kind:     "single",
					Paths:    []string{args[0]},
					Text:     text,
					Position: position,
					Style:    style.style(),
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s (%s)\n", resp.Task.ID, resp.Task.Label)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Watermark text (defaults to the configured text)")
	cmd.Flags().StringVar(&position, "position", "", fmt.Sprintf("Watermark position, one of: %s", strings.Join(ffmpeg.Positions, ", ")))
	style.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the queued task as JSON")
	return cmd
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		text     string
		position string
		style    styleFlags
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Queue a batch of files for watermarking",
		Long: "Queue several files as one batch task. Files that are missing, already\n" +
			"watermarked, or of an unsupported type are skipped when the batch runs,\n" +
			"and the skip reasons are recorded in the task result.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(ipc.EnqueueRequest{
					Kind:     "batch",
					Paths:    args,
					Text:     text,
					Position: position,
					Style:    style.style(),
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued batch task %s with %d files\n", resp.Task.ID, len(resp.Task.InputPaths))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Watermark text (defaults to the configured text)")
	cmd.Flags().StringVar(&position, "position", "", fmt.Sprintf("Watermark position, one of: %s", strings.Join(ffmpeg.Positions, ", ")))
	style.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the queued task as JSON")
	return cmd
}

func newSampleCommand(ctx *commandContext) *cobra.Command {
	var (
		text     string
		position string
		style    styleFlags
	)
	cmd := &cobra.Command{
		Use:   "sample <file>",
		Short: "Render a single watermarked preview frame",
		Long: "Extract one frame from the given video, apply the watermark to it, and\n" +
			"write the result next to the input so the placement can be checked\n" +
			"without processing the whole file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sample(ipc.SampleRequest{
					Path:     args[0],
					Text:     text,
					Position: position,
					Style:    style.style(),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sample written to %s\n", resp.OutputPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Watermark text (defaults to the configured text)")
	cmd.Flags().StringVar(&position, "position", "", fmt.Sprintf("Watermark position, one of: %s", strings.Join(ffmpeg.Positions, ", ")))
	style.register(cmd)
	return cmd
}
