package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect and clean per-request intermediate files",
	}
	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))
	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List requests with files in the staging directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			requests, err := staging.List(cfg.Paths.StagingDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(requests) == 0 {
				fmt.Fprintln(out, "Staging directory is empty")
				return nil
			}
			rows := make([][]string, 0, len(requests))
			for _, req := range requests {
				rows = append(rows, []string{
					req.ID,
					fmt.Sprintf("%d", len(req.Files)),
					formatBytes(req.Size),
					time.Since(req.ModTime).Round(time.Second).String(),
					yesNo(req.Active),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Files", "Size", "Age", "Running"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove intermediate files of requests that are no longer running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			result := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, olderThan, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d files\n", len(result.Removed))
			for _, id := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s (still running)\n", id)
			}
			if len(result.Errors) > 0 {
				errs := make([]error, 0, len(result.Errors))
				for _, failure := range result.Errors {
					errs = append(errs, fmt.Errorf("%s: %w", failure.Path, failure.Error))
				}
				return errors.Join(errs...)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Only remove requests untouched for at least this long")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
