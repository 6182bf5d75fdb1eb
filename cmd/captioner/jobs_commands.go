package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/jobs"
	"captioner/internal/services"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the render history",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent render jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			store, err := ctx.openJobs()
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), limit, statuses...)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, toJobViews(list))
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					job.ID,
					string(job.Status),
					dashIfEmpty(job.Stage),
					job.TargetLang,
					fmt.Sprintf("%d/%d", job.TranslatedCount, job.CueCount),
					job.CreatedAt.Local().Format("2006-01-02 15:04"),
					job.Duration().Round(time.Second).String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Stage", "Lang", "Translated", "Created", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, running, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum jobs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one render job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openJobs()
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if job == nil {
				return services.Wrap(services.ErrNotFound, "jobs", "show", fmt.Sprintf("job %s not found", args[0]), nil)
			}
			if jsonOutput {
				return writeJSON(cmd, toJobView(job))
			}

			out := cmd.OutOrStdout()
			fields := [][2]string{
				{"ID", job.ID},
				{"Status", string(job.Status)},
				{"Stage", dashIfEmpty(job.Stage)},
				{"Source", job.SourcePath},
				{"Source BLAKE3", dashIfEmpty(job.SourceHash)},
				{"Language", job.TargetLang},
				{"Cues", fmt.Sprintf("%d (%d translated, %d kept original)", job.CueCount, job.TranslatedCount, job.FallbackCount)},
				{"Subtitles", dashIfEmpty(job.SubtitlesPath)},
				{"Translated", dashIfEmpty(job.TranslatedPath)},
				{"Output", dashIfEmpty(job.OutputPath)},
				{"Created", job.CreatedAt.Local().Format(time.RFC3339)},
				{"Duration", job.Duration().Round(time.Millisecond).String()},
			}
			if job.Status == jobs.StatusFailed {
				fields = append(fields,
					[2]string{"Error kind", dashIfEmpty(job.ErrorKind)},
					[2]string{"Error", dashIfEmpty(job.ErrorMessage)},
				)
			}
			for _, field := range fields {
				fmt.Fprintf(out, "%-14s %s\n", field[0]+":", field[1])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

type jobView struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	Stage           string  `json:"stage,omitempty"`
	SourcePath      string  `json:"source_path"`
	SourceHash      string  `json:"source_hash,omitempty"`
	TargetLang      string  `json:"target_lang"`
	SubtitlesPath   string  `json:"subtitles_path,omitempty"`
	TranslatedPath  string  `json:"translated_srt_path,omitempty"`
	OutputPath      string  `json:"output_video_path,omitempty"`
	CueCount        int     `json:"cues"`
	TranslatedCount int     `json:"translated"`
	FallbackCount   int     `json:"fallback"`
	ErrorKind       string  `json:"error_kind,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	CreatedAt       string  `json:"created_at"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func toJobView(job *jobs.Job) jobView {
	return jobView{
		ID:              job.ID,
		Status:          string(job.Status),
		Stage:           job.Stage,
		SourcePath:      job.SourcePath,
		SourceHash:      job.SourceHash,
		TargetLang:      job.TargetLang,
		SubtitlesPath:   job.SubtitlesPath,
		TranslatedPath:  job.TranslatedPath,
		OutputPath:      job.OutputPath,
		CueCount:        job.CueCount,
		TranslatedCount: job.TranslatedCount,
		FallbackCount:   job.FallbackCount,
		ErrorKind:       job.ErrorKind,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt.UTC().Format(time.RFC3339Nano),
		DurationSeconds: job.Duration().Seconds(),
	}
}

func toJobViews(list []*jobs.Job) []jobView {
	views := make([]jobView, 0, len(list))
	for _, job := range list {
		views = append(views, toJobView(job))
	}
	return views
}

func parseStatuses(values []string) ([]jobs.Status, error) {
	var statuses []jobs.Status
	for _, value := range values {
		status := jobs.Status(strings.ToLower(strings.TrimSpace(value)))
		switch status {
		case jobs.StatusPending, jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusFailed:
			statuses = append(statuses, status)
		default:
			return nil, fmt.Errorf("unknown status %q", value)
		}
	}
	return statuses, nil
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
