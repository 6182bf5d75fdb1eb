package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/logging"
	"captioner/internal/workflow"
)

// renderResponse is the --json shape of a finished render.
type renderResponse struct {
	ID                string  `json:"id"`
	VideoURL          string  `json:"video_url"`
	VideoPath         string  `json:"video_path"`
	TranslatedSRTPath string  `json:"translated_srt_path"`
	OutputVideoPath   string  `json:"output_video_path"`
	FontName          string  `json:"font_name"`
	FontSize          int     `json:"font_size"`
	FontColor         string  `json:"font_color"`
	Language          string  `json:"language"`
	ExpiresAt         string  `json:"expires_at"`
	Cues              int     `json:"cues"`
	Translated        int     `json:"translated"`
	Fallback          int     `json:"fallback"`
	Frames            int     `json:"frames"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var req workflow.Request
	var jsonOutput bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "render <video>",
		Short: "Transcribe, translate and burn captions into a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := requireSigningKey(cfg); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			ledger, err := ctx.openJobs()
			if err != nil {
				return err
			}
			defer ledger.Close()

			svc, err := workflow.NewService(cfg,
				workflow.WithLogger(logger),
				workflow.WithJobs(ledger),
				workflow.WithPreflight(!skipPreflight),
			)
			if err != nil {
				return err
			}

			req.VideoPath = args[0]
			result, err := svc.Render(cmd.Context(), req)
			if err != nil {
				return err
			}

			resp := renderResponse{
				ID:                result.ID,
				VideoURL:          result.VideoURL,
				VideoPath:         result.VideoPath,
				TranslatedSRTPath: result.TranslatedSRTPath,
				OutputVideoPath:   result.OutputVideoPath,
				FontName:          result.FontName,
				FontSize:          result.FontSize,
				FontColor:         result.FontColor,
				Language:          result.TargetLang,
				ExpiresAt:         result.Token.ExpiresAt.UTC().Format(time.RFC3339),
				Cues:              result.Cues,
				Translated:        result.Translation.Translated,
				Fallback:          result.Translation.Fallback,
				Frames:            result.Render.Frames,
				ElapsedSeconds:    result.Elapsed.Seconds(),
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rendered %s (%d cues, %d translated, %d kept original)\n",
				resp.ID, resp.Cues, resp.Translated, resp.Fallback)
			fmt.Fprintf(out, "Output:   %s\n", resp.OutputVideoPath)
			fmt.Fprintf(out, "Download: %s\n", resp.VideoURL)
			fmt.Fprintf(out, "Expires:  %s\n", resp.ExpiresAt)
			logger.Debug("render command finished", logging.Duration("elapsed", result.Elapsed))
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.TargetLang, "lang", "l", "", "Target language (defaults to translation.default_target)")
	cmd.Flags().StringVar(&req.FontName, "font", "", "Font file in fonts_dir, absolute path, or goregular/gobold")
	cmd.Flags().IntVar(&req.FontSize, "font-size", 0, "Font size in pixels")
	cmd.Flags().StringVar(&req.FontColor, "font-color", "", "Font color name or #rrggbb")
	cmd.Flags().StringVar(&req.ID, "id", "", "Request id used to prefix intermediate files (default: random UUID)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip binary and disk checks")
	return cmd
}
