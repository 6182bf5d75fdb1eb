package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	langpkg "captioner/internal/language"
	"captioner/internal/subtitles"
	"captioner/internal/timestamp"
	"captioner/internal/translation"
)

func newSRTCommand(ctx *commandContext) *cobra.Command {
	srtCmd := &cobra.Command{
		Use:   "srt",
		Short: "Inspect and translate SubRip files",
	}
	srtCmd.AddCommand(newSRTShowCommand())
	srtCmd.AddCommand(newSRTTranslateCommand(ctx))
	return srtCmd
}

func newSRTShowCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "show <file.srt>",
		Short:       "Print the cues of a SubRip file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			track, err := subtitles.ReadFile(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				type cueJSON struct {
					Index int     `json:"index"`
					Start float64 `json:"start"`
					End   float64 `json:"end"`
					Text  string  `json:"text"`
				}
				cues := make([]cueJSON, 0, track.Len())
				for i, cue := range track.Cues {
					cues = append(cues, cueJSON{Index: i + 1, Start: cue.Start, End: cue.End, Text: cue.Text})
				}
				return writeJSON(cmd, cues)
			}

			out := cmd.OutOrStdout()
			if track.Len() == 0 {
				fmt.Fprintln(out, "No cues")
				return nil
			}
			rows := make([][]string, 0, track.Len())
			for i, cue := range track.Cues {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					timestamp.Format(cue.Start),
					timestamp.Format(cue.End),
					strings.ReplaceAll(cue.Text, "\n", " / "),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Start", "End", "Text"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			first, last := track.Bounds()
			fmt.Fprintf(out, "%d cues spanning %s to %s\n", track.Len(), timestamp.Format(first), timestamp.Format(last))
			for _, problem := range track.Validate() {
				fmt.Fprintf(out, "warning: %s\n", problem)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print cues as JSON")
	return cmd
}

func newSRTTranslateCommand(ctx *commandContext) *cobra.Command {
	var targetLang string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "translate <file.srt>",
		Short: "Translate every cue of a SubRip file, keeping the original text on failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			lang := targetLang
			if strings.TrimSpace(lang) == "" {
				lang = cfg.Translation.DefaultTarget
			}
			lang, err = langpkg.Normalize(lang)
			if err != nil {
				return fmt.Errorf("target language: %w", err)
			}

			source := args[0]
			track, err := subtitles.ReadFile(source)
			if err != nil {
				return err
			}
			engine, err := translation.NewEngine(cfg, logger)
			if err != nil {
				return err
			}
			adapter := translation.NewAdapter(engine,
				translation.WithCueTimeout(cfg.TranslationTimeout()),
				translation.WithWorkers(cfg.Translation.Concurrency),
				translation.WithAdapterLogger(logger),
			)
			stats := adapter.TranslateTrack(cmd.Context(), &track, lang)
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			target := strings.TrimSpace(outputPath)
			if target == "" {
				ext := filepath.Ext(source)
				target = strings.TrimSuffix(source, ext) + "." + lang + ext
			}
			if err := subtitles.WriteFile(target, track); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d cues, %d translated, %d kept original; %s)\n",
				target, stats.Total, stats.Translated, stats.Fallback, langpkg.DisplayName(lang))
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetLang, "lang", "l", "", "Target language (defaults to translation.default_target)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (default: <input>.<lang>.srt)")
	return cmd
}
