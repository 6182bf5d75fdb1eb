package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/caption"
	"captioner/internal/notifications"
	"captioner/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var sendTest bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, fonts and services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failures := 0

			emit := func(lines ...string) {
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
			}

			emit(renderSectionHeader("Tools", colorize)...)
			for _, dep := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				kind := statusOK
				message := strings.TrimSpace(dep.Version)
				if message == "" {
					message = dep.Path
				}
				if !dep.Available {
					kind = statusError
					if dep.Optional {
						kind = statusWarn
					} else {
						failures++
					}
					message = dep.Detail
				}
				emit(renderStatusLine(dep.Name, kind, message, colorize))
			}

			emit("")
			emit(renderSectionHeader("Environment", colorize)...)
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failures++
				}
				emit(renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if _, err := caption.LoadFace(cfg.Paths.FontsDir, cfg.Caption.FontName, cfg.Caption.FontSize, cfg.Caption.FontColor); err != nil {
				emit(renderStatusLine("Default font", statusError, err.Error(), colorize))
				failures++
			} else {
				emit(renderStatusLine("Default font", statusOK, fmt.Sprintf("%s %dpx %s", cfg.Caption.FontName, cfg.Caption.FontSize, cfg.Caption.FontColor), colorize))
			}

			if cfg.Access.SigningKey == "" {
				emit(renderStatusLine("Signing key", statusWarn, "unset; links stop validating when the process exits", colorize))
			} else {
				emit(renderStatusLine("Signing key", statusOK, "configured", colorize))
			}

			switch {
			case cfg.Notifications.NtfyTopic == "":
				emit(renderStatusLine("Notifications", statusInfo, "disabled", colorize))
			case sendTest:
				if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					emit(renderStatusLine("Notifications", statusError, err.Error(), colorize))
					failures++
				} else {
					emit(renderStatusLine("Notifications", statusOK, "test message sent", colorize))
				}
			default:
				emit(renderStatusLine("Notifications", statusOK, cfg.Notifications.NtfyTopic, colorize))
			}

			if failures > 0 {
				return errors.New(pluralize(failures, "check") + " failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sendTest, "notify", false, "Send a test notification to the configured ntfy topic")
	return cmd
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
