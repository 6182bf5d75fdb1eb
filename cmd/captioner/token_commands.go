package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/access"
	"captioner/internal/artifacts"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and redeem download links",
	}
	tokenCmd.AddCommand(newTokenIssueCommand(ctx))
	tokenCmd.AddCommand(newTokenRedeemCommand(ctx))
	return tokenCmd
}

func (c *commandContext) tokenService() (*access.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	if err := requireSigningKey(cfg); err != nil {
		return nil, err
	}
	store, err := artifacts.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return access.NewFromConfig(cfg, store, logger)
}

func newTokenIssueCommand(ctx *commandContext) *cobra.Command {
	var ttl time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "issue <filename>",
		Short: "Create a time-limited download link for a published video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.tokenService()
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = svc.TTL()
			}
			token, err := svc.IssueWithTTL(args[0], ttl)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]string{
					"filename":  token.Filename,
					"token":     token.Value,
					"expires":   token.Expires(),
					"video_url": svc.URL(token),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.URL(token))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Link lifetime (default: access.ttl_seconds)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print token fields as JSON")
	return cmd
}

func newTokenRedeemCommand(ctx *commandContext) *cobra.Command {
	var filename, token, expires, link string

	cmd := &cobra.Command{
		Use:   "redeem",
		Short: "Validate a download link and print the video location",
		Long: "Validate a download link and print the video location.\n\n" +
			"Pass either --url with the full link or the individual --filename, --token and --expires values.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(link) != "" {
				parsed, err := url.Parse(link)
				if err != nil {
					return fmt.Errorf("parse url: %w", err)
				}
				query := parsed.Query()
				filename = query.Get("filename")
				token = query.Get("token")
				expires = query.Get("expires")
			}
			svc, err := ctx.tokenService()
			if err != nil {
				return err
			}
			location, err := svc.Redeem(cmd.Context(), filename, token, expires)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), location)
			return nil
		},
	}
	cmd.Flags().StringVar(&link, "url", "", "Full download link")
	cmd.Flags().StringVar(&filename, "filename", "", "filename query value")
	cmd.Flags().StringVar(&token, "token", "", "token query value")
	cmd.Flags().StringVar(&expires, "expires", "", "expires query value")
	return cmd
}
