package sessioncmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seaneb/seaneb-auth/internal/business"
	"github.com/seaneb/seaneb-auth/internal/cmdutils"
	"github.com/seaneb/seaneb-auth/pkg/account"
)

type status struct {
	Authenticated      bool      `yaml:"authenticated"`
	AccessTokenLength  int       `yaml:"access_token_length"`
	RefreshTokenLength int       `yaml:"refresh_token_length"`
	CSRFTokenLength    int       `yaml:"csrf_token_length"`
	AccessTokenExpires time.Time `yaml:"access_token_expires_at"`
	SessionStartedAt   time.Time `yaml:"session_started_at"`
	SessionExpiresAt   time.Time `yaml:"session_expires_at"`
	SessionExpired     bool      `yaml:"session_expired"`
	ProductKey         string    `yaml:"product_key"`
	DashboardMode      string    `yaml:"dashboard_mode"`
	BusinessRegistered bool      `yaml:"business_registered"`
}

func Cmd(buildInfo string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage the stored session",
	}

	cmd.AddCommand(
		statusCmd(buildInfo),
		refreshCmd(buildInfo),
		logoutCmd(buildInfo),
		modeCmd(buildInfo),
	)

	return cmd
}

func statusCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("status", "Show the stored session without revealing tokens", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			s := c.Holder.Snapshot(ctx)

			return cmdutils.PrintYAML(cmd.OutOrStdout(), status{
				Authenticated:      s.Authenticated(),
				AccessTokenLength:  s.AccessTokenLength,
				RefreshTokenLength: s.RefreshTokenLength,
				CSRFTokenLength:    s.CSRFTokenLength,
				AccessTokenExpires: s.AccessTokenExpiresAt,
				SessionStartedAt:   s.SessionStartedAt,
				SessionExpiresAt:   s.SessionExpiresAt,
				SessionExpired:     s.SessionExpired,
				ProductKey:         c.Products.Key(ctx),
				DashboardMode:      string(c.Account.DashboardMode(ctx)),
				BusinessRegistered: c.Account.BusinessRegistered(ctx),
			})
		})
}

func refreshCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("refresh", "Get a new access token now", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			token, err := c.API.Refresh(ctx)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Access token refreshed (%d characters)\n", len(token))
			return err
		})
}

func logoutCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("logout", "Log out and clear the stored session", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			c.Account.Logout(ctx)

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return err
		})
}

func modeCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("mode [user|business]", "Show or switch the dashboard mode", buildInfo, cobra.MaximumNArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			mode := c.Account.DashboardMode(ctx)
			if len(args) == 1 {
				mode = c.Account.SetDashboardMode(ctx, account.Mode(args[0]))
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), mode)
			return err
		})
}
