package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/openkcm/common-sdk/pkg/utils"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/seaneb/seaneb-auth/cmd/seaneb-auth/accountcmd"
	"github.com/seaneb/seaneb-auth/cmd/seaneb-auth/businesscmd"
	"github.com/seaneb/seaneb-auth/cmd/seaneb-auth/catalogcmd"
	"github.com/seaneb/seaneb-auth/cmd/seaneb-auth/keeper"
	"github.com/seaneb/seaneb-auth/cmd/seaneb-auth/otpcmd"
	"github.com/seaneb/seaneb-auth/cmd/seaneb-auth/sessioncmd"
)

var (
	// BuildInfo will be set by the build system
	BuildInfo = "{}"

	isVersionCmd     bool
	gracefulShutdown time.Duration
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "SeaNeB Auth Version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		isVersionCmd = true

		value, err := utils.ExtractFromComplexValue(BuildInfo)
		if err != nil {
			return err
		}

		slog.InfoContext(cmd.Context(), value)

		return nil
	},
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seaneb-auth",
		Short:         "SeaNeB Auth",
		Long:          "SeaNeB marketplace client: OTP login, session keeping, signup and business registration.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().DurationVar(&gracefulShutdown, "graceful-shutdown", 0, "graceful shutdown")

	cmd.AddCommand(
		versionCmd,
		otpcmd.Cmd(BuildInfo),
		sessioncmd.Cmd(BuildInfo),
		accountcmd.Cmd(BuildInfo),
		businesscmd.Cmd(BuildInfo),
		catalogcmd.Cmd(BuildInfo),
		keeper.Cmd(BuildInfo),
	)

	return cmd
}

func execute() error {
	ctx, cancelOnSignal := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancelOnSignal()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slogctx.Error(ctx, "failed to run the command", "error", err)
		_, _ = fmt.Fprintln(os.Stderr, err)

		return err
	}

	if !isVersionCmd && gracefulShutdown > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Graceful shutdown in %s\n", gracefulShutdown)
		time.Sleep(gracefulShutdown)
	}

	return nil
}

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
