package otpcmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seaneb/seaneb-auth/internal/business"
	"github.com/seaneb/seaneb-auth/internal/cmdutils"
	"github.com/seaneb/seaneb-auth/pkg/otp"
)

type verification struct {
	ExistingUser     bool      `yaml:"existing_user"`
	RedirectTo       string    `yaml:"redirect_to,omitempty"`
	SessionStartedAt time.Time `yaml:"session_started_at"`
}

func Cmd(buildInfo string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Mobile and email OTP verification",
	}

	cmd.AddCommand(
		sendCmd(buildInfo),
		resendCmd(buildInfo),
		verifyCmd(buildInfo),
		emailCmd(buildInfo),
		verifyEmailCmd(buildInfo),
		statusCmd(buildInfo),
	)

	return cmd
}

func sendCmd(buildInfo string) *cobra.Command {
	var req otp.MobileRequest

	cmd := cmdutils.ClientCommand("send", "Send an OTP to a mobile number", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			if err := c.OTP.StartMobile(ctx, req); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "OTP sent via %s\n", req.Via)
			return err
		})

	cmd.Flags().StringVar(&req.CountryCode, "cc", "91", "country code")
	cmd.Flags().StringVar(&req.MobileNumber, "mobile", "", "mobile number")
	cmd.Flags().StringVar(&req.Via, "via", otp.ViaWhatsApp, "delivery channel: whatsapp or sms")
	cmd.Flags().IntVar(&req.Purpose, "purpose", otp.PurposeLogin, "0 login, 2 business mobile")
	cmd.Flags().StringVar(&req.RedirectTo, "redirect", "", "where to continue after verification")
	_ = cmd.MarkFlagRequired("mobile")

	return cmd
}

func resendCmd(buildInfo string) *cobra.Command {
	var via string

	cmd := cmdutils.ClientCommand("resend", "Send the code again for the pending mobile verification", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			if err := c.OTP.SendOTP(ctx, via); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "OTP sent")
			return err
		})

	cmd.Flags().StringVar(&via, "via", "", "delivery channel, defaults to the one used before")

	return cmd
}

func verifyCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("verify CODE", "Verify the mobile OTP", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			res, err := c.OTP.VerifyOTP(ctx, args[0])
			if err != nil {
				return err
			}

			return printResult(cmd, res)
		})
}

func emailCmd(buildInfo string) *cobra.Command {
	var req otp.EmailRequest

	cmd := cmdutils.ClientCommand("email", "Send an OTP to an email address", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			if err := c.OTP.StartEmail(ctx, req); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "OTP sent to", req.Email)
			return err
		})

	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().IntVar(&req.Purpose, "purpose", otp.PurposeSignupEmail, "1 signup email, 3 business email")
	cmd.Flags().StringVar(&req.RedirectTo, "redirect", "", "where to continue after verification")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func verifyEmailCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("verify-email CODE", "Verify the email OTP", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			res, err := c.OTP.VerifyEmailOTP(ctx, args[0])
			if err != nil {
				return err
			}

			return printResult(cmd, res)
		})
}

func statusCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("status", "Show the pending verification", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			current, err := c.OTP.Current(ctx)
			if err != nil {
				return err
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), struct {
				Verification otp.Context   `yaml:"verification"`
				ResendIn     time.Duration `yaml:"resend_in"`
			}{current, c.OTP.Cooldown(ctx)})
		})
}

func printResult(cmd *cobra.Command, res *otp.Result) error {
	return cmdutils.PrintYAML(cmd.OutOrStdout(), verification{
		ExistingUser:     res.ExistingUser,
		RedirectTo:       res.RedirectTo,
		SessionStartedAt: res.SessionStartedAt,
	})
}
