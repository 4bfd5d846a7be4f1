package accountcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seaneb/seaneb-auth/internal/business"
	"github.com/seaneb/seaneb-auth/internal/cmdutils"
	"github.com/seaneb/seaneb-auth/pkg/account"
)

var errNoDraft = errors.New("no profile file given and no saved draft")

func Cmd(buildInfo string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Complete the user profile",
	}

	draft := &cobra.Command{
		Use:   "draft",
		Short: "Manage the saved profile draft",
	}
	draft.AddCommand(
		saveDraftCmd(buildInfo),
		showDraftCmd(buildInfo),
		deleteDraftCmd(buildInfo),
	)

	cmd.AddCommand(signupCmd(buildInfo), draft)

	return cmd
}

func signupCmd(buildInfo string) *cobra.Command {
	var (
		file       string
		productKey string
	)

	cmd := cmdutils.ClientCommand("signup", "Create the account of the verified mobile number", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			var d account.Draft
			switch {
			case file != "":
				if err := cmdutils.ReadYAML(file, cmd.InOrStdin(), &d); err != nil {
					return err
				}
			default:
				saved, ok := c.Account.LoadDraft(ctx)
				if !ok {
					return errNoDraft
				}
				d = saved
			}

			profile := d.Profile()
			profile.ProductKey = productKey

			user, err := c.Account.Signup(ctx, profile)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Welcome %s %s\n", user.FirstName, user.LastName)
			return err
		})

	cmd.Flags().StringVarP(&file, "file", "f", "", "profile YAML, - for stdin; defaults to the saved draft")
	cmd.Flags().StringVar(&productKey, "product", "", "product key to try after the working one")

	return cmd
}

func saveDraftCmd(buildInfo string) *cobra.Command {
	var file string

	cmd := cmdutils.ClientCommand("save", "Save a profile draft", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			var d account.Draft
			if err := cmdutils.ReadYAML(file, cmd.InOrStdin(), &d); err != nil {
				return err
			}

			c.Account.SaveDraft(ctx, d)

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Draft saved")
			return err
		})

	cmd.Flags().StringVarP(&file, "file", "f", "-", "profile YAML, - for stdin")

	return cmd
}

func showDraftCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("show", "Print the saved profile draft", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			d, ok := c.Account.LoadDraft(ctx)
			if !ok {
				return errNoDraft
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), d)
		})
}

func deleteDraftCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("delete", "Delete the saved profile draft", buildInfo, cobra.NoArgs,
		func(ctx context.Context, _ *cobra.Command, c *business.Client, _ []string) error {
			c.Account.DeleteDraft(ctx)
			return nil
		})
}
