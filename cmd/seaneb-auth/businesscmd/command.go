package businesscmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seaneb/seaneb-auth/internal/business"
	"github.com/seaneb/seaneb-auth/internal/cmdutils"
	"github.com/seaneb/seaneb-auth/pkg/merchant"
)

type registered struct {
	BusinessID    string `yaml:"business_id"`
	BranchID      string `yaml:"branch_id"`
	BusinessName  string `yaml:"business_name"`
	PANVerified   bool   `yaml:"pan_verified"`
	GSTINVerified bool   `yaml:"gstin_verified"`
}

func Cmd(buildInfo string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "business",
		Short: "Register and manage businesses",
	}

	cmd.AddCommand(
		registerCmd(buildInfo),
		branchCmd(buildInfo),
		listCmd(buildInfo),
		getCmd(buildInfo),
		updateCmd(buildInfo),
		deleteCmd(buildInfo),
		autocompleteCmd(buildInfo),
		verifyPANCmd(buildInfo),
		verifyGSTCmd(buildInfo),
	)

	return cmd
}

func registerCmd(buildInfo string) *cobra.Command {
	var file string

	cmd := cmdutils.ClientCommand("register", "Register a business from a YAML draft", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			var r merchant.Registration
			if err := cmdutils.ReadYAML(file, cmd.InOrStdin(), &r); err != nil {
				return err
			}

			res, err := c.Merchant.Register(ctx, r)
			if err != nil {
				return err
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), registered(*res))
		})

	cmd.Flags().StringVarP(&file, "file", "f", "-", "registration YAML, - for stdin")

	return cmd
}

func branchCmd(buildInfo string) *cobra.Command {
	var file string

	cmd := cmdutils.ClientCommand("branch", "Add a branch from a YAML draft", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			var b merchant.Branch
			if err := cmdutils.ReadYAML(file, cmd.InOrStdin(), &b); err != nil {
				return err
			}

			id, err := c.Merchant.CreateBranch(ctx, b)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		})

	cmd.Flags().StringVarP(&file, "file", "f", "-", "branch YAML, - for stdin")

	return cmd
}

func listCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("list", "List your businesses", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			list, err := c.Merchant.List(ctx)
			if err != nil {
				return err
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), list)
		})
}

func getCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("get ID", "Show a business", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			b, err := c.Merchant.Get(ctx, args[0])
			if err != nil {
				return err
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), b)
		})
}

func updateCmd(buildInfo string) *cobra.Command {
	var file string

	cmd := cmdutils.ClientCommand("update ID", "Update a business from a YAML document", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			var u merchant.Update
			if err := cmdutils.ReadYAML(file, cmd.InOrStdin(), &u); err != nil {
				return err
			}

			b, err := c.Merchant.Update(ctx, args[0], u)
			if err != nil {
				return err
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), b)
		})

	cmd.Flags().StringVarP(&file, "file", "f", "-", "update YAML, - for stdin")

	return cmd
}

func deleteCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("delete ID", "Delete a business", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, _ *cobra.Command, c *business.Client, args []string) error {
			return c.Merchant.Delete(ctx, args[0])
		})
}

func autocompleteCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("autocomplete INPUT", "Suggest businesses by name", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			return cmdutils.PrintYAML(cmd.OutOrStdout(), c.Merchant.Autocomplete(ctx, args[0]))
		})
}

func verifyPANCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("verify-pan PAN BRANCH_ID", "Verify the PAN of a branch", buildInfo, cobra.ExactArgs(2),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			if err := c.Merchant.VerifyPAN(ctx, args[0], args[1]); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "PAN verified")
			return err
		})
}

func verifyGSTCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("verify-gst GSTIN BRANCH_ID", "Verify the GSTIN of a branch", buildInfo, cobra.ExactArgs(2),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			if err := c.Merchant.VerifyGST(ctx, args[0], args[1]); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "GSTIN verified")
			return err
		})
}
