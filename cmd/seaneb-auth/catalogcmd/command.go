package catalogcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seaneb/seaneb-auth/internal/business"
	"github.com/seaneb/seaneb-auth/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse products, categories and cities",
	}

	cmd.AddCommand(
		productsCmd(buildInfo),
		searchCmd(buildInfo),
		categoriesCmd(buildInfo),
		createCategoryCmd(buildInfo),
		citiesCmd(buildInfo),
	)

	return cmd
}

func productsCmd(buildInfo string) *cobra.Command {
	var public bool

	cmd := cmdutils.ClientCommand("products", "List products", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			list := c.Catalog.List
			if public {
				list = c.Catalog.ListPublic
			}

			products, err := list(ctx)
			if err != nil {
				return err
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), products)
		})

	cmd.Flags().BoolVar(&public, "public", false, "list without a session")

	return cmd
}

func searchCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("search QUERY", "Search products", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			list, err := c.Catalog.SearchPublic(ctx, args[0])
			if err != nil {
				return err
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), list)
		})
}

func categoriesCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("categories", "List the active main categories", buildInfo, cobra.NoArgs,
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, _ []string) error {
			list, err := c.Catalog.ActiveCategories(ctx)
			if err != nil {
				return err
			}

			return cmdutils.PrintYAML(cmd.OutOrStdout(), list)
		})
}

func createCategoryCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("create-category NAME", "Create a main category", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			id, err := c.Catalog.CreateMainCategory(ctx, args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		})
}

func citiesCmd(buildInfo string) *cobra.Command {
	return cmdutils.ClientCommand("cities INPUT", "Suggest cities", buildInfo, cobra.ExactArgs(1),
		func(ctx context.Context, cmd *cobra.Command, c *business.Client, args []string) error {
			return cmdutils.PrintYAML(cmd.OutOrStdout(), c.Catalog.Cities(ctx, args[0]))
		})
}
