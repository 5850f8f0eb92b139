package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the product catalog",
	}

	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	catalogCmd.AddCommand(newCatalogRefreshCommand(ctx))

	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.catalogStore()
			if err != nil {
				return err
			}
			products, err := store.Refresh(false)
			if err != nil {
				return err
			}
			if pendingOnly {
				filtered := products[:0:0]
				for _, product := range products {
					if !product.HasVtonImage() {
						filtered = append(filtered, product)
					}
				}
				products = filtered
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"products": products, "total": len(products)})
			}

			out := cmd.OutOrStdout()
			if len(products) == 0 {
				fmt.Fprintln(out, "No products found")
				return nil
			}
			rows := make([][]string, 0, len(products))
			for _, product := range products {
				ready := "no"
				if product.HasVtonImage() {
					ready = "yes"
				}
				rows = append(rows, []string{
					product.ID,
					product.Name,
					product.Brand,
					strconv.FormatFloat(product.MRP, 'f', -1, 64),
					ready,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Brand", "MRP", "Vton Ready"},
				rows,
				3,
			))
			fmt.Fprintf(out, "%d products\n", len(products))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	cmd.Flags().BoolVar(&pendingOnly, "pending-only", false, "Only products without a try-on ready image")
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <product-id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.catalogStore()
			if err != nil {
				return err
			}
			product, err := store.Lookup(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, product)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", product.ID)
			fmt.Fprintf(out, "Name:        %s\n", product.Name)
			fmt.Fprintf(out, "Brand:       %s\n", product.Brand)
			fmt.Fprintf(out, "Category:    %s / %s\n", product.Category, product.SubCategory)
			fmt.Fprintf(out, "MRP:         %.2f (discount %.0f%%)\n", product.MRP, product.DiscountPercent)
			fmt.Fprintf(out, "Thumbnail:   %s\n", product.ThumbnailImage)
			fmt.Fprintf(out, "Vton ready:  %s\n", orDash(product.VtonImage))
			fmt.Fprintf(out, "Other:       %v\n", product.OtherImages)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func newCatalogRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a catalog rescan",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.catalogStore()
			if err != nil {
				return err
			}
			products, err := store.Refresh(true)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rescanned catalog: %d products\n", len(products))
			return nil
		},
	}
}
