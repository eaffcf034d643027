package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tracker/internal/catalog"
	"github.com/mesh-intelligence/tracker/internal/tracker"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

func (a *app) newProductCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage products",
	}
	cmd.AddCommand(
		a.newProductAddCmd(),
		a.newProductListCmd(),
		a.newProductRenameCmd(),
		a.newProductSoftDeleteCmd(),
		a.newProductDeleteCmd(),
	)
	return cmd
}

func (a *app) newProductAddCmd() *cobra.Command {
	var discount string
	cmd := &cobra.Command{
		Use:   "add <category-id> <name> <price>",
		Short: "Add a product to a category",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("%w: invalid price %q", errUsage, args[2])
			}
			p := &catalog.Product{Name: args[1], Price: price, CategoryID: categoryID}
			if discount != "" {
				if p.DiscountPrice, err = decimal.NewFromString(discount); err != nil {
					return fmt.Errorf("%w: invalid discount %q", errUsage, discount)
				}
			}

			e, store, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := catalog.FindCategory(cmd.Context(), e, categoryID); err != nil {
				return err
			}
			if _, err := e.Add(p); err != nil {
				return err
			}
			if _, err := e.Persist(cmd.Context()); err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added product %d\n", p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&discount, "discount", "", "discount price, lower than the price")
	return cmd
}

func (a *app) newProductListCmd() *cobra.Command {
	var all bool
	var categoryID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Long:  "List products. Soft-deleted products are listed only with --all.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, store, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var preds []types.Predicate
			if categoryID > 0 {
				preds = append(preds, types.Eq("category_id", categoryID))
			}
			sel := tracker.Select[catalog.Product]
			if all {
				sel = tracker.SelectUnfiltered[catalog.Product]
			}
			products, err := sel(cmd.Context(), e, preds...)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), products)
			}
			for _, p := range products {
				printProduct(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include soft-deleted products")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "only products of this category")
	return cmd
}

// updateProduct loads a product, applies change, and persists whatever the
// change modified.
func (a *app) updateProduct(cmd *cobra.Command, arg string, unfiltered bool, change func(*tracker.Engine, *catalog.Product) error) (*catalog.Product, error) {
	id, err := parseID(cmd, arg)
	if err != nil {
		return nil, err
	}
	e, store, err := a.openEngine(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	p, err := catalog.FindProduct(cmd.Context(), e, id, unfiltered)
	if err != nil {
		return nil, err
	}
	if err := change(e, p); err != nil {
		return nil, err
	}
	if _, err := e.Persist(cmd.Context()); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *app) newProductRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.updateProduct(cmd, args[0], false, func(_ *tracker.Engine, p *catalog.Product) error {
				p.Name = args[1]
				return nil
			})
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed product %d\n", p.ID)
			return nil
		},
	}
}

func (a *app) newProductSoftDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "soft-delete <id>",
		Short: "Hide a product from queries without deleting its row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.updateProduct(cmd, args[0], false, func(_ *tracker.Engine, p *catalog.Product) error {
				p.IsDeleted = true
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "soft-deleted product %d\n", p.ID)
			return nil
		},
	}
}

func (a *app) newProductDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product and its features",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.updateProduct(cmd, args[0], true, func(e *tracker.Engine, p *catalog.Product) error {
				return e.MarkRemoved(p)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted product %d\n", p.ID)
			return nil
		},
	}
}
