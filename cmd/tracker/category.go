package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tracker/internal/catalog"
	"github.com/mesh-intelligence/tracker/internal/tracker"
)

func (a *app) newCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
	}
	cmd.AddCommand(a.newCategoryAddCmd(), a.newCategoryListCmd(), a.newCategoryDeleteCmd())
	return cmd
}

func (a *app) newCategoryAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, store, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			c := &catalog.Category{Name: args[0]}
			if _, err := e.Add(c); err != nil {
				return err
			}
			if _, err := e.Persist(cmd.Context()); err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added category %d\n", c.ID)
			return nil
		},
	}
}

func (a *app) newCategoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories with their products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, store, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			categories, err := tracker.Select[catalog.Category](cmd.Context(), e)
			if err != nil {
				return err
			}
			products, err := tracker.Select[catalog.Product](cmd.Context(), e)
			if err != nil {
				return err
			}
			byID := make(map[int64]*catalog.Category, len(categories))
			for _, c := range categories {
				byID[c.ID] = c
			}
			for _, p := range products {
				if c, ok := byID[p.CategoryID]; ok {
					c.Products = append(c.Products, p)
				}
			}

			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), categories)
			}
			for _, c := range categories {
				printCategory(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func (a *app) newCategoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category and, through the store, its products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			e, store, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			c, err := catalog.FindCategory(cmd.Context(), e, id)
			if err != nil {
				return err
			}
			if err := e.MarkRemoved(c); err != nil {
				return err
			}
			if _, err := e.Persist(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted category %d\n", id)
			return nil
		},
	}
}
