package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tracker/internal/catalog"
)

func (a *app) newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Add a category with two products in one unit of work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, store, err := a.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			defer e.Close()

			c, n, err := catalog.RunDemo(cmd.Context(), e)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), c)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "persisted %d entities\n", n)
			printCategory(out, c)
			return nil
		},
	}
}
