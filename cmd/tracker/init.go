package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tracker/internal/paths"
	"github.com/mesh-intelligence/tracker/pkg/storage"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and the catalog schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.OpenCatalog(cmd.Context(), a.cfg)
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			if err := store.Close(); err != nil {
				return fmt.Errorf("close storage: %w", err)
			}

			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"config":  paths.ConfigFile(a.configDir),
					"data":    a.dataDir,
					"backend": a.cfg.Backend,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "tracker initialized")
			fmt.Fprintln(out, "  config: ", paths.ConfigFile(a.configDir))
			fmt.Fprintln(out, "  data:   ", a.dataDir)
			fmt.Fprintln(out, "  backend:", a.cfg.Backend)
			return nil
		},
	}
}
