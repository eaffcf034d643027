package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tracker/internal/catalog"
)

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func printCategory(w io.Writer, c *catalog.Category) {
	fmt.Fprintf(w, "%d\t%s\n", c.ID, c.Name)
	for _, p := range c.Products {
		fmt.Fprint(w, "  ")
		printProduct(w, p)
	}
}

func printProduct(w io.Writer, p *catalog.Product) {
	deleted := ""
	if p.IsDeleted {
		deleted = "\t(deleted)"
	}
	fmt.Fprintf(w, "%d\t%s\t%s\tcategory %d%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.CategoryID, deleted)
}

// parseID parses a positional key argument.
func parseID(cmd *cobra.Command, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s: invalid id %q", errUsage, cmd.CommandPath(), arg)
	}
	return id, nil
}
