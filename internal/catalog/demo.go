package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/tracker/internal/tracker"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

// ErrNotFound is returned when a lookup by key matches nothing.
var ErrNotFound = errors.New("not found")

// RunDemo adds one category with two products and persists them in one
// unit of work. The returned category carries the generated keys.
func RunDemo(ctx context.Context, e *tracker.Engine) (*Category, int, error) {
	c := &Category{
		Name: "Category 1",
		Products: []*Product{
			{Name: "Product 1", Price: decimal.NewFromInt(100)},
			{Name: "Product 2", Price: decimal.NewFromInt(200)},
		},
	}
	if _, err := e.Add(c); err != nil {
		return nil, 0, fmt.Errorf("add demo category: %w", err)
	}
	n, err := e.Persist(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("persist demo category: %w", err)
	}
	return c, n, nil
}

// FindCategory loads the category with id.
func FindCategory(ctx context.Context, e *tracker.Engine, id int64) (*Category, error) {
	found, err := tracker.Select[Category](ctx, e, types.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	return found[0], nil
}

// FindProduct loads the product with id. Soft-deleted products are found
// only when unfiltered is set.
func FindProduct(ctx context.Context, e *tracker.Engine, id int64, unfiltered bool) (*Product, error) {
	sel := tracker.Select[Product]
	if unfiltered {
		sel = tracker.SelectUnfiltered[Product]
	}
	found, err := sel(ctx, e, types.Eq("id", id))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return found[0], nil
}
