package catalog

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/tracker/internal/tracker"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

// Table names.
const (
	TableCategories      = "categories"
	TableProducts        = "products"
	TableProductFeatures = "product_features"
	TablePersons         = "persons"
	TableManagers        = "managers"
	TableEmployees       = "employees"
	TableTeachers        = "teachers"
	TableStudents        = "students"
)

// Constraint names shared by the descriptors and the DDL.
const (
	CheckProductPrice   = "CK_Product_Price"
	CheckFirstNameWidth = "CK_Person_FirstName"
	FirstNameMaxLength  = 50
)

// Descriptors returns the type descriptors of the catalog in registration
// order.
func Descriptors() []types.Descriptor {
	return []types.Descriptor{
		{
			Entity:      (*Category)(nil),
			Table:       TableCategories,
			Key:         []string{"id"},
			KeyStrategy: types.KeyAuto,
		},
		{
			Entity:      (*Product)(nil),
			Table:       TableProducts,
			Key:         []string{"id"},
			KeyStrategy: types.KeyAuto,
			Generated:   []string{"created_date"},
			Defaults: []types.DefaultRule{{
				Column: "updated_date",
				When:   types.OnInsert | types.OnUpdate,
				Value:  func(now time.Time) any { return now },
			}},
			Checks: []types.CheckConstraint{{
				Name:    CheckProductPrice,
				Columns: []string{"price", "discount_price"},
				Valid:   validPrice,
			}},
			Filter: []types.Predicate{types.Eq("is_deleted", false)},
			Relationships: []types.Relationship{{
				Name:       "FK_Products_Categories",
				Principal:  (*Category)(nil),
				ForeignKey: "category_id",
				OnDelete:   types.DeleteCascadeStore,
				Parent:     func(x any) any { return x.(*Product).Category },
				Children: func(x any) []any {
					c := x.(*Category)
					out := make([]any, len(c.Products))
					for i, p := range c.Products {
						out[i] = p
					}
					return out
				},
			}},
		},
		{
			Entity:      (*ProductFeature)(nil),
			Table:       TableProductFeatures,
			Key:         []string{"id"},
			KeyStrategy: types.KeyAssigned,
			Relationships: []types.Relationship{{
				Name:       "FK_ProductFeatures_Products",
				Principal:  (*Product)(nil),
				ForeignKey: "id",
				OnDelete:   types.DeleteCascadeTracked,
				Parent:     func(x any) any { return x.(*ProductFeature).Product },
				Children: func(x any) []any {
					if f := x.(*Product).Features; f != nil {
						return []any{f}
					}
					return nil
				},
			}},
		},
		{
			Entity:      (*Person)(nil),
			Table:       TablePersons,
			Key:         []string{"id"},
			KeyStrategy: types.KeyAuto,
			Checks: []types.CheckConstraint{{
				Name:    CheckFirstNameWidth,
				Columns: []string{"first_name"},
				Valid: func(v types.Values) bool {
					s, _ := v["first_name"].(string)
					return utf8.RuneCountInString(s) <= FirstNameMaxLength
				},
			}},
		},
		{
			Entity: (*Manager)(nil),
			Base:   (*Person)(nil),
			Table:  TableManagers,
		},
		{
			Entity: (*Employee)(nil),
			Base:   (*Person)(nil),
			Table:  TableEmployees,
		},
		{
			Entity:      (*Teacher)(nil),
			Table:       TableTeachers,
			Key:         []string{"id"},
			KeyStrategy: types.KeyClient,
			NewKey:      newUUID,
		},
		{
			Entity:      (*Student)(nil),
			Table:       TableStudents,
			Key:         []string{"id"},
			KeyStrategy: types.KeyClient,
			NewKey:      newUUID,
			Relationships: []types.Relationship{{
				Name:       "FK_Students_Teachers",
				Principal:  (*Teacher)(nil),
				ForeignKey: "teacher_id",
				OnDelete:   types.DeleteRestrict,
				Parent:     func(x any) any { return x.(*Student).Teacher },
				Children: func(x any) []any {
					t := x.(*Teacher)
					out := make([]any, len(t.Students))
					for i, s := range t.Students {
						out[i] = s
					}
					return out
				},
			}},
		},
	}
}

// NewModel returns a model with every catalog type registered.
func NewModel() (*tracker.Model, error) {
	m := tracker.NewModel()
	for _, d := range Descriptors() {
		if err := m.Register(d); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func validPrice(v types.Values) bool {
	price, ok := v["price"].(decimal.Decimal)
	if !ok {
		return false
	}
	discount, ok := v["discount_price"].(decimal.Decimal)
	if !ok {
		return false
	}
	return price.GreaterThan(discount)
}

func newUUID() any {
	return uuid.Must(uuid.NewV7())
}
