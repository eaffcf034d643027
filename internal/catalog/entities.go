// Package catalog is the sample domain persisted through the tracker engine:
// categories with products and product features, persons with manager and
// employee subtypes stored table-per-type, and teachers with their students.
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category groups products. Deleting a category deletes its products in the
// store.
type Category struct {
	ID       int64      `db:"id" json:"id"`
	Name     string     `db:"name" json:"name"`
	Products []*Product `json:"products,omitempty"`
}

// Product is soft-deletable: queries skip products with IsDeleted set unless
// they ask for unfiltered results.
type Product struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Price         decimal.Decimal `db:"price" json:"price"`
	DiscountPrice decimal.Decimal `db:"discount_price" json:"discount_price"`
	CreatedDate   time.Time       `db:"created_date" json:"created_date"`
	UpdatedDate   *time.Time      `db:"updated_date" json:"updated_date,omitempty"`
	IsDeleted     bool            `db:"is_deleted" json:"is_deleted"`
	CategoryID    int64           `db:"category_id" json:"category_id"`

	Category *Category      `json:"-"`
	Features *ProductFeature `json:"features,omitempty"`
}

// ProductFeature shares its key with the product it describes.
type ProductFeature struct {
	ID     int64  `db:"id" json:"id"`
	Width  int    `db:"width" json:"width"`
	Height int    `db:"height" json:"height"`
	Color  string `db:"color" json:"color"`

	Product *Product `json:"-"`
}

// Person is the base of Manager and Employee.
type Person struct {
	ID        int64  `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// Manager is a Person stored in persons and managers.
type Manager struct {
	Person
	Grade int `db:"grade" json:"grade"`
}

// Employee is a Person stored in persons and employees.
type Employee struct {
	Person
	Salary decimal.Decimal `db:"salary" json:"salary"`
}

// Teacher has client-generated UUID keys.
type Teacher struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	Name     string     `db:"name" json:"name"`
	Students []*Student `json:"students,omitempty"`
}

// Student belongs to a teacher. A teacher with students cannot be deleted.
type Student struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	TeacherID uuid.UUID `db:"teacher_id" json:"teacher_id"`

	Teacher *Teacher `json:"-"`
}
