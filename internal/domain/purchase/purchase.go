// Package purchase turns the items of a cart into priced purchases grouped by
// the business that sells them.
package purchase

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Category is the kind of a purchase request item. The set of categories is
// closed: every value has a branch in Aggregate.
type Category string

const (
	// CategoryClothes items carry a size.
	CategoryClothes Category = "CLOTHES"
	// CategorySweets items carry no options.
	CategorySweets Category = "SWEETS"
)

// Known reports whether the category has a calculation branch.
func (c Category) Known() bool {
	switch c {
	case CategoryClothes, CategorySweets:
		return true
	default:
		return false
	}
}

// Options are the category specific options of an item. The interface is
// sealed; ClothesOptions and SweetsOptions are its only implementations.
type Options interface {
	category() Category
}

// Size is a clothing size with an optional free-form description.
type Size struct {
	Code        string
	Description string
}

// Label renders the size as "M" or "M (Slim fit)".
func (s Size) Label() string {
	if s.Description == "" {
		return s.Code
	}
	return fmt.Sprintf("%s (%s)", s.Code, s.Description)
}

// ClothesOptions are the options of a CategoryClothes item.
type ClothesOptions struct {
	Size Size
}

func (ClothesOptions) category() Category { return CategoryClothes }

// SweetsOptions are the options of a CategorySweets item.
type SweetsOptions struct{}

func (SweetsOptions) category() Category { return CategorySweets }

// Item is a cart line as submitted by the client.
type Item struct {
	ID       string
	Category Category
	Options  Options
}

// CalculatedPurchase is the priced representation of a single item.
type CalculatedPurchase struct {
	ID               string
	Name             string
	Price            decimal.Decimal
	DiscountPrice    decimal.Decimal
	Discount         int
	Category         string
	Images           []string
	BusinessActivity string
	// Size is set for clothes only.
	Size string
}

// UnsupportedCategoryError indicates an item category without a calculation branch.
type UnsupportedCategoryError struct {
	ID       string
	Category Category
}

func (e *UnsupportedCategoryError) Error() string {
	return fmt.Sprintf("category %q of purchase %s is not supported", e.Category, e.ID)
}

// UnmatchedPurchaseError indicates a product with no corresponding request item.
type UnmatchedPurchaseError struct {
	ProductID string
}

func (e *UnmatchedPurchaseError) Error() string {
	return fmt.Sprintf("product %s has no matching purchase item", e.ProductID)
}

// InvalidOptionsError indicates item options that do not belong to the item category.
type InvalidOptionsError struct {
	ID       string
	Category Category
}

func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("purchase %s has invalid options for category %q", e.ID, e.Category)
}
