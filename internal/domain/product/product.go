package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item sold by a business.
type Product struct {
	ID   string
	Name string
	// Price is the list price before discount.
	Price decimal.Decimal
	// Discount is a percentage in the 0..100 range.
	Discount int
	Category string
	Images   []string
	Business Business
}

// Business is the seller reference embedded in a product.
type Business struct {
	ID       string
	Activity string
}

// DiscountPrice returns the price after applying the product discount,
// rounded to two decimal places.
func (p Product) DiscountPrice() decimal.Decimal {
	off := p.Price.Mul(decimal.NewFromInt(int64(p.Discount))).Div(decimal.NewFromInt(100))
	return p.Price.Sub(off).Round(2)
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
