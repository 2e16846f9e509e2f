// Package business describes sellers and their fulfilment locations.
package business

import (
	"context"

	"github.com/xenking/kart-checkout/internal/domain/geo"
)

// Business is a seller that owns products and ships them from a single location.
type Business struct {
	ID       string
	Name     string
	Activity string
	// Location is the shipping address. Its coordinates are meaningful only
	// when Located is set.
	Location geo.Location
	Located  bool
}

// Locator resolves fulfilment coordinates for a set of businesses. Businesses
// with no known location are absent from the result.
type Locator interface {
	Locations(ctx context.Context, ids []string) (map[string]geo.Coordinates, error)
}
