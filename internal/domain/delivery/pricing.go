// Package delivery quotes the delivery part of a checkout: where the order
// goes, how much the trip costs and which days it can arrive on.
package delivery

import "math"

// Tariff holds the delivery price components.
type Tariff struct {
	// Base is charged for every delivery.
	Base int64
	// PerPartner is charged for every business the courier picks up from.
	PerPartner int64
	// PerKm is charged for every started kilometre of the summed distances.
	PerKm int64
	// Minimum is the floor of the final price.
	Minimum int64
}

// DefaultTariff is the production tariff.
var DefaultTariff = Tariff{
	Base:       10,
	PerPartner: 5,
	PerKm:      1,
	Minimum:    20,
}

// Price computes the delivery price for the given pickup distances in metres.
func (t Tariff) Price(distances []float64) int64 {
	var total float64
	for _, d := range distances {
		total += d
	}
	km := int64(math.Ceil(total / 1000))

	price := t.Base + t.PerPartner*int64(len(distances)) + km*t.PerKm
	if price < t.Minimum {
		return t.Minimum
	}
	return price
}

// Price computes the delivery price with DefaultTariff.
func Price(distances []float64) int64 {
	return DefaultTariff.Price(distances)
}
