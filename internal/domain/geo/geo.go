// Package geo holds the location value types shared by delivery pricing and
// the business catalog.
package geo

import "fmt"

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the point lies within the WGS84 coordinate ranges.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Location is the canonical delivery location of a checkout.
type Location struct {
	Country  string
	City     string
	PostCode string
	Street   string
	Building string
	Coords   Coordinates
}

// LocationInput is the address payload supplied by the client. Fields are
// expected to be validated by the caller.
type LocationInput struct {
	Country  string
	City     string
	PostCode string
	Street   string
	Building string
	Coords   Coordinates
}

// Resolve converts an optional client payload into a canonical Location.
// A nil payload means the delivery location is not known yet and yields nil.
func Resolve(in *LocationInput) *Location {
	if in == nil {
		return nil
	}
	return &Location{
		Country:  in.Country,
		City:     in.City,
		PostCode: in.PostCode,
		Street:   in.Street,
		Building: in.Building,
		Coords:   in.Coords,
	}
}
