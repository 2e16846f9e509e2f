// Package catalog decodes catalog documents: the seed file with businesses
// and products, and single product records from bulk exports.
package catalog

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/business"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

// Catalog is a full catalog document.
type Catalog struct {
	Businesses []business.Business
	Products   []product.Product
}

// Decode parses a catalog document of the form
// {"businesses":[...],"products":[...]}.
func Decode(data []byte) (*Catalog, error) {
	var c Catalog
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "businesses":
			return d.Arr(func(d *jx.Decoder) error {
				b, err := decodeBusiness(d)
				if err != nil {
					return errors.Wrapf(err, "business %d", len(c.Businesses))
				}
				c.Businesses = append(c.Businesses, b)
				return nil
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := DecodeProduct(d)
				if err != nil {
					return errors.Wrapf(err, "product %d", len(c.Products))
				}
				c.Products = append(c.Products, p)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// validate checks that every product references a business of the document.
func (c *Catalog) validate() error {
	known := make(map[string]struct{}, len(c.Businesses))
	for _, b := range c.Businesses {
		if _, dup := known[b.ID]; dup {
			return errors.Errorf("duplicate business %q", b.ID)
		}
		known[b.ID] = struct{}{}
	}
	for _, p := range c.Products {
		if _, ok := known[p.Business.ID]; !ok {
			return errors.Errorf("product %s references unknown business %q", p.ID, p.Business.ID)
		}
	}
	return nil
}

func decodeBusiness(d *jx.Decoder) (business.Business, error) {
	var (
		b        business.Business
		lat, lon bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			b.ID, err = d.Str()
		case "name":
			b.Name, err = d.Str()
		case "activity":
			b.Activity, err = d.Str()
		case "location":
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				l := &b.Location
				switch key {
				case "country":
					l.Country, err = d.Str()
				case "city":
					l.City, err = d.Str()
				case "postCode":
					l.PostCode, err = d.Str()
				case "street":
					l.Street, err = d.Str()
				case "building":
					l.Building, err = d.Str()
				case "latitude":
					l.Coords.Latitude, err = d.Float64()
					lat = true
				case "longitude":
					l.Coords.Longitude, err = d.Float64()
					lon = true
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return b, err
	}

	if b.ID == "" {
		return b, errors.New("missing id")
	}
	if lat != lon {
		return b, errors.Errorf("business %s: latitude and longitude must be given together", b.ID)
	}
	b.Located = lat && lon
	if b.Located && !b.Location.Coords.Valid() {
		return b, errors.Errorf("business %s: coordinates %s out of range", b.ID, b.Location.Coords)
	}
	return b, nil
}

// DecodeProduct parses a single product record. Prices may be given as JSON
// strings or numbers.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "businessId":
			p.Business.ID, err = d.Str()
		case "activity":
			p.Business.Activity, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "discount":
			p.Discount, err = d.Int()
		case "category":
			p.Category, err = d.Str()
		case "images":
			p.Images = []string{}
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				p.Images = append(p.Images, s)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return p, err
	}
	return p, validateProduct(p)
}

func validateProduct(p product.Product) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return errors.Errorf("product id %q is not a UUID", p.ID)
	}
	if id.String() != p.ID {
		return errors.Errorf("product id %q is not in canonical form", p.ID)
	}
	switch {
	case p.Business.ID == "":
		return errors.Errorf("product %s: missing businessId", p.ID)
	case p.Name == "":
		return errors.Errorf("product %s: missing name", p.ID)
	case p.Category == "":
		return errors.Errorf("product %s: missing category", p.ID)
	case p.Price.IsNegative():
		return errors.Errorf("product %s: negative price", p.ID)
	case p.Discount < 0 || p.Discount > 100:
		return errors.Errorf("product %s: discount %d out of range", p.ID, p.Discount)
	}
	return nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}
