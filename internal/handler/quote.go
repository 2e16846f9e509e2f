package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/delivery"
	"github.com/xenking/kart-checkout/internal/domain/geo"
	"github.com/xenking/kart-checkout/internal/domain/purchase"
)

// CalculateCheckout serves POST /api/checkout/calculate.
func (h *Handler) CalculateCheckout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		fail(w, r, errors.Wrap(err, "read body"))
		return
	}

	req, err := decodeCheckoutRequest(jx.DecodeBytes(body))
	if err != nil {
		fail(w, r, err)
		return
	}

	quote, err := h.checkout.Calculate(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeQuote(e, quote)
	})
}

func decodeCheckoutRequest(d *jx.Decoder) (checkout.Request, error) {
	var req checkout.Request
	if d.Next() != jx.Object {
		return req, badRequest("request body must be a JSON object")
	}

	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "purchases":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d, len(req.Purchases))
				if err != nil {
					return err
				}
				req.Purchases = append(req.Purchases, item)
				return nil
			})
		case "location":
			if d.Next() == jx.Null {
				return d.Null()
			}
			loc, err := decodeLocation(d)
			if err != nil {
				return err
			}
			req.Location = &loc
			return nil
		case "deliveryDate":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			t, err := delivery.ParseDate(s)
			if err != nil {
				return badRequest("deliveryDate %q is not an ISO 8601 date", s)
			}
			req.DeliveryDate = &t
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		var badReq *badRequestError
		if errors.As(err, &badReq) {
			return req, badReq
		}
		return req, badRequest("malformed JSON: %v", err)
	}
	return req, nil
}

func decodeItem(d *jx.Decoder, idx int) (purchase.Item, error) {
	var (
		id, typ string
		size    *purchase.Size
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			id, err = d.Str()
		case "type":
			typ, err = d.Str()
		case "options":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Obj(func(d *jx.Decoder, key string) error {
				if key != "size" {
					return d.Skip()
				}
				s, err := decodeSize(d)
				size = &s
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return purchase.Item{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return purchase.Item{}, badRequest("purchases[%d].id must be a UUID", idx)
	}
	if typ == "" {
		return purchase.Item{}, badRequest("purchases[%d].type is required", idx)
	}

	item := purchase.Item{ID: parsed.String(), Category: purchase.Category(typ)}
	switch item.Category {
	case purchase.CategoryClothes:
		if size == nil || size.Code == "" {
			return purchase.Item{}, badRequest("purchases[%d].options.size is required for %s", idx, typ)
		}
		item.Options = purchase.ClothesOptions{Size: *size}
	case purchase.CategorySweets:
		item.Options = purchase.SweetsOptions{}
	}
	return item, nil
}

// decodeSize accepts {"code":"M","description":"Slim fit"} or a bare "M".
func decodeSize(d *jx.Decoder) (purchase.Size, error) {
	var s purchase.Size
	switch d.Next() {
	case jx.String:
		code, err := d.Str()
		s.Code = code
		return s, err
	case jx.Object:
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "code":
				s.Code, err = d.Str()
			case "description":
				if d.Next() == jx.Null {
					return d.Null()
				}
				s.Description, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
		return s, err
	default:
		return s, badRequest("size must be a string or an object")
	}
}

func decodeLocation(d *jx.Decoder) (geo.LocationInput, error) {
	var (
		loc       geo.LocationInput
		hasCoords bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "country":
			loc.Country, err = d.Str()
		case "city":
			loc.City, err = d.Str()
		case "postCode":
			loc.PostCode, err = d.Str()
		case "street":
			loc.Street, err = d.Str()
		case "building":
			loc.Building, err = d.Str()
		case "coords":
			hasCoords = true
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "latitude":
					loc.Coords.Latitude, err = d.Float64()
				case "longitude":
					loc.Coords.Longitude, err = d.Float64()
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
		return loc, err
	}
	if !hasCoords {
		return loc, badRequest("location.coords is required")
	}
	if !loc.Coords.Valid() {
		return loc, badRequest("location.coords %s out of range", loc.Coords)
	}
	return loc, nil
}

func (h *Handler) encodeQuote(e *jx.Encoder, q *checkout.Quote) {
	e.ObjStart()
	e.Field("delivery", func(e *jx.Encoder) { encodeDelivery(e, q.Delivery) })
	e.Field("purchases", func(e *jx.Encoder) {
		e.ObjStart()
		for businessID, purchases := range q.Purchases.All() {
			e.Field(businessID, func(e *jx.Encoder) {
				e.ArrStart()
				for _, p := range purchases {
					h.encodePurchase(e, p)
				}
				e.ArrEnd()
			})
		}
		e.ObjEnd()
	})
	e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, q.Subtotal) })
	e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, q.Total) })
	e.ObjEnd()
}

func encodeDelivery(e *jx.Encoder, d *delivery.CalculatedDelivery) {
	e.ObjStart()
	e.Field("location", func(e *jx.Encoder) {
		if d.Location == nil {
			e.Null()
			return
		}
		encodeLocation(e, d.Location)
	})
	e.Field("price", func(e *jx.Encoder) { e.Int64(d.Price) })
	e.Field("activeDate", func(e *jx.Encoder) { e.Int64(d.ActiveDate) })
	e.Field("activeDateFormat", func(e *jx.Encoder) { e.Str(d.ActiveDateFormat) })
	e.Field("deliveries", func(e *jx.Encoder) {
		e.ArrStart()
		for _, day := range d.Deliveries {
			e.Str(day)
		}
		e.ArrEnd()
	})
	e.Field("distances", func(e *jx.Encoder) {
		e.ArrStart()
		for _, m := range d.Distances {
			e.Float64(m)
		}
		e.ArrEnd()
	})
	e.ObjEnd()
}

func encodeLocation(e *jx.Encoder, l *geo.Location) {
	e.ObjStart()
	e.Field("country", func(e *jx.Encoder) { e.Str(l.Country) })
	e.Field("city", func(e *jx.Encoder) { e.Str(l.City) })
	e.Field("postCode", func(e *jx.Encoder) { e.Str(l.PostCode) })
	e.Field("street", func(e *jx.Encoder) { e.Str(l.Street) })
	e.Field("building", func(e *jx.Encoder) { e.Str(l.Building) })
	e.Field("coords", func(e *jx.Encoder) {
		e.ObjStart()
		e.Field("latitude", func(e *jx.Encoder) { e.Float64(l.Coords.Latitude) })
		e.Field("longitude", func(e *jx.Encoder) { e.Float64(l.Coords.Longitude) })
		e.ObjEnd()
	})
	e.ObjEnd()
}

func (h *Handler) encodePurchase(e *jx.Encoder, p purchase.CalculatedPurchase) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
	e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
	e.Field("discountPrice", func(e *jx.Encoder) { encodeDecimal(e, p.DiscountPrice) })
	e.Field("discount", func(e *jx.Encoder) { e.Int(p.Discount) })
	e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
	e.Field("images", func(e *jx.Encoder) { h.encodeImages(e, p.Images) })
	e.Field("businessActivity", func(e *jx.Encoder) { e.Str(p.BusinessActivity) })
	if p.Size != "" {
		e.Field("size", func(e *jx.Encoder) { e.Str(p.Size) })
	}
	e.ObjEnd()
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}
