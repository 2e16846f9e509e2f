package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-checkout/internal/domain/product"
)

// ListProducts serves GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		fail(w, r, errors.Wrap(err, "list products"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			h.encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

// GetProduct serves GET /api/products/{productId}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		fail(w, r, errors.Wrap(err, "get product"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, *p)
	})
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
	e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
	e.Field("discount", func(e *jx.Encoder) { e.Int(p.Discount) })
	e.Field("discountPrice", func(e *jx.Encoder) { encodeDecimal(e, p.DiscountPrice()) })
	e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
	e.Field("images", func(e *jx.Encoder) { h.encodeImages(e, p.Images) })
	e.Field("business", func(e *jx.Encoder) {
		e.ObjStart()
		e.Field("id", func(e *jx.Encoder) { e.Str(p.Business.ID) })
		e.Field("activity", func(e *jx.Encoder) { e.Str(p.Business.Activity) })
		e.ObjEnd()
	})
	e.ObjEnd()
}

func (h *Handler) encodeImages(e *jx.Encoder, images []string) {
	e.ArrStart()
	for _, img := range images {
		e.Str(h.imageURL(img))
	}
	e.ArrEnd()
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(h.imageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
