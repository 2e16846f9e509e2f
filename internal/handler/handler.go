// Package handler implements the HTTP API of the checkout service.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths. Absolute URLs are
	// returned unchanged.
	ImageBaseURL string
}

// Checkout quotes carts.
type Checkout interface {
	Calculate(ctx context.Context, req checkout.Request) (*checkout.Quote, error)
}

// Handler serves the catalog and checkout endpoints.
type Handler struct {
	products     product.Repository
	checkout     Checkout
	imageBaseURL string
}

// New constructs a Handler.
func New(cfg Config, products product.Repository, co Checkout) *Handler {
	return &Handler{
		products:     products,
		checkout:     co,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/{productId}", h.GetProduct)
	r.Post("/checkout/calculate", h.CalculateCheckout)
}

// NotFound writes the error envelope for unknown routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed writes the error envelope for known routes with the
// wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
