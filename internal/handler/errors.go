package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/purchase"
)

// statusClientClosed is logged when the client went away before the
// response was ready.
const statusClientClosed = 499

// badRequestError is an input validation failure.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// statusOf maps an error to its HTTP status and client-facing message.
func statusOf(err error) (int, string) {
	var (
		badReq      *badRequestError
		notFound    *checkout.ProductNotFoundError
		unsupported *purchase.UnsupportedCategoryError
		unmatched   *purchase.UnmatchedPurchaseError
		invalidOpts *purchase.InvalidOptionsError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, badReq.msg
	case errors.Is(err, checkout.ErrEmptyPurchases):
		return http.StatusBadRequest, checkout.ErrEmptyPurchases.Error()
	case errors.As(err, &notFound):
		return http.StatusUnprocessableEntity, notFound.Error()
	case errors.As(err, &unsupported):
		return http.StatusUnprocessableEntity, unsupported.Error()
	case errors.As(err, &unmatched):
		return http.StatusUnprocessableEntity, unmatched.Error()
	case errors.As(err, &invalidOpts):
		return http.StatusUnprocessableEntity, invalidOpts.Error()
	case errors.Is(err, context.Canceled):
		return statusClientClosed, "request canceled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail logs err when it is not the client's fault and writes the envelope.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	lg := zctx.From(r.Context())
	switch {
	case status >= http.StatusInternalServerError:
		lg.Error("Request failed", zap.Error(err))
	case status == statusClientClosed:
		lg.Debug("Client went away", zap.Error(err))
		return
	default:
		lg.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		e.ObjEnd()
	})
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
