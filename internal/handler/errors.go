package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/offer-checkout/internal/domain/offer"
	"github.com/xenking/offer-checkout/internal/domain/order"
)

// requestFields maps validated field names to their location in the request
// body.
var requestFields = map[string]string{
	"offer_id":             "offer.id",
	"payment_method_nonce": "sale.payment_method_nonce",
}

// apiError is the body of every non-2xx API response.
type apiError struct {
	status  int
	message string
	fields  map[string]string
}

// mapError converts domain errors to API errors. Unrecognized errors become
// an opaque 500.
func mapError(err error) apiError {
	var (
		validation *order.ValidationError
		declined   *order.DeclinedError
	)
	switch {
	case errors.As(err, &validation):
		fields := make(map[string]string, len(validation.Fields))
		for k, v := range validation.Fields {
			if mapped, ok := requestFields[k]; ok {
				k = mapped
			}
			fields[k] = v
		}
		return apiError{status: http.StatusBadRequest, message: "invalid order request", fields: fields}
	case errors.Is(err, errMalformedBody):
		return apiError{status: http.StatusBadRequest, message: errMalformedBody.Error()}
	case errors.As(err, &declined):
		return apiError{status: http.StatusBadRequest, message: declined.Message}
	case errors.Is(err, offer.ErrNotFound):
		return apiError{status: http.StatusNotFound, message: offer.ErrNotFound.Error()}
	case errors.Is(err, offer.ErrOrganizationNotFound):
		return apiError{status: http.StatusNotFound, message: offer.ErrOrganizationNotFound.Error()}
	case errors.Is(err, offer.ErrExpired):
		return apiError{status: http.StatusUnprocessableEntity, message: offer.ErrExpired.Error()}
	case errors.Is(err, order.ErrGatewayUnavailable):
		return apiError{status: http.StatusBadGateway, message: order.ErrGatewayUnavailable.Error()}
	default:
		return apiError{status: http.StatusInternalServerError, message: "internal error"}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := mapError(err)
	if apiErr.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	writeJSON(w, apiErr.status, encodeError(apiErr))
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, encodeError(apiError{status: status, message: message}))
}

func encodeError(apiErr apiError) []byte {
	return encode(func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(apiErr.message) })
			if len(apiErr.fields) == 0 {
				return
			}
			e.Field("errors", func(e *jx.Encoder) {
				keys := make([]string, 0, len(apiErr.fields))
				for k := range apiErr.fields {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				e.Obj(func(e *jx.Encoder) {
					for _, k := range keys {
						e.Field(k, func(e *jx.Encoder) { e.Str(apiErr.fields[k]) })
					}
				})
			})
		})
	})
}
