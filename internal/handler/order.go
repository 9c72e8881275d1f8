package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
)

// errMalformedBody is reported for bodies that are not a valid order request.
var errMalformedBody = errors.New("malformed request body")

// PlaceOrder decodes the checkout form, charges it through the order service,
// and returns the created order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, r, errors.Wrap(errMalformedBody, err.Error()))
		return
	}
	req, err := decodePlaceOrder(body)
	if err != nil {
		writeError(w, r, errors.Wrap(errMalformedBody, err.Error()))
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOrder(result))
}
