package handler

import (
	"net/http"

	"github.com/xenking/offer-checkout/internal/domain/offer"
)

// ListOffers returns every non-expired offer in rank order.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.offers.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOffers(offers))
}

// GetOffer returns one offer by id, expired or not.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, offer.ErrNotFound)
	if !ok {
		return
	}
	o, err := h.offers.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOffer(*o))
}

// ListOrganizationOffers returns the non-expired offers of one organization.
func (h *Handler) ListOrganizationOffers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, offer.ErrOrganizationNotFound)
	if !ok {
		return
	}
	offers, err := h.offers.ListByOrganization(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOffers(offers))
}
