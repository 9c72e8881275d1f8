// Package handler exposes the checkout API over net/http.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/xenking/offer-checkout/internal/domain/offer"
	"github.com/xenking/offer-checkout/internal/domain/order"
	"github.com/xenking/offer-checkout/pkg/httpmiddleware"
)

// maxBodySize caps request bodies.
const maxBodySize = 64 << 10

// Offers is the read side of the offer catalog.
type Offers interface {
	List(ctx context.Context) ([]offer.Offer, error)
	Get(ctx context.Context, id uuid.UUID) (*offer.Offer, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]offer.Offer, error)
}

// Orders places orders.
type Orders interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

// Tokens issues client tokens for the browser payment form.
type Tokens interface {
	ClientToken(ctx context.Context) (string, error)
}

// Handler serves the /api routes.
type Handler struct {
	offers Offers
	orders Orders
	tokens Tokens
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(offers Offers, orders Orders, tokens Tokens) *Handler {
	return &Handler{
		offers: offers,
		orders: orders,
		tokens: tokens,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		h.route(r, http.MethodGet, "/offers", h.ListOffers)
		h.route(r, http.MethodGet, "/offers/{id}", h.GetOffer)
		h.route(r, http.MethodGet, "/organizations/{id}/offers", h.ListOrganizationOffers)
		h.route(r, http.MethodPost, "/orders", h.PlaceOrder)
		h.route(r, http.MethodGet, "/client-token", h.ClientToken)
	})
}

// route registers fn and tags the request with its route pattern for the
// access log and server span.
func (h *Handler) route(r chi.Router, method, pattern string, fn http.HandlerFunc) {
	r.MethodFunc(method, pattern, func(w http.ResponseWriter, req *http.Request) {
		tag := method + " " + pattern
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			tag = method + " " + rctx.RoutePattern()
		}
		httpmiddleware.TagRoute(req, tag)
		fn(w, req)
	})
}

// NotFound answers unknown paths.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed answers known paths requested with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}

// pathID parses the {id} path value. It writes a 404 and returns false when
// the value is not a UUID, since no such resource can exist.
func pathID(w http.ResponseWriter, r *http.Request, notFound error) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, notFound)
		return uuid.Nil, false
	}
	return id, true
}

// ClientToken returns a payment form token.
func (h *Handler) ClientToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.ClientToken(r.Context())
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", order.ErrGatewayUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, encodeClientToken(token))
}
