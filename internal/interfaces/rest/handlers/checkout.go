package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/DanielPopoola/ficmart-checkout/internal/interfaces/rest"
	"github.com/DanielPopoola/ficmart-checkout/internal/interfaces/rest/middleware"
)

// Checkout creates an order and initiates its payment in one call. The
// response carries the gateway handle the storefront needs to open the
// processor's payment page.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserID(r.Context())
	if ownerID == "" {
		rest.WriteError(w, domain.NewMissingRequiredFieldError("X-User-ID header"), h.logger)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	result, err := h.coordinator.Checkout(r.Context(), ownerID, toDomainItems(req.Items))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, checkoutDTO{
		Order:         toOrderDTO(result.Order),
		Payment:       toPaymentDTO(result.Payment),
		GatewayHandle: result.GatewayHandle,
	})
}
