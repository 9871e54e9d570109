package handlers

import (
	"net/http"

	"github.com/DanielPopoola/ficmart-checkout/internal/interfaces/rest"
	"github.com/gorilla/mux"
)

type reconcileDTO struct {
	OrderID string `json:"order_id"`
	Action  string `json:"action"`
}

// ReconcileOrder runs one reconciliation pass for a single order, the same
// logic the background sweep applies. Exposed for operators chasing a
// specific stuck order.
func (h *Handlers) ReconcileOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	action, err := h.coordinator.Reconcile(r.Context(), orderID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, reconcileDTO{
		OrderID: orderID,
		Action:  string(action),
	})
}
