package handlers

import (
	"net/http"

	"github.com/DanielPopoola/ficmart-checkout/internal/interfaces/rest"
	"github.com/gorilla/mux"
)

func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	payment, err := h.paymentService.GetPaymentStatus(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toPaymentDTO(payment))
}

func (h *Handlers) GetOrderPayment(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	payment, err := h.paymentService.GetPaymentByOrder(r.Context(), orderID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toPaymentDTO(payment))
}
