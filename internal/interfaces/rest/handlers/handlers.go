// Package handlers exposes the checkout protocol over HTTP.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/ficmart-checkout/internal/application/services"
	"github.com/gorilla/mux"
)

type Handlers struct {
	coordinator    *services.Coordinator
	orderService   *services.OrderService
	paymentService *services.PaymentService
	logger         *slog.Logger
}

func NewHandlers(
	coordinator *services.Coordinator,
	orderService *services.OrderService,
	paymentService *services.PaymentService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		coordinator:    coordinator,
		orderService:   orderService,
		paymentService: paymentService,
		logger:         logger,
	}
}

// Register mounts all routes on the router.
func (h *Handlers) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/checkout", h.Checkout).Methods(http.MethodPost)
	api.HandleFunc("/payments/callback", h.PaymentCallback).Methods(http.MethodPost)

	api.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/payment", h.GetOrderPayment).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/reconcile", h.ReconcileOrder).Methods(http.MethodPost)

	api.HandleFunc("/payments/{id}", h.GetPayment).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
