package handlers

import (
	"io"
	"net/http"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/interfaces/rest"
)

// SignatureHeader carries the processor's HMAC over the callback identifiers.
const SignatureHeader = "X-Gateway-Signature"

// PaymentCallback receives the processor's asynchronous payment outcome.
// The body is read raw; verification happens over the parsed identifiers
// before any state is touched.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	signature := r.Header.Get(SignatureHeader)

	payment, err := h.coordinator.OnPaymentCallback(r.Context(), body, signature)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toPaymentDTO(payment))
}
