package application

import (
	"context"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
)

// GatewayClient is the port for the external payment processor.
// Calls may time out or fail ambiguously; a client-visible failure does not
// mean the remote intent was not created, which is why every call carries an
// idempotency key.
type GatewayClient interface {
	CreateIntent(ctx context.Context, req IntentRequest, idempotencyKey string) (*IntentResponse, error)
	QueryIntent(ctx context.Context, handle string) (*IntentStatus, error)
}

// IntentRequest asks the gateway to create a remote payment intent.
type IntentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
}

type IntentResponse struct {
	Handle    string    `json:"handle"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IntentStatus is the gateway's authoritative view of an intent, used by
// reconciliation before timing a payment out.
type IntentStatus struct {
	Handle  string `json:"handle"`
	Status  string `json:"status"`
	Outcome string `json:"outcome"`
}

// Gateway-reported intent states.
const (
	IntentStatusPending  = "PENDING"
	IntentStatusCaptured = "CAPTURED"
	IntentStatusFailed   = "FAILED"
	IntentStatusExpired  = "EXPIRED"
)

// CallbackVerifier validates the authenticity of a gateway callback.
type CallbackVerifier interface {
	Verify(gatewayOrderID, gatewayPaymentID, signature string) bool
}

// OrderRepository is the port for order persistence.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Order, error)
	FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)

	// Transition loads the order under a per-entity lock, applies fn, and
	// persists the result. Concurrent transitions on one id serialize.
	Transition(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error)
}

// PaymentRepository is the port for payment persistence. Create enforces the
// one-payment-per-order invariant and returns domain.ErrDuplicateOrderRef
// when it is violated.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	FindByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error)
	FindByGatewayHandle(ctx context.Context, handle string) (*domain.Payment, error)
	FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error)

	Transition(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error)
}

// CheckoutObserver receives protocol events. The coordinator reports to it
// instead of mutating shared counters; the production implementation is
// Prometheus-backed.
type CheckoutObserver interface {
	OrderCreated()
	PaymentInitiated()
	CallbackVerified(outcome string)
	CallbackRejected()
	ReconciliationApplied(rule string)
	AnomalyDetected(kind string)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OrderCreated()                  {}
func (NoopObserver) PaymentInitiated()              {}
func (NoopObserver) CallbackVerified(string)        {}
func (NoopObserver) CallbackRejected()              {}
func (NoopObserver) ReconciliationApplied(string)   {}
func (NoopObserver) AnomalyDetected(string)         {}
