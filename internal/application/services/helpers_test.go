package services_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/application/services"
	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/DanielPopoola/ficmart-checkout/internal/faultinject"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orderRepo   *services.MockOrderRepository
	paymentRepo *services.MockPaymentRepository
	gateway     *services.MockGatewayClient
	verifier    *services.MockVerifier
	observer    *services.RecordingObserver

	orders   *services.OrderService
	payments *services.PaymentService
	coord    *services.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, 30*time.Minute)
}

func newFixtureWith(t *testing.T, hook faultinject.Hook, pendingTimeout time.Duration) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		orderRepo:   services.NewMockOrderRepository(),
		paymentRepo: services.NewMockPaymentRepository(),
		gateway:     services.NewMockGatewayClient(),
		verifier:    services.NewMockVerifier(),
		observer:    services.NewRecordingObserver(),
	}

	f.orders = services.NewOrderService(f.orderRepo, f.observer, logger)
	f.payments = services.NewPaymentService(
		f.paymentRepo, f.orders, f.gateway, f.verifier, f.observer, hook, "INR", logger,
	)
	f.coord = services.NewCoordinator(
		f.orders, f.payments, f.gateway, f.observer, hook, pendingTimeout, logger,
	)
	return f
}

func testItems() []domain.LineItem {
	return []domain.LineItem{
		{ProductRef: "sku-101", Quantity: 2, UnitPriceCents: 2500},
		{ProductRef: "sku-202", Quantity: 1, UnitPriceCents: 9999},
	}
}

func (f *fixture) createOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), "cust-1", testItems())
	require.NoError(t, err)
	return order
}

func (f *fixture) initiatePayment(t *testing.T, order *domain.Order) *domain.Payment {
	t.Helper()
	payment, err := f.payments.InitiatePayment(context.Background(), order.ID, order.TotalCents)
	require.NoError(t, err)
	return payment
}

func callbackBody(t *testing.T, handle, paymentID, status string) []byte {
	t.Helper()
	body, err := json.Marshal(services.CallbackPayload{
		GatewayOrderID:   handle,
		GatewayPaymentID: paymentID,
		Status:           status,
	})
	require.NoError(t, err)
	return body
}
