package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/application/services"
	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/DanielPopoola/ficmart-checkout/internal/faultinject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path links order and payment", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		assert.Equal(t, domain.OrderPending, res.Order.Status)
		require.NotNil(t, res.Order.PaymentRef)
		assert.Equal(t, res.Payment.ID, *res.Order.PaymentRef)
		assert.Equal(t, res.Order.ID, res.Payment.OrderRef)
		assert.Equal(t, res.Payment.GatewayHandle, res.GatewayHandle)
		assert.NotEmpty(t, res.GatewayHandle)
	})

	t.Run("invalid items fail before any write", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.coord.Checkout(ctx, "cust-1", []domain.LineItem{{ProductRef: "x", Quantity: 0}})
		require.Error(t, err)
		assert.Equal(t, 0, f.observer.OrdersCreated)
		assert.Equal(t, 0, f.gateway.CreateCalls())
	})

	t.Run("gateway outage leaves order and payment pending", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.CreateIntentFn = func(context.Context, application.IntentRequest, string) (*application.IntentResponse, error) {
			return nil, errors.New("connection refused")
		}

		_, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeGatewayUnavailable))

		orders, err := f.orders.GetOrdersByOwner(ctx, "cust-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, domain.OrderPending, orders[0].Status)

		payment, err := f.payments.GetPaymentByOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPending, payment.Status)
	})
}

func TestOnPaymentCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("success callback confirms the order", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		body := callbackBody(t, res.GatewayHandle, "gwp_1", "captured")
		payment, err := f.coord.OnPaymentCallback(ctx, body, "sig")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentSuccess, payment.Status)

		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderConfirmed, order.Status)
		require.NotNil(t, order.PaymentRef)
		assert.Equal(t, payment.ID, *order.PaymentRef)
	})

	t.Run("failure callback cancels the order", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		body := callbackBody(t, res.GatewayHandle, "gwp_1", "failed")
		payment, err := f.coord.OnPaymentCallback(ctx, body, "sig")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentFailed, payment.Status)

		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCancelled, order.Status)
	})

	t.Run("duplicate success callback is absorbed", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		body := callbackBody(t, res.GatewayHandle, "gwp_1", "captured")
		_, err = f.coord.OnPaymentCallback(ctx, body, "sig")
		require.NoError(t, err)
		_, err = f.coord.OnPaymentCallback(ctx, body, "sig")
		require.NoError(t, err)

		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderConfirmed, order.Status)
	})

	t.Run("forged signature touches neither record", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		f.verifier.Valid = false
		body := callbackBody(t, res.GatewayHandle, "gwp_1", "captured")
		_, err = f.coord.OnPaymentCallback(ctx, body, "forged")
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeAuthenticity))

		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderPending, order.Status)

		payment, err := f.payments.GetPaymentByOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPending, payment.Status)
	})

	t.Run("late failure never un-confirms an order", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		// operator confirmed out of band before the gateway reported failure
		_, err = f.orders.ConfirmOrder(ctx, res.Order.ID, res.Payment.ID)
		require.NoError(t, err)

		body := callbackBody(t, res.GatewayHandle, "gwp_1", "failed")
		_, err = f.coord.OnPaymentCallback(ctx, body, "sig")
		require.NoError(t, err)

		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderConfirmed, order.Status)
		assert.Equal(t, 1, f.observer.Anomalies["late_failure_callback"])
	})

	t.Run("success for a cancelled order is a conflict", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		_, err = f.orders.CancelOrder(ctx, res.Order.ID)
		require.NoError(t, err)

		body := callbackBody(t, res.GatewayHandle, "gwp_1", "captured")
		_, err = f.coord.OnPaymentCallback(ctx, body, "sig")
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeReconciliationConflict))
		assert.Equal(t, 1, f.observer.Anomalies["success_payment_cancelled_order"])

		// neither side was forced into agreement
		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCancelled, order.Status)
		payment, err := f.payments.GetPaymentByOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentSuccess, payment.Status)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("young pending order without payment is left alone", func(t *testing.T) {
		f := newFixture(t)
		order := f.createOrder(t)

		action, err := f.coord.Reconcile(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionNone, action)
	})

	t.Run("stale pending order without payment is cancelled", func(t *testing.T) {
		f := newFixture(t)
		order := f.createOrder(t)
		order.CreatedAt = time.Now().Add(-time.Hour)

		action, err := f.coord.Reconcile(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionCancelledTimeout, action)

		got, err := f.orders.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCancelled, got.Status)
		assert.Equal(t, 1, f.observer.Reconciliations[string(services.ActionCancelledTimeout)])
	})

	t.Run("successful payment repairs a missing confirmation", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		// payment verified but the order update never happened
		_, err = f.payments.VerifyCallback(ctx,
			callbackBody(t, res.GatewayHandle, "gwp_1", "captured"), "sig")
		require.NoError(t, err)

		action, err := f.coord.Reconcile(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionConfirmed, action)

		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderConfirmed, order.Status)
	})

	t.Run("failed payment cancels a pending order", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		_, err = f.payments.VerifyCallback(ctx,
			callbackBody(t, res.GatewayHandle, "gwp_1", "failed"), "sig")
		require.NoError(t, err)

		action, err := f.coord.Reconcile(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionCancelledFailed, action)

		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCancelled, order.Status)
	})

	t.Run("consistent states need no action", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		_, err = f.coord.OnPaymentCallback(ctx,
			callbackBody(t, res.GatewayHandle, "gwp_1", "captured"), "sig")
		require.NoError(t, err)

		action, err := f.coord.Reconcile(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionNone, action)
	})

	t.Run("success payment on cancelled order is surfaced, not resolved", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		_, err = f.payments.VerifyCallback(ctx,
			callbackBody(t, res.GatewayHandle, "gwp_1", "captured"), "sig")
		require.NoError(t, err)
		_, err = f.orders.CancelOrder(ctx, res.Order.ID)
		require.NoError(t, err)

		_, err = f.coord.Reconcile(ctx, res.Order.ID)
		require.Error(t, err)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeReconciliationConflict))
	})

	t.Run("stranded payment on a cancelled order is never re-initiated", func(t *testing.T) {
		hook := faultinject.ArmAt(faultinject.AfterPaymentPersist)
		f := newFixtureWith(t, hook, 30*time.Minute)

		_, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.ErrorIs(t, err, faultinject.ErrInjectedCrash)

		orders, err := f.orders.GetOrdersByOwner(ctx, "cust-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)

		// customer cancels while the payment is stuck without an intent
		_, err = f.orders.CancelOrder(ctx, orders[0].ID)
		require.NoError(t, err)

		payment, err := f.payments.GetPaymentByOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		require.Empty(t, payment.GatewayHandle)
		payment.CreatedAt = time.Now().Add(-time.Hour)

		action, err := f.coord.Reconcile(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionNone, action)
		assert.Equal(t, 0, f.gateway.RemoteIntents())
		assert.Equal(t, 1, f.observer.Anomalies["stranded_payment_terminal_order"])
	})

	t.Run("stale pending pair regains its payment ref", func(t *testing.T) {
		hook := faultinject.ArmAt(faultinject.BeforeOrderUpdate)
		f := newFixtureWith(t, hook, 30*time.Minute)

		_, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.ErrorIs(t, err, faultinject.ErrInjectedCrash)

		orders, err := f.orders.GetOrdersByOwner(ctx, "cust-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		require.Nil(t, orders[0].PaymentRef)

		payment, err := f.payments.GetPaymentByOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		payment.CreatedAt = time.Now().Add(-time.Hour)

		// the intent is still pending at the gateway, so no transition
		// applies, but the forward link is restored
		action, err := f.coord.Reconcile(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionNone, action)

		order, err := f.orders.GetOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		require.NotNil(t, order.PaymentRef)
		assert.Equal(t, payment.ID, *order.PaymentRef)
	})

	t.Run("stale pending payment asks the gateway before acting", func(t *testing.T) {
		t.Run("captured at the gateway", func(t *testing.T) {
			f := newFixture(t)
			res, err := f.coord.Checkout(ctx, "cust-1", testItems())
			require.NoError(t, err)
			res.Payment.CreatedAt = time.Now().Add(-time.Hour)

			f.gateway.SetIntentStatus(res.GatewayHandle, application.IntentStatusCaptured, "gwp_9")

			action, err := f.coord.Reconcile(ctx, res.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, services.ActionConfirmed, action)

			order, err := f.orders.GetOrder(ctx, res.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderConfirmed, order.Status)
		})

		t.Run("failed at the gateway", func(t *testing.T) {
			f := newFixture(t)
			res, err := f.coord.Checkout(ctx, "cust-1", testItems())
			require.NoError(t, err)
			res.Payment.CreatedAt = time.Now().Add(-time.Hour)

			f.gateway.SetIntentStatus(res.GatewayHandle, application.IntentStatusFailed, "")

			action, err := f.coord.Reconcile(ctx, res.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, services.ActionCancelledFailed, action)
		})

		t.Run("still pending at the gateway", func(t *testing.T) {
			f := newFixture(t)
			res, err := f.coord.Checkout(ctx, "cust-1", testItems())
			require.NoError(t, err)
			res.Payment.CreatedAt = time.Now().Add(-time.Hour)

			action, err := f.coord.Reconcile(ctx, res.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, services.ActionNone, action)
		})

		t.Run("gateway unreachable leaves everything pending", func(t *testing.T) {
			f := newFixture(t)
			res, err := f.coord.Checkout(ctx, "cust-1", testItems())
			require.NoError(t, err)
			res.Payment.CreatedAt = time.Now().Add(-time.Hour)

			f.gateway.QueryIntentFn = func(context.Context, string) (*application.IntentStatus, error) {
				return nil, errors.New("connection refused")
			}

			action, err := f.coord.Reconcile(ctx, res.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, services.ActionNone, action)

			payment, err := f.payments.GetPaymentByOrder(ctx, res.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.PaymentPending, payment.Status)
		})
	})
}

// Each test arms a single crash point, runs the interrupted flow, and checks
// that a reconciliation pass restores agreement between the two stores.
func TestCrashRecovery(t *testing.T) {
	ctx := context.Background()

	t.Run("crash after order create", func(t *testing.T) {
		hook := faultinject.ArmAt(faultinject.AfterOrderCreate)
		f := newFixtureWith(t, hook, 30*time.Minute)

		_, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.ErrorIs(t, err, faultinject.ErrInjectedCrash)
		require.True(t, hook.Fired())

		orders, err := f.orders.GetOrdersByOwner(ctx, "cust-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		orders[0].CreatedAt = time.Now().Add(-time.Hour)

		action, err := f.coord.Reconcile(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionCancelledTimeout, action)
	})

	t.Run("crash after payment persist", func(t *testing.T) {
		hook := faultinject.ArmAt(faultinject.AfterPaymentPersist)
		f := newFixtureWith(t, hook, 30*time.Minute)

		_, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.ErrorIs(t, err, faultinject.ErrInjectedCrash)

		orders, err := f.orders.GetOrdersByOwner(ctx, "cust-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)

		payment, err := f.payments.GetPaymentByOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Empty(t, payment.GatewayHandle)
		payment.CreatedAt = time.Now().Add(-time.Hour)

		action, err := f.coord.Reconcile(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionResumedIntent, action)

		payment, err = f.payments.GetPaymentByOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.NotEmpty(t, payment.GatewayHandle)
		assert.Equal(t, 1, f.gateway.RemoteIntents())
	})

	t.Run("crash after gateway intent", func(t *testing.T) {
		hook := faultinject.ArmAt(faultinject.AfterGatewayIntent)
		f := newFixtureWith(t, hook, 30*time.Minute)

		_, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.ErrorIs(t, err, faultinject.ErrInjectedCrash)

		// the remote intent exists but the handle was never stored
		assert.Equal(t, 1, f.gateway.RemoteIntents())

		orders, err := f.orders.GetOrdersByOwner(ctx, "cust-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		payment, err := f.payments.GetPaymentByOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Empty(t, payment.GatewayHandle)
		payment.CreatedAt = time.Now().Add(-time.Hour)

		action, err := f.coord.Reconcile(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionResumedIntent, action)

		// the replayed create deduplicated; still exactly one remote intent
		payment, err = f.payments.GetPaymentByOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.NotEmpty(t, payment.GatewayHandle)
		assert.Equal(t, 1, f.gateway.RemoteIntents())
	})

	t.Run("crash before order update", func(t *testing.T) {
		hook := faultinject.ArmAt(faultinject.BeforeOrderUpdate)
		f := newFixtureWith(t, hook, 30*time.Minute)

		_, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.ErrorIs(t, err, faultinject.ErrInjectedCrash)

		orders, err := f.orders.GetOrdersByOwner(ctx, "cust-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Nil(t, orders[0].PaymentRef)

		payment, err := f.payments.GetPaymentByOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		require.NotEmpty(t, payment.GatewayHandle)
		payment.CreatedAt = time.Now().Add(-time.Hour)

		f.gateway.SetIntentStatus(payment.GatewayHandle, application.IntentStatusCaptured, "gwp_9")

		action, err := f.coord.Reconcile(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionConfirmed, action)

		order, err := f.orders.GetOrder(ctx, orders[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderConfirmed, order.Status)
	})

	t.Run("crash after callback verification", func(t *testing.T) {
		hook := faultinject.ArmAt(faultinject.AfterVerify)
		f := newFixtureWith(t, hook, 30*time.Minute)

		res, err := f.coord.Checkout(ctx, "cust-1", testItems())
		require.NoError(t, err)

		body := callbackBody(t, res.GatewayHandle, "gwp_1", "captured")
		_, err = f.coord.OnPaymentCallback(ctx, body, "sig")
		require.ErrorIs(t, err, faultinject.ErrInjectedCrash)

		// payment is SUCCESS, order still PENDING
		payment, err := f.payments.GetPaymentByOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentSuccess, payment.Status)
		order, err := f.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderPending, order.Status)

		action, err := f.coord.Reconcile(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, services.ActionConfirmed, action)
	})
}

// Observers are optional collaborators; a nil observer defaults to the no-op
// implementation and the full flow runs without one.
func TestNilObserverDefaults(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orderRepo := services.NewMockOrderRepository()
	paymentRepo := services.NewMockPaymentRepository()
	gw := services.NewMockGatewayClient()

	orders := services.NewOrderService(orderRepo, nil, logger)
	payments := services.NewPaymentService(
		paymentRepo, orders, gw, services.NewMockVerifier(), nil, nil, "INR", logger,
	)
	coord := services.NewCoordinator(orders, payments, gw, nil, nil, 30*time.Minute, logger)

	res, err := coord.Checkout(ctx, "cust-1", testItems())
	require.NoError(t, err)

	_, err = coord.OnPaymentCallback(ctx,
		callbackBody(t, res.GatewayHandle, "gwp_1", "captured"), "sig")
	require.NoError(t, err)

	order, err := orders.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, order.Status)
}
