package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/DanielPopoola/ficmart-checkout/internal/faultinject"
)

// ReconcileAction describes what a reconciliation pass did to an order.
type ReconcileAction string

const (
	ActionNone             ReconcileAction = "none"
	ActionConfirmed        ReconcileAction = "confirmed"
	ActionCancelledTimeout ReconcileAction = "cancelled_timeout"
	ActionCancelledFailed  ReconcileAction = "cancelled_failed_payment"
	ActionResumedIntent    ReconcileAction = "resumed_intent"
)

// CheckoutResult is what a successful checkout hands back to the client.
type CheckoutResult struct {
	Order         *domain.Order
	Payment       *domain.Payment
	GatewayHandle string
}

// Coordinator drives the create -> initiate -> verify -> reconcile sequence
// and keeps an Order and its Payment in agreement without a shared
// transaction. Every operation is safe to repeat: retries, duplicate
// callbacks, and sweeps all converge on the same final state.
type Coordinator struct {
	orders         *OrderService
	payments       *PaymentService
	gateway        application.GatewayClient
	observer       application.CheckoutObserver
	hook           faultinject.Hook
	pendingTimeout time.Duration
	logger         *slog.Logger
}

func NewCoordinator(
	orders *OrderService,
	payments *PaymentService,
	gateway application.GatewayClient,
	observer application.CheckoutObserver,
	hook faultinject.Hook,
	pendingTimeout time.Duration,
	logger *slog.Logger,
) *Coordinator {
	if observer == nil {
		observer = application.NoopObserver{}
	}
	if hook == nil {
		hook = faultinject.Noop{}
	}
	return &Coordinator{
		orders:         orders,
		payments:       payments,
		gateway:        gateway,
		observer:       observer,
		hook:           hook,
		pendingTimeout: pendingTimeout,
		logger:         logger,
	}
}

// Checkout creates a pending order and initiates its payment. If the second
// step never happens (crash, lost response) the order stays PENDING with no
// payment ref, which Reconcile later resolves; nothing here is corrupt state.
func (c *Coordinator) Checkout(ctx context.Context, ownerID string, items []domain.LineItem) (*CheckoutResult, error) {
	order, err := c.orders.CreateOrder(ctx, ownerID, items)
	if err != nil {
		return nil, err
	}

	if err := c.hook.Crash(ctx, faultinject.AfterOrderCreate); err != nil {
		return nil, err
	}

	payment, err := c.payments.InitiatePayment(ctx, order.ID, order.TotalCents)
	if err != nil {
		return nil, err
	}

	if err := c.hook.Crash(ctx, faultinject.BeforeOrderUpdate); err != nil {
		return nil, err
	}

	order, err = c.orders.BindPayment(ctx, order.ID, payment.ID)
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		Order:         order,
		Payment:       payment,
		GatewayHandle: payment.GatewayHandle,
	}, nil
}

// OnPaymentCallback verifies the gateway callback and drives the matching
// order transition. Confirmation always wins over a late failure callback.
func (c *Coordinator) OnPaymentCallback(ctx context.Context, rawPayload []byte, signature string) (*domain.Payment, error) {
	payment, err := c.payments.VerifyCallback(ctx, rawPayload, signature)
	if err != nil {
		return nil, err
	}

	if err := c.hook.Crash(ctx, faultinject.AfterVerify); err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentSuccess:
		if _, err := c.orders.ConfirmOrder(ctx, payment.OrderRef, payment.ID); err != nil {
			return nil, c.confirmFailure(ctx, payment, err)
		}

	case domain.PaymentFailed:
		if err := c.cancelAfterFailedPayment(ctx, payment); err != nil {
			return nil, err
		}
	}

	return payment, nil
}

// confirmFailure inspects why a confirm was rejected. A cancelled order with
// a successful payment is the one state the protocol refuses to guess about.
func (c *Coordinator) confirmFailure(ctx context.Context, payment *domain.Payment, confirmErr error) error {
	order, err := c.orders.GetOrder(ctx, payment.OrderRef)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderCancelled {
		c.observer.AnomalyDetected("success_payment_cancelled_order")
		return domain.NewReconciliationConflictError(order.ID, payment.ID,
			"payment succeeded but order was cancelled")
	}
	return confirmErr
}

// cancelAfterFailedPayment cancels the order for a failed payment, but only
// while it is still pending. A confirmed order is never cancelled by a late
// failure signal; that is logged as an anomaly and dropped.
func (c *Coordinator) cancelAfterFailedPayment(ctx context.Context, payment *domain.Payment) error {
	_, err := c.orders.CancelOrder(ctx, payment.OrderRef)
	if err == nil {
		return nil
	}
	if !domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) {
		return err
	}

	order, getErr := c.orders.GetOrder(ctx, payment.OrderRef)
	if getErr != nil {
		return getErr
	}
	switch order.Status {
	case domain.OrderCancelled:
		// already converged
		return nil
	case domain.OrderConfirmed:
		c.observer.AnomalyDetected("late_failure_callback")
		c.logger.Warn("failure callback for confirmed order ignored",
			"order_id", order.ID,
			"payment_id", payment.ID,
		)
		return nil
	}
	return err
}

// Reconcile restores the order/payment invariant for one order after any
// interruption. Rules, in order:
//
//	(a) no payment, order pending past the timeout      -> cancel
//	(b) payment success, order not confirmed            -> confirm
//	(c) payment failed, order still pending             -> cancel
//	(d) payment pending past the timeout                -> ask the gateway
//	    before acting; an unknown answer changes nothing
//
// A successful payment against a cancelled order is surfaced as a
// reconciliation conflict for operator review, never auto-resolved.
func (c *Coordinator) Reconcile(ctx context.Context, orderID string) (ReconcileAction, error) {
	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return ActionNone, err
	}

	payment, err := c.payments.GetPaymentByOrder(ctx, orderID)
	if err != nil {
		if !domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
			return ActionNone, err
		}
		return c.reconcileWithoutPayment(ctx, order)
	}

	switch payment.Status {
	case domain.PaymentSuccess:
		return c.reconcileSuccess(ctx, order, payment)
	case domain.PaymentFailed:
		return c.reconcileFailed(ctx, order, payment)
	default:
		return c.reconcilePending(ctx, order, payment)
	}
}

func (c *Coordinator) reconcileWithoutPayment(ctx context.Context, order *domain.Order) (ReconcileAction, error) {
	if order.Status != domain.OrderPending {
		return ActionNone, nil
	}
	if time.Since(order.CreatedAt) < c.pendingTimeout {
		return ActionNone, nil
	}

	if _, err := c.orders.CancelOrder(ctx, order.ID); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) {
			// raced with another path; already terminal
			return ActionNone, nil
		}
		return ActionNone, err
	}

	c.observer.ReconciliationApplied(string(ActionCancelledTimeout))
	c.logger.Info("reconciliation cancelled order with no payment",
		"order_id", order.ID,
		"age", time.Since(order.CreatedAt),
	)
	return ActionCancelledTimeout, nil
}

func (c *Coordinator) reconcileSuccess(ctx context.Context, order *domain.Order, payment *domain.Payment) (ReconcileAction, error) {
	switch order.Status {
	case domain.OrderConfirmed:
		if order.PaymentRef != nil && *order.PaymentRef != payment.ID {
			c.observer.AnomalyDetected("payment_ref_mismatch")
			return ActionNone, domain.NewReconciliationConflictError(order.ID, payment.ID,
				"order confirmed against a different payment")
		}
		return ActionNone, nil

	case domain.OrderCancelled:
		c.observer.AnomalyDetected("success_payment_cancelled_order")
		return ActionNone, domain.NewReconciliationConflictError(order.ID, payment.ID,
			"payment succeeded but order was cancelled")
	}

	// crash between verify and confirm; repair the missing confirmation
	if _, err := c.orders.ConfirmOrder(ctx, order.ID, payment.ID); err != nil {
		return ActionNone, err
	}

	c.observer.ReconciliationApplied(string(ActionConfirmed))
	c.logger.Info("reconciliation confirmed order", "order_id", order.ID, "payment_id", payment.ID)
	return ActionConfirmed, nil
}

func (c *Coordinator) reconcileFailed(ctx context.Context, order *domain.Order, payment *domain.Payment) (ReconcileAction, error) {
	switch order.Status {
	case domain.OrderCancelled:
		return ActionNone, nil
	case domain.OrderConfirmed:
		c.observer.AnomalyDetected("failed_payment_confirmed_order")
		return ActionNone, domain.NewReconciliationConflictError(order.ID, payment.ID,
			"order confirmed but its payment failed")
	}

	if _, err := c.orders.CancelOrder(ctx, order.ID); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) {
			return ActionNone, nil
		}
		return ActionNone, err
	}

	c.observer.ReconciliationApplied(string(ActionCancelledFailed))
	c.logger.Info("reconciliation cancelled order for failed payment",
		"order_id", order.ID,
		"payment_id", payment.ID,
	)
	return ActionCancelledFailed, nil
}

// reconcilePending handles a payment that never reached a terminal state.
// The gateway is consulted before anything is cancelled: a payment is never
// timed out into FAILED on local evidence alone, because the money may have
// been captured server-side.
func (c *Coordinator) reconcilePending(ctx context.Context, order *domain.Order, payment *domain.Payment) (ReconcileAction, error) {
	if order.Status == domain.OrderPending && order.PaymentRef == nil {
		// crash between initiation and bind; restore the forward link so the
		// pair is discoverable from the order side too
		if _, err := c.orders.BindPayment(ctx, order.ID, payment.ID); err != nil {
			return ActionNone, err
		}
	}

	if time.Since(payment.CreatedAt) < c.pendingTimeout {
		return ActionNone, nil
	}

	if payment.GatewayHandle == "" {
		if order.Status != domain.OrderPending {
			// no remote intent exists and the order is terminal; minting one
			// now would invite payment for an order that no longer stands
			c.observer.AnomalyDetected("stranded_payment_terminal_order")
			c.logger.Warn("pending payment without gateway handle on terminal order",
				"order_id", order.ID,
				"payment_id", payment.ID,
				"order_status", string(order.Status),
			)
			return ActionNone, nil
		}

		// crash before the intent was created; resume the initiation
		if _, err := c.payments.InitiatePayment(ctx, order.ID, order.TotalCents); err != nil {
			return ActionNone, err
		}
		c.observer.ReconciliationApplied(string(ActionResumedIntent))
		return ActionResumedIntent, nil
	}

	st, err := c.gateway.QueryIntent(ctx, payment.GatewayHandle)
	if err != nil {
		c.logger.Warn("gateway query failed during reconciliation; leaving payment pending",
			"payment_id", payment.ID,
			"error", err,
		)
		return ActionNone, nil
	}

	resolved, err := c.payments.ResolveFromGateway(ctx, payment.ID, st)
	if err != nil {
		return ActionNone, err
	}

	switch resolved.Status {
	case domain.PaymentSuccess:
		return c.reconcileSuccess(ctx, order, resolved)
	case domain.PaymentFailed:
		return c.reconcileFailed(ctx, order, resolved)
	}
	return ActionNone, nil
}
