// Package worker runs the background reconciliation sweep.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/application/services"
	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
)

// Reconciler periodically finds orders and payments stuck in PENDING and
// runs the coordinator's reconciliation over them. It is the safety net for
// every crash window in the checkout sequence; each pass is idempotent, so
// overlapping or repeated sweeps are harmless.
type Reconciler struct {
	orderRepo      application.OrderRepository
	paymentRepo    application.PaymentRepository
	coordinator    *services.Coordinator
	interval       time.Duration
	batchSize      int
	pendingTimeout time.Duration
	logger         *slog.Logger
}

func NewReconciler(
	orderRepo application.OrderRepository,
	paymentRepo application.PaymentRepository,
	coordinator *services.Coordinator,
	interval time.Duration,
	batchSize int,
	pendingTimeout time.Duration,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		orderRepo:      orderRepo,
		paymentRepo:    paymentRepo,
		coordinator:    coordinator,
		interval:       interval,
		batchSize:      batchSize,
		pendingTimeout: pendingTimeout,
		logger:         logger,
	}
}

func (w *Reconciler) Start(ctx context.Context) {
	w.logger.Info("reconciler started", "interval", w.interval, "pending_timeout", w.pendingTimeout)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciler stopping")
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("reconciliation sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one reconciliation pass over stale pending orders and payments.
// A payment's order may already appear in the stale order list; the seen set
// keeps each order to one pass.
func (w *Reconciler) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.pendingTimeout)
	seen := make(map[string]struct{})

	staleOrders, err := w.orderRepo.FindPendingOlderThan(ctx, cutoff, w.batchSize)
	if err != nil {
		return err
	}
	for _, order := range staleOrders {
		seen[order.ID] = struct{}{}
		w.reconcileOne(ctx, order.ID)
	}

	stalePayments, err := w.paymentRepo.FindPendingOlderThan(ctx, cutoff, w.batchSize)
	if err != nil {
		return err
	}
	for _, payment := range stalePayments {
		if _, done := seen[payment.OrderRef]; done {
			continue
		}
		seen[payment.OrderRef] = struct{}{}
		w.reconcileOne(ctx, payment.OrderRef)
	}

	return nil
}

// reconcileOne never aborts the sweep: a conflict on one order must not
// starve the rest of the batch.
func (w *Reconciler) reconcileOne(ctx context.Context, orderID string) {
	action, err := w.coordinator.Reconcile(ctx, orderID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeReconciliationConflict) {
			w.logger.Error("reconciliation conflict needs operator review",
				"order_id", orderID,
				"error", err,
			)
			return
		}
		w.logger.Error("reconciliation failed", "order_id", orderID, "error", err)
		return
	}

	if action != services.ActionNone {
		w.logger.Info("reconciliation applied", "order_id", orderID, "action", action)
	}
}
