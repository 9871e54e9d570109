package services

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/google/uuid"
)

// OrderService owns the order lifecycle and is the system of record for
// whether a customer can check out.
type OrderService struct {
	orderRepo application.OrderRepository
	observer  application.CheckoutObserver
	logger    *slog.Logger
}

func NewOrderService(
	orderRepo application.OrderRepository,
	observer application.CheckoutObserver,
	logger *slog.Logger,
) *OrderService {
	if observer == nil {
		observer = application.NoopObserver{}
	}
	return &OrderService{
		orderRepo: orderRepo,
		observer:  observer,
		logger:    logger,
	}
}

// CreateOrder validates the line items, computes the total, and persists a
// new PENDING order.
func (s *OrderService) CreateOrder(ctx context.Context, ownerID string, items []domain.LineItem) (*domain.Order, error) {
	order, err := domain.NewOrder(uuid.New().String(), ownerID, items)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.observer.OrderCreated()
	s.logger.Info("order created",
		"order_id", order.ID,
		"owner_id", ownerID,
		"total_cents", order.TotalCents,
	)
	return order, nil
}

// ConfirmOrder moves a pending order to CONFIRMED, bound to paymentID.
// Repeating the call with the same paymentID is a no-op success.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID, paymentID string) (*domain.Order, error) {
	order, err := s.orderRepo.Transition(ctx, orderID, func(o *domain.Order) error {
		return o.Confirm(paymentID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order confirmed", "order_id", orderID, "payment_id", paymentID)
	return order, nil
}

// CancelOrder moves a pending order to CANCELLED. Terminal orders reject the
// transition.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orderRepo.Transition(ctx, orderID, func(o *domain.Order) error {
		return o.Cancel()
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled", "order_id", orderID)
	return order, nil
}

// BindPayment records the payment id on a pending order without changing
// its status. Used by the coordinator once a payment record exists.
func (s *OrderService) BindPayment(ctx context.Context, orderID, paymentID string) (*domain.Order, error) {
	return s.orderRepo.Transition(ctx, orderID, func(o *domain.Order) error {
		return o.BindPayment(paymentID)
	})
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, orderID)
}

func (s *OrderService) GetOrdersByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Order, error) {
	return s.orderRepo.FindByOwner(ctx, ownerID, limit, offset)
}
