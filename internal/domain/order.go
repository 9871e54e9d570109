// Package domain encodes the order and payment entities and their state machines.
package domain

import (
	"slices"
	"time"
)

// OrderStatus represents the current state of an order in its lifecycle
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// LineItem is a single purchasable entry on an order.
type LineItem struct {
	ProductRef     string
	Quantity       int
	UnitPriceCents int64
}

type Order struct {
	ID      string
	OwnerID string
	Items   []LineItem

	// TotalCents is fixed at creation time from the line items.
	TotalCents int64
	Status     OrderStatus

	// PaymentRef holds the id of the payment created for this order.
	// Set once, never reassigned.
	PaymentRef *string

	CreatedAt   time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
}

func NewOrder(id, ownerID string, items []LineItem) (*Order, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("order ID")
	}
	if ownerID == "" {
		return nil, NewMissingRequiredFieldError("owner ID")
	}
	if len(items) == 0 {
		return nil, NewValidationError("order must contain at least one line item")
	}

	var total int64
	for _, item := range items {
		if item.ProductRef == "" {
			return nil, NewMissingRequiredFieldError("product reference")
		}
		if item.Quantity < 1 {
			return nil, NewValidationError("line item quantity must be at least 1")
		}
		if item.UnitPriceCents < 0 {
			return nil, NewValidationError("line item unit price cannot be negative")
		}
		total += int64(item.Quantity) * item.UnitPriceCents
	}

	return &Order{
		ID:         id,
		OwnerID:    ownerID,
		Items:      slices.Clone(items),
		TotalCents: total,
		Status:     OrderPending,
		CreatedAt:  time.Now(),
	}, nil
}

// Confirm binds the order to a payment and moves it to CONFIRMED.
// Calling it again with the same payment id is a no-op; a different
// payment id or a cancelled order is a transition error.
func (o *Order) Confirm(paymentID string) error {
	if paymentID == "" {
		return NewMissingRequiredFieldError("payment ID")
	}

	if o.Status == OrderConfirmed {
		if o.PaymentRef != nil && *o.PaymentRef == paymentID {
			return nil
		}
		return NewPaymentRefMismatchError(o.ID, o.paymentRefOrEmpty(), paymentID)
	}

	if o.Status != OrderPending {
		return NewInvalidOrderTransitionError(o.Status, OrderConfirmed)
	}

	if o.PaymentRef != nil && *o.PaymentRef != paymentID {
		return NewPaymentRefMismatchError(o.ID, *o.PaymentRef, paymentID)
	}

	now := time.Now()
	o.PaymentRef = &paymentID
	o.Status = OrderConfirmed
	o.ConfirmedAt = &now
	return nil
}

// Cancel moves a pending order to CANCELLED. Terminal states reject it;
// cancelling a confirmed order is a refund workflow, not a transition.
func (o *Order) Cancel() error {
	if o.Status != OrderPending {
		return NewInvalidOrderTransitionError(o.Status, OrderCancelled)
	}
	now := time.Now()
	o.Status = OrderCancelled
	o.CancelledAt = &now
	return nil
}

// BindPayment records the payment created for this order without changing
// status. A different existing ref is rejected.
func (o *Order) BindPayment(paymentID string) error {
	if o.PaymentRef != nil {
		if *o.PaymentRef == paymentID {
			return nil
		}
		return NewPaymentRefMismatchError(o.ID, *o.PaymentRef, paymentID)
	}
	o.PaymentRef = &paymentID
	return nil
}

func (o *Order) IsTerminal() bool {
	return o.Status == OrderConfirmed || o.Status == OrderCancelled
}

func (o *Order) paymentRefOrEmpty() string {
	if o.PaymentRef == nil {
		return ""
	}
	return *o.PaymentRef
}

// ReconstituteOrder - special constructor for loading from storage
func ReconstituteOrder(
	id, ownerID string,
	items []LineItem,
	totalCents int64,
	status OrderStatus,
	paymentRef *string,
	createdAt time.Time,
	confirmedAt, cancelledAt *time.Time,
) *Order {
	return &Order{
		ID:          id,
		OwnerID:     ownerID,
		Items:       items,
		TotalCents:  totalCents,
		Status:      status,
		PaymentRef:  paymentRef,
		CreatedAt:   createdAt,
		ConfirmedAt: confirmedAt,
		CancelledAt: cancelledAt,
	}
}
