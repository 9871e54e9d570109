package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
)

// toOrderDomain: maps db model to domain entity
func toOrderDomain(m *OrderModel) (*domain.Order, error) {
	var itemModels []lineItemModel
	if err := json.Unmarshal(m.Items, &itemModels); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}

	items := make([]domain.LineItem, len(itemModels))
	for i, im := range itemModels {
		items[i] = domain.LineItem{
			ProductRef:     im.ProductRef,
			Quantity:       im.Quantity,
			UnitPriceCents: im.UnitPriceCents,
		}
	}

	return domain.ReconstituteOrder(
		m.ID,
		m.OwnerID,
		items,
		m.TotalCents,
		domain.OrderStatus(m.Status),
		m.PaymentRef,
		m.CreatedAt,
		m.ConfirmedAt,
		m.CancelledAt,
	), nil
}

// toOrderModel: maps domain entity to db model
func toOrderModel(o *domain.Order) (*OrderModel, error) {
	itemModels := make([]lineItemModel, len(o.Items))
	for i, item := range o.Items {
		itemModels[i] = lineItemModel{
			ProductRef:     item.ProductRef,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}

	itemsJSON, err := json.Marshal(itemModels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order items: %w", err)
	}

	return &OrderModel{
		ID:          o.ID,
		OwnerID:     o.OwnerID,
		Items:       itemsJSON,
		TotalCents:  o.TotalCents,
		Status:      string(o.Status),
		PaymentRef:  o.PaymentRef,
		CreatedAt:   o.CreatedAt,
		ConfirmedAt: o.ConfirmedAt,
		CancelledAt: o.CancelledAt,
	}, nil
}

// toPaymentDomain: maps db model to domain entity
func toPaymentDomain(m *PaymentModel) *domain.Payment {
	return domain.ReconstitutePayment(
		m.ID,
		m.OrderRef,
		m.AmountCents,
		m.Currency,
		domain.PaymentStatus(m.Status),
		m.GatewayHandle,
		m.IdempotencyKey,
		m.GatewayPaymentID,
		m.GatewaySignature,
		m.CreatedAt,
		m.VerifiedAt,
	)
}

// toPaymentModel: maps domain entity to db model
func toPaymentModel(p *domain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:               p.ID,
		OrderRef:         p.OrderRef,
		AmountCents:      p.AmountCents,
		Currency:         p.Currency,
		Status:           string(p.Status),
		GatewayHandle:    p.GatewayHandle,
		IdempotencyKey:   p.IdempotencyKey,
		GatewayPaymentID: p.GatewayPaymentID,
		GatewaySignature: p.GatewaySignature,
		CreatedAt:        p.CreatedAt,
		VerifiedAt:       p.VerifiedAt,
	}
}
