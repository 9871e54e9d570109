package handlers

import (
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
)

type lineItemDTO struct {
	ProductRef     string `json:"product_ref"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type checkoutRequest struct {
	Items []lineItemDTO `json:"items"`
}

type orderDTO struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Items       []lineItemDTO `json:"items"`
	TotalCents  int64         `json:"total_cents"`
	Status      string        `json:"status"`
	PaymentRef  *string       `json:"payment_ref,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}

type paymentDTO struct {
	ID               string     `json:"id"`
	OrderRef         string     `json:"order_ref"`
	AmountCents      int64      `json:"amount_cents"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	GatewayHandle    string     `json:"gateway_handle,omitempty"`
	GatewayPaymentID *string    `json:"gateway_payment_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
}

type checkoutDTO struct {
	Order         orderDTO   `json:"order"`
	Payment       paymentDTO `json:"payment"`
	GatewayHandle string     `json:"gateway_handle"`
}

func toOrderDTO(o *domain.Order) orderDTO {
	items := make([]lineItemDTO, len(o.Items))
	for i, item := range o.Items {
		items[i] = lineItemDTO{
			ProductRef:     item.ProductRef,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}

	return orderDTO{
		ID:          o.ID,
		OwnerID:     o.OwnerID,
		Items:       items,
		TotalCents:  o.TotalCents,
		Status:      string(o.Status),
		PaymentRef:  o.PaymentRef,
		CreatedAt:   o.CreatedAt,
		ConfirmedAt: o.ConfirmedAt,
		CancelledAt: o.CancelledAt,
	}
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		ID:               p.ID,
		OrderRef:         p.OrderRef,
		AmountCents:      p.AmountCents,
		Currency:         p.Currency,
		Status:           string(p.Status),
		GatewayHandle:    p.GatewayHandle,
		GatewayPaymentID: p.GatewayPaymentID,
		CreatedAt:        p.CreatedAt,
		VerifiedAt:       p.VerifiedAt,
	}
}

func toDomainItems(items []lineItemDTO) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		out[i] = domain.LineItem{
			ProductRef:     item.ProductRef,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return out
}
