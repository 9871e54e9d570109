package postgres

import (
	"time"
)

type OrderModel struct {
	ID          string
	OwnerID     string
	Items       []byte
	TotalCents  int64
	Status      string
	PaymentRef  *string
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
}

// lineItemModel is the jsonb shape of one order line.
type lineItemModel struct {
	ProductRef     string `json:"product_ref"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type PaymentModel struct {
	ID               string
	OrderRef         string
	AmountCents      int64
	Currency         string
	Status           string
	GatewayHandle    string
	IdempotencyKey   string
	GatewayPaymentID *string
	GatewaySignature *string
	CreatedAt        time.Time
	VerifiedAt       *time.Time
}
