package domain

import (
	"time"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

type Payment struct {
	ID string

	// OrderRef is the order this payment pays for. Set at creation,
	// immutable, unique across payments.
	OrderRef    string
	AmountCents int64
	Currency    string
	Status      PaymentStatus

	// GatewayHandle is the remote intent id returned by the gateway.
	// Empty until the intent has been created.
	GatewayHandle string

	// IdempotencyKey is derived from OrderRef so re-initiation for the
	// same order resolves to this record.
	IdempotencyKey string

	GatewayPaymentID *string
	GatewaySignature *string

	CreatedAt  time.Time
	VerifiedAt *time.Time
}

func NewPayment(id, orderRef string, amountCents int64, currency string) (*Payment, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("payment ID")
	}
	if orderRef == "" {
		return nil, NewMissingRequiredFieldError("order reference")
	}
	if amountCents < 0 {
		return nil, NewValidationError("payment amount cannot be negative")
	}
	if currency == "" {
		return nil, NewMissingRequiredFieldError("currency")
	}

	return &Payment{
		ID:             id,
		OrderRef:       orderRef,
		AmountCents:    amountCents,
		Currency:       currency,
		Status:         PaymentPending,
		IdempotencyKey: PaymentIdempotencyKey(orderRef),
		CreatedAt:      time.Now(),
	}, nil
}

// PaymentIdempotencyKey derives the idempotency key for an order's payment.
// One order maps to exactly one key, so a retried initiation resolves to
// the existing record.
func PaymentIdempotencyKey(orderRef string) string {
	return "pay-" + orderRef
}

// AttachHandle records the gateway intent id. A handle is written once;
// a differing rewrite indicates a duplicate remote intent.
func (p *Payment) AttachHandle(handle string) error {
	if handle == "" {
		return NewMissingRequiredFieldError("gateway handle")
	}
	if p.GatewayHandle != "" && p.GatewayHandle != handle {
		return NewValidationError("gateway handle already set for payment " + p.ID)
	}
	p.GatewayHandle = handle
	return nil
}

// MarkSucceeded transitions PENDING -> SUCCESS and records the gateway's
// payment id and signature from the verified callback.
func (p *Payment) MarkSucceeded(gatewayPaymentID, signature string) error {
	if p.Status != PaymentPending {
		return NewInvalidPaymentTransitionError(p.Status, PaymentSuccess)
	}
	now := time.Now()
	p.Status = PaymentSuccess
	p.GatewayPaymentID = &gatewayPaymentID
	p.GatewaySignature = &signature
	p.VerifiedAt = &now
	return nil
}

// MarkFailed transitions PENDING -> FAILED.
func (p *Payment) MarkFailed() error {
	if p.Status != PaymentPending {
		return NewInvalidPaymentTransitionError(p.Status, PaymentFailed)
	}
	now := time.Now()
	p.Status = PaymentFailed
	p.VerifiedAt = &now
	return nil
}

func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentSuccess || p.Status == PaymentFailed
}

// ReconstitutePayment - special constructor for loading from storage
func ReconstitutePayment(
	id, orderRef string,
	amountCents int64,
	currency string,
	status PaymentStatus,
	gatewayHandle, idempotencyKey string,
	gatewayPaymentID, gatewaySignature *string,
	createdAt time.Time,
	verifiedAt *time.Time,
) *Payment {
	return &Payment{
		ID:               id,
		OrderRef:         orderRef,
		AmountCents:      amountCents,
		Currency:         currency,
		Status:           status,
		GatewayHandle:    gatewayHandle,
		IdempotencyKey:   idempotencyKey,
		GatewayPaymentID: gatewayPaymentID,
		GatewaySignature: gatewaySignature,
		CreatedAt:        createdAt,
		VerifiedAt:       verifiedAt,
	}
}
