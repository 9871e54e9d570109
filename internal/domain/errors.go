package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain error codes
const (
	ErrCodeValidation             = "VALIDATION"
	ErrCodeInvalidTransition      = "INVALID_TRANSITION"
	ErrCodeAmountMismatch         = "AMOUNT_MISMATCH"
	ErrCodeAuthenticity           = "AUTHENTICITY"
	ErrCodeGatewayUnavailable     = "GATEWAY_UNAVAILABLE"
	ErrCodeReconciliationConflict = "RECONCILIATION_CONFLICT"
	ErrCodeOrderNotFound          = "ORDER_NOT_FOUND"
	ErrCodePaymentNotFound        = "PAYMENT_NOT_FOUND"
	ErrCodeDuplicatePayment       = "DUPLICATE_PAYMENT"
	ErrCodeMissingRequiredField   = "MISSING_REQUIRED_FIELD"
)

// ErrDuplicateOrderRef is returned when a second payment record is created
// for an order that already has one.
var ErrDuplicateOrderRef = errors.New("payment already exists for order")

func NewValidationError(msg string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidOrderTransitionError(from, to OrderStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition order from %s to %s", from, to),
	}
}

func NewInvalidPaymentTransitionError(from, to PaymentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition payment from %s to %s", from, to),
	}
}

func NewPaymentRefMismatchError(orderID, have, want string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("order %s is bound to payment %s, not %s", orderID, have, want),
	}
}

func NewAmountMismatchError(expected, actual int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountMismatch,
		Message: fmt.Sprintf("amount mismatch: order total is %d, got %d", expected, actual),
	}
}

func NewAuthenticityError() *DomainError {
	return &DomainError{
		Code:    ErrCodeAuthenticity,
		Message: "callback signature verification failed",
	}
}

func NewGatewayUnavailableError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeGatewayUnavailable,
		Message: "payment gateway unavailable",
		Err:     err,
	}
}

func NewReconciliationConflictError(orderID, paymentID, detail string) *DomainError {
	return &DomainError{
		Code:    ErrCodeReconciliationConflict,
		Message: fmt.Sprintf("order %s / payment %s cannot be auto-resolved: %s", orderID, paymentID, detail),
	}
}

func NewOrderNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("order with ID %s not found", id),
	}
}

func NewPaymentNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment with ID %s not found", id),
	}
}

func NewDuplicatePaymentError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicatePayment,
		Message: fmt.Sprintf("order %s already has a payment", orderID),
		Err:     ErrDuplicateOrderRef,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
