package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	// Context errors (transient - network/timeout issues)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	// Domain errors
	switch {
	case domain.IsErrorCode(err, domain.ErrCodeValidation),
		domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField),
		domain.IsErrorCode(err, domain.ErrCodeOrderNotFound),
		domain.IsErrorCode(err, domain.ErrCodePaymentNotFound):
		return CategoryClientError

	case domain.IsErrorCode(err, domain.ErrCodeInvalidTransition),
		domain.IsErrorCode(err, domain.ErrCodeAmountMismatch),
		domain.IsErrorCode(err, domain.ErrCodeDuplicatePayment):
		return CategoryBusinessRule

	case domain.IsErrorCode(err, domain.ErrCodeAuthenticity):
		// forged callbacks are dropped, never retried
		return CategoryPermanent

	case domain.IsErrorCode(err, domain.ErrCodeReconciliationConflict):
		return CategoryBusinessRule

	case domain.IsErrorCode(err, domain.ErrCodeGatewayUnavailable):
		return CategoryTransient
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeInvalidInput:
			return CategoryClientError
		case ErrCodeInvalidState:
			return CategoryBusinessRule
		case ErrCodeUnavailable:
			return CategoryTransient
		case ErrCodeInternal:
			return CategoryInfrastructure
		}
	}

	// Gateway errors (external API)
	if gwErr, ok := IsGatewayError(err); ok {
		if gwErr.StatusCode >= 500 {
			return CategoryTransient
		}

		switch gwErr.Code {
		case "invalid_amount", "invalid_currency", "duplicate_reference":
			return CategoryPermanent
		case "intent_not_found", "missing_idempotency_key":
			return CategoryClientError
		case "internal_error":
			return CategoryTransient
		default:
			return CategoryPermanent
		}
	}

	// Default: transient (safe fallback)
	return CategoryTransient
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	category := CategorizeError(err)
	return category == CategoryTransient || category == CategoryInfrastructure
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case domain.IsErrorCode(err, domain.ErrCodeValidation),
		domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField):
		return http.StatusBadRequest

	case domain.IsErrorCode(err, domain.ErrCodeAuthenticity):
		return http.StatusUnauthorized

	case domain.IsErrorCode(err, domain.ErrCodeInvalidTransition),
		domain.IsErrorCode(err, domain.ErrCodeAmountMismatch),
		domain.IsErrorCode(err, domain.ErrCodeDuplicatePayment),
		domain.IsErrorCode(err, domain.ErrCodeReconciliationConflict):
		return http.StatusConflict

	case domain.IsErrorCode(err, domain.ErrCodeOrderNotFound),
		domain.IsErrorCode(err, domain.ErrCodePaymentNotFound):
		return http.StatusNotFound

	case domain.IsErrorCode(err, domain.ErrCodeGatewayUnavailable):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	if gwErr, ok := IsGatewayError(err); ok {
		return gwErr.StatusCode
	}

	return http.StatusInternalServerError
}

// ToErrorCode maps an error to a stable code for API responses
func ToErrorCode(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	if gwErr, ok := IsGatewayError(err); ok {
		return "GATEWAY_" + gwErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}

	return ErrCodeInternal
}
