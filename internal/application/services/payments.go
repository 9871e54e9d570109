package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/DanielPopoola/ficmart-checkout/internal/faultinject"
	"github.com/google/uuid"
)

// OrderReader is the read-only slice of the order boundary the payment
// service needs for amount validation.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// CallbackPayload is the gateway's echo of the intent and its outcome.
// The wire format is the processor's; we only rely on these fields.
type CallbackPayload struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Status           string `json:"status"`
}

// PaymentService owns the payment lifecycle: idempotent initiation against
// the gateway and signature-gated verification of callbacks.
type PaymentService struct {
	paymentRepo application.PaymentRepository
	orders      OrderReader
	gateway     application.GatewayClient
	verifier    application.CallbackVerifier
	observer    application.CheckoutObserver
	hook        faultinject.Hook
	currency    string
	logger      *slog.Logger
}

func NewPaymentService(
	paymentRepo application.PaymentRepository,
	orders OrderReader,
	gateway application.GatewayClient,
	verifier application.CallbackVerifier,
	observer application.CheckoutObserver,
	hook faultinject.Hook,
	currency string,
	logger *slog.Logger,
) *PaymentService {
	if observer == nil {
		observer = application.NoopObserver{}
	}
	if hook == nil {
		hook = faultinject.Noop{}
	}
	return &PaymentService{
		paymentRepo: paymentRepo,
		orders:      orders,
		gateway:     gateway,
		verifier:    verifier,
		observer:    observer,
		hook:        hook,
		currency:    currency,
		logger:      logger,
	}
}

// InitiatePayment creates (or resumes) the payment for an order. The
// idempotency key is derived from the order id, so calling it any number of
// times yields the same payment record and at most one remote intent.
//
// The pending record is persisted before the gateway call: a crash mid-way
// leaves a payment whose order is discoverable through OrderRef, which a
// later call or a reconciliation sweep resumes.
func (s *PaymentService) InitiatePayment(ctx context.Context, orderID string, amountCents int64) (*domain.Payment, error) {
	existing, err := s.paymentRepo.FindByOrderRef(ctx, orderID)
	if err == nil {
		return s.resumeOrReturn(ctx, existing)
	}
	if !domain.IsErrorCode(err, domain.ErrCodePaymentNotFound) {
		return nil, application.NewInternalError(err)
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.TotalCents != amountCents {
		return nil, domain.NewAmountMismatchError(order.TotalCents, amountCents)
	}
	if order.Status != domain.OrderPending {
		return nil, domain.NewInvalidOrderTransitionError(order.Status, domain.OrderPending)
	}

	payment, err := domain.NewPayment(uuid.New().String(), orderID, amountCents, s.currency)
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrDuplicateOrderRef) {
			// lost the race to a concurrent initiation; converge on the winner
			winner, findErr := s.paymentRepo.FindByOrderRef(ctx, orderID)
			if findErr != nil {
				return nil, application.NewInternalError(findErr)
			}
			return s.resumeOrReturn(ctx, winner)
		}
		return nil, application.NewInternalError(err)
	}

	s.observer.PaymentInitiated()

	if err := s.hook.Crash(ctx, faultinject.AfterPaymentPersist); err != nil {
		return nil, err
	}

	return s.ensureIntent(ctx, payment)
}

// resumeOrReturn completes a payment that exists but never got its gateway
// handle (crash between persist and gateway call), otherwise returns the
// record unchanged. The resume is refused once the order has gone terminal;
// no remote intent exists yet and one must not be created for a dead order.
func (s *PaymentService) resumeOrReturn(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if payment.GatewayHandle != "" || payment.IsTerminal() {
		return payment, nil
	}

	order, err := s.orders.GetOrder(ctx, payment.OrderRef)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPending {
		return nil, domain.NewInvalidOrderTransitionError(order.Status, domain.OrderPending)
	}

	return s.ensureIntent(ctx, payment)
}

func (s *PaymentService) ensureIntent(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	req := application.IntentRequest{
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Reference:   payment.OrderRef,
	}

	// The gateway deduplicates on the idempotency key, so a retried call
	// after an ambiguous failure returns the original intent.
	resp, err := s.gateway.CreateIntent(ctx, req, payment.IdempotencyKey)
	if err != nil {
		s.logger.Error("gateway intent creation failed",
			"payment_id", payment.ID,
			"order_id", payment.OrderRef,
			"error", err,
		)
		return nil, domain.NewGatewayUnavailableError(err)
	}

	// A crash here leaves a remote intent with no stored handle. The next
	// initiation replays CreateIntent with the same key and gets it back.
	if err := s.hook.Crash(ctx, faultinject.AfterGatewayIntent); err != nil {
		return nil, err
	}

	updated, err := s.paymentRepo.Transition(ctx, payment.ID, func(p *domain.Payment) error {
		return p.AttachHandle(resp.Handle)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment initiated",
		"payment_id", updated.ID,
		"order_id", updated.OrderRef,
		"gateway_handle", updated.GatewayHandle,
	)
	return updated, nil
}

// VerifyCallback authenticates a gateway callback and applies its outcome.
// A bad signature mutates nothing; a duplicate callback for a terminal
// payment returns the stored record unchanged.
func (s *PaymentService) VerifyCallback(ctx context.Context, rawPayload []byte, signature string) (*domain.Payment, error) {
	var payload CallbackPayload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	if payload.GatewayOrderID == "" || payload.GatewayPaymentID == "" {
		return nil, domain.NewMissingRequiredFieldError("gateway identifiers")
	}

	if !s.verifier.Verify(payload.GatewayOrderID, payload.GatewayPaymentID, signature) {
		s.observer.CallbackRejected()
		s.logger.Warn("rejected callback with invalid signature",
			"gateway_order_id", payload.GatewayOrderID,
			"gateway_payment_id", payload.GatewayPaymentID,
		)
		return nil, domain.NewAuthenticityError()
	}

	payment, err := s.paymentRepo.FindByGatewayHandle(ctx, payload.GatewayOrderID)
	if err != nil {
		return nil, err
	}

	if payment.IsTerminal() {
		s.logger.Info("duplicate callback for terminal payment",
			"payment_id", payment.ID,
			"status", payment.Status,
		)
		return payment, nil
	}

	updated, err := s.paymentRepo.Transition(ctx, payment.ID, func(p *domain.Payment) error {
		if p.IsTerminal() {
			// a concurrent callback won the race; keep its result
			return nil
		}
		switch payload.Status {
		case "captured", "success":
			return p.MarkSucceeded(payload.GatewayPaymentID, signature)
		case "failed":
			return p.MarkFailed()
		default:
			return domain.NewValidationError("unknown callback status " + payload.Status)
		}
	})
	if err != nil {
		return nil, err
	}

	s.observer.CallbackVerified(string(updated.Status))
	s.logger.Info("callback verified",
		"payment_id", updated.ID,
		"order_id", updated.OrderRef,
		"status", updated.Status,
	)
	return updated, nil
}

// ResolveFromGateway applies an authoritative intent status obtained by an
// outbound query, used by reconciliation for payments stuck in PENDING.
func (s *PaymentService) ResolveFromGateway(ctx context.Context, paymentID string, st *application.IntentStatus) (*domain.Payment, error) {
	return s.paymentRepo.Transition(ctx, paymentID, func(p *domain.Payment) error {
		if p.IsTerminal() {
			return nil
		}
		switch st.Status {
		case application.IntentStatusCaptured:
			return p.MarkSucceeded(st.Outcome, "")
		case application.IntentStatusFailed, application.IntentStatusExpired:
			return p.MarkFailed()
		default:
			// still pending at the gateway; leave it alone
			return nil
		}
	})
}

func (s *PaymentService) GetPaymentStatus(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.paymentRepo.FindByID(ctx, paymentID)
}

func (s *PaymentService) GetPaymentByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	return s.paymentRepo.FindByOrderRef(ctx, orderID)
}
