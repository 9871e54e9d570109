package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/DanielPopoola/ficmart-checkout/internal/infrastructure/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, order_ref, amount_cents, currency, status,
		gateway_handle, idempotency_key, gateway_payment_id, gateway_signature,
		created_at, verified_at`

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment. The unique index on order_ref makes this the
// arbitration point for concurrent initiations: exactly one insert wins.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			id, order_ref, amount_cents, currency, status,
			gateway_handle, idempotency_key, gateway_payment_id, gateway_signature,
			created_at, verified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	m := toPaymentModel(payment)
	_, err := r.db.Exec(ctx, query,
		m.ID,
		m.OrderRef,
		m.AmountCents,
		m.Currency,
		m.Status,
		m.GatewayHandle,
		m.IdempotencyKey,
		m.GatewayPaymentID,
		m.GatewaySignature,
		m.CreatedAt,
		m.VerifiedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return domain.NewDuplicatePaymentError(payment.OrderRef)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return scanPayment(row, id)
}

func (r *PaymentRepository) FindByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_ref = $1`

	row := r.db.QueryRow(ctx, query, orderRef)
	return scanPayment(row, orderRef)
}

func (r *PaymentRepository) FindByGatewayHandle(ctx context.Context, handle string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_handle = $1`

	row := r.db.QueryRow(ctx, query, handle)
	return scanPayment(row, handle)
}

func (r *PaymentRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, string(domain.PaymentPending), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

// Transition applies fn to the payment under a row lock.
func (r *PaymentRepository) Transition(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	payment, err := scanPayment(tx.QueryRow(ctx, query, id), id)
	if err != nil {
		return nil, err
	}

	if err := fn(payment); err != nil {
		return nil, err
	}

	m := toPaymentModel(payment)
	update := `
		UPDATE payments
		SET status = $2, gateway_handle = $3, gateway_payment_id = $4,
		    gateway_signature = $5, verified_at = $6
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, m.ID, m.Status, m.GatewayHandle, m.GatewayPaymentID, m.GatewaySignature, m.VerifiedAt); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment transition: %w", err)
	}

	return payment, nil
}

func scanPayment(row pgx.Row, ref string) (*domain.Payment, error) {
	var m PaymentModel
	err := row.Scan(
		&m.ID,
		&m.OrderRef,
		&m.AmountCents,
		&m.Currency,
		&m.Status,
		&m.GatewayHandle,
		&m.IdempotencyKey,
		&m.GatewayPaymentID,
		&m.GatewaySignature,
		&m.CreatedAt,
		&m.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentNotFoundError(ref)
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	return toPaymentDomain(&m), nil
}

func collectPayments(rows pgx.Rows) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	for rows.Next() {
		var m PaymentModel
		err := rows.Scan(
			&m.ID,
			&m.OrderRef,
			&m.AmountCents,
			&m.Currency,
			&m.Status,
			&m.GatewayHandle,
			&m.IdempotencyKey,
			&m.GatewayPaymentID,
			&m.GatewaySignature,
			&m.CreatedAt,
			&m.VerifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, toPaymentDomain(&m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment rows: %w", err)
	}

	return payments, nil
}
