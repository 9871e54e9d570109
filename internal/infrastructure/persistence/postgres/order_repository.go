package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id, owner_id, items, total_cents, status, payment_ref,
		created_at, confirmed_at, cancelled_at`

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, owner_id, items, total_cents, status, payment_ref,
			created_at, confirmed_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	m, err := toOrderModel(order)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		m.ID,
		m.OwnerID,
		m.Items,
		m.TotalCents,
		m.Status,
		m.PaymentRef,
		m.CreatedAt,
		m.ConfirmedAt,
		m.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return scanOrder(row, id)
}

func (r *OrderRepository) FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders by owner: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *OrderRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, string(domain.OrderPending), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// Transition applies fn to the order under a row lock. Concurrent
// transitions on the same order serialize on FOR UPDATE, so fn always sees
// the latest committed state.
func (r *OrderRepository) Transition(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRow(ctx, query, id), id)
	if err != nil {
		return nil, err
	}

	if err := fn(order); err != nil {
		return nil, err
	}

	m, err := toOrderModel(order)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE orders
		SET status = $2, payment_ref = $3, confirmed_at = $4, cancelled_at = $5
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, m.ID, m.Status, m.PaymentRef, m.ConfirmedAt, m.CancelledAt); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order transition: %w", err)
	}

	return order, nil
}

func scanOrder(row pgx.Row, id string) (*domain.Order, error) {
	var m OrderModel
	err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.Items,
		&m.TotalCents,
		&m.Status,
		&m.PaymentRef,
		&m.CreatedAt,
		&m.ConfirmedAt,
		&m.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewOrderNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return toOrderDomain(&m)
}

func collectOrders(rows pgx.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		var m OrderModel
		err := rows.Scan(
			&m.ID,
			&m.OwnerID,
			&m.Items,
			&m.TotalCents,
			&m.Status,
			&m.PaymentRef,
			&m.CreatedAt,
			&m.ConfirmedAt,
			&m.CancelledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}

		order, err := toOrderDomain(&m)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}

	return orders, nil
}
