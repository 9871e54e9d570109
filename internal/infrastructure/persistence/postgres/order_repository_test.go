package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/DanielPopoola/ficmart-checkout/internal/infrastructure/persistence/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T, ownerID string) *domain.Order {
	t.Helper()

	order, err := domain.NewOrder(uuid.NewString(), ownerID, []domain.LineItem{
		{ProductRef: "sku-101", Quantity: 2, UnitPriceCents: 2500},
		{ProductRef: "sku-202", Quantity: 1, UnitPriceCents: 9999},
	})
	require.NoError(t, err)
	return order
}

func TestOrderRepository(t *testing.T) {
	td := SetupTestDatabase(t)
	defer td.Cleanup(t)

	ctx := context.Background()
	repo := postgres.NewOrderRepository(td.DB.Pool)

	t.Run("create and find round trips every field", func(t *testing.T) {
		td.CleanTables(t)

		order := newTestOrder(t, "cust-1")
		require.NoError(t, repo.Create(ctx, order))

		got, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)

		assert.Equal(t, order.ID, got.ID)
		assert.Equal(t, order.OwnerID, got.OwnerID)
		assert.Equal(t, order.Items, got.Items)
		assert.Equal(t, int64(14999), got.TotalCents)
		assert.Equal(t, domain.OrderPending, got.Status)
		assert.Nil(t, got.PaymentRef)
		assert.WithinDuration(t, order.CreatedAt, got.CreatedAt, time.Second)
	})

	t.Run("find by id returns not found for unknown ids", func(t *testing.T) {
		td.CleanTables(t)

		_, err := repo.FindByID(ctx, uuid.NewString())
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeOrderNotFound))
	})

	t.Run("find by owner pages newest first", func(t *testing.T) {
		td.CleanTables(t)

		base := time.Now().UTC().Truncate(time.Millisecond)
		var ids []string
		for i := range 3 {
			order := newTestOrder(t, "cust-1")
			order.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, repo.Create(ctx, order))
			ids = append(ids, order.ID)
		}
		other := newTestOrder(t, "cust-2")
		require.NoError(t, repo.Create(ctx, other))

		page, err := repo.FindByOwner(ctx, "cust-1", 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[2], page[0].ID)
		assert.Equal(t, ids[1], page[1].ID)

		rest, err := repo.FindByOwner(ctx, "cust-1", 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, ids[0], rest[0].ID)
	})

	t.Run("find pending older than skips fresh and terminal orders", func(t *testing.T) {
		td.CleanTables(t)

		stale := newTestOrder(t, "cust-1")
		stale.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(t, repo.Create(ctx, stale))

		fresh := newTestOrder(t, "cust-1")
		require.NoError(t, repo.Create(ctx, fresh))

		done := newTestOrder(t, "cust-1")
		done.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(t, repo.Create(ctx, done))
		_, err := repo.Transition(ctx, done.ID, func(o *domain.Order) error {
			return o.Confirm("pay_1")
		})
		require.NoError(t, err)

		found, err := repo.FindPendingOlderThan(ctx, time.Now().Add(-30*time.Minute), 50)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, stale.ID, found[0].ID)
	})

	t.Run("transition persists a confirmation", func(t *testing.T) {
		td.CleanTables(t)

		order := newTestOrder(t, "cust-1")
		require.NoError(t, repo.Create(ctx, order))

		_, err := repo.Transition(ctx, order.ID, func(o *domain.Order) error {
			return o.Confirm("pay_1")
		})
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderConfirmed, got.Status)
		require.NotNil(t, got.PaymentRef)
		assert.Equal(t, "pay_1", *got.PaymentRef)
		assert.NotNil(t, got.ConfirmedAt)
	})

	t.Run("rejected transition leaves the row untouched", func(t *testing.T) {
		td.CleanTables(t)

		order := newTestOrder(t, "cust-1")
		require.NoError(t, repo.Create(ctx, order))
		_, err := repo.Transition(ctx, order.ID, func(o *domain.Order) error {
			return o.Confirm("pay_1")
		})
		require.NoError(t, err)

		_, err = repo.Transition(ctx, order.ID, func(o *domain.Order) error {
			return o.Cancel()
		})
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidTransition))

		got, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderConfirmed, got.Status)
		assert.Nil(t, got.CancelledAt)
	})

	t.Run("concurrent cancels serialize on the row lock", func(t *testing.T) {
		td.CleanTables(t)

		order := newTestOrder(t, "cust-1")
		require.NoError(t, repo.Create(ctx, order))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Transition(ctx, order.ID, func(o *domain.Order) error {
					return o.Cancel()
				})
				if err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())

		got, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCancelled, got.Status)
	})
}
