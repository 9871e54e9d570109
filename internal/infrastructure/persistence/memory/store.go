// Package memory holds in-process implementations of the persistence ports.
// Used for local runs and chaos experiments where a database would only get
// in the way; semantics mirror the postgres repositories, including the
// unique order_ref constraint and per-entity transition locking.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
)

type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	locks  *lockTable
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*domain.Order),
		locks:  newLockTable(),
	}
}

func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.NewOrderNotFoundError(id)
	}
	return cloneOrder(o), nil
}

func (s *OrderStore) FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*domain.Order
	for _, o := range s.orders {
		if o.OwnerID == ownerID {
			all = append(all, o)
		}
	}
	slices.SortFunc(all, func(a, b *domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]*domain.Order, len(all))
	for i, o := range all {
		out[i] = cloneOrder(o)
	}
	return out, nil
}

func (s *OrderStore) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Order
	for _, o := range s.orders {
		if o.Status == domain.OrderPending && o.CreatedAt.Before(cutoff) {
			out = append(out, cloneOrder(o))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *OrderStore) Transition(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	s.mu.RLock()
	stored, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NewOrderNotFoundError(id)
	}

	// fn works on a copy so a rejected transition leaves the store untouched
	working := cloneOrder(stored)
	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.orders[id] = cloneOrder(working)
	s.mu.Unlock()
	return working, nil
}

type PaymentStore struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
	byOrder  map[string]string
	locks    *lockTable
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payments: make(map[string]*domain.Payment),
		byOrder:  make(map[string]string),
		locks:    newLockTable(),
	}
}

func (s *PaymentStore) Create(ctx context.Context, payment *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byOrder[payment.OrderRef]; exists {
		return domain.NewDuplicatePaymentError(payment.OrderRef)
	}
	s.payments[payment.ID] = clonePayment(payment)
	s.byOrder[payment.OrderRef] = payment.ID
	return nil
}

func (s *PaymentStore) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, domain.NewPaymentNotFoundError(id)
	}
	return clonePayment(p), nil
}

func (s *PaymentStore) FindByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOrder[orderRef]
	if !ok {
		return nil, domain.NewPaymentNotFoundError(orderRef)
	}
	return clonePayment(s.payments[id]), nil
}

func (s *PaymentStore) FindByGatewayHandle(ctx context.Context, handle string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.GatewayHandle != "" && p.GatewayHandle == handle {
			return clonePayment(p), nil
		}
	}
	return nil, domain.NewPaymentNotFoundError(handle)
}

func (s *PaymentStore) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Payment
	for _, p := range s.payments {
		if p.Status == domain.PaymentPending && p.CreatedAt.Before(cutoff) {
			out = append(out, clonePayment(p))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *PaymentStore) Transition(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	s.mu.RLock()
	stored, ok := s.payments[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NewPaymentNotFoundError(id)
	}

	working := clonePayment(stored)
	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.payments[id] = clonePayment(working)
	s.mu.Unlock()
	return working, nil
}

// lockTable hands out one mutex per entity id, the in-memory stand-in for a
// SELECT FOR UPDATE row lock.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) lock(id string) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	c.PaymentRef = clonePtr(o.PaymentRef)
	c.ConfirmedAt = clonePtr(o.ConfirmedAt)
	c.CancelledAt = clonePtr(o.CancelledAt)
	return &c
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	c.GatewayPaymentID = clonePtr(p.GatewayPaymentID)
	c.GatewaySignature = clonePtr(p.GatewaySignature)
	c.VerifiedAt = clonePtr(p.VerifiedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
