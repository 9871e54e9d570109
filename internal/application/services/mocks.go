package services

import (
	"context"
	"sync"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/domain"
	"github.com/google/uuid"
)

// MockOrderRepository
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order

	CreateFn               func(ctx context.Context, order *domain.Order) error
	FindByIDFn             func(ctx context.Context, id string) (*domain.Order, error)
	FindByOwnerFn          func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Order, error)
	FindPendingOlderThanFn func(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)
	TransitionFn           func(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, order)
	}
	m.orders[order.ID] = order
	return nil
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if o, ok := m.orders[id]; ok {
		return o, nil
	}
	return nil, domain.NewOrderNotFoundError(id)
}

func (m *MockOrderRepository) FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByOwnerFn != nil {
		return m.FindByOwnerFn(ctx, ownerID, limit, offset)
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindPendingOlderThanFn != nil {
		return m.FindPendingOlderThanFn(ctx, cutoff, limit)
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status == domain.OrderPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockOrderRepository) Transition(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	if m.TransitionFn != nil {
		return m.TransitionFn(ctx, id, fn)
	}
	// The whole-map lock serializes transitions the way row locks do.
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.NewOrderNotFoundError(id)
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	return o, nil
}

// MockPaymentRepository
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	CreateFn               func(ctx context.Context, payment *domain.Payment) error
	FindByIDFn             func(ctx context.Context, id string) (*domain.Payment, error)
	FindByOrderRefFn       func(ctx context.Context, orderRef string) (*domain.Payment, error)
	FindByGatewayHandleFn  func(ctx context.Context, handle string) (*domain.Payment, error)
	FindPendingOlderThanFn func(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error)
	TransitionFn           func(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, payment)
	}
	for _, p := range m.payments {
		if p.OrderRef == payment.OrderRef {
			return domain.NewDuplicatePaymentError(payment.OrderRef)
		}
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, domain.NewPaymentNotFoundError(id)
}

func (m *MockPaymentRepository) FindByOrderRef(ctx context.Context, orderRef string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByOrderRefFn != nil {
		return m.FindByOrderRefFn(ctx, orderRef)
	}
	for _, p := range m.payments {
		if p.OrderRef == orderRef {
			return p, nil
		}
	}
	return nil, domain.NewPaymentNotFoundError(orderRef)
}

func (m *MockPaymentRepository) FindByGatewayHandle(ctx context.Context, handle string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByGatewayHandleFn != nil {
		return m.FindByGatewayHandleFn(ctx, handle)
	}
	for _, p := range m.payments {
		if p.GatewayHandle == handle {
			return p, nil
		}
	}
	return nil, domain.NewPaymentNotFoundError(handle)
}

func (m *MockPaymentRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindPendingOlderThanFn != nil {
		return m.FindPendingOlderThanFn(ctx, cutoff, limit)
	}
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.PaymentPending && p.CreatedAt.Before(cutoff) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockPaymentRepository) Transition(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error) {
	if m.TransitionFn != nil {
		return m.TransitionFn(ctx, id, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.NewPaymentNotFoundError(id)
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	return p, nil
}

// MockGatewayClient deduplicates CreateIntent on the idempotency key, like
// the real processor, and counts both local calls and remote intents so
// tests can assert "one intent no matter how many retries".
type MockGatewayClient struct {
	mu       sync.Mutex
	byKey    map[string]*application.IntentResponse
	statuses map[string]*application.IntentStatus
	calls    int

	CreateIntentFn func(ctx context.Context, req application.IntentRequest, idempotencyKey string) (*application.IntentResponse, error)
	QueryIntentFn  func(ctx context.Context, handle string) (*application.IntentStatus, error)
}

func NewMockGatewayClient() *MockGatewayClient {
	return &MockGatewayClient{
		byKey:    make(map[string]*application.IntentResponse),
		statuses: make(map[string]*application.IntentStatus),
	}
}

func (m *MockGatewayClient) CreateIntent(ctx context.Context, req application.IntentRequest, idempotencyKey string) (*application.IntentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.CreateIntentFn != nil {
		return m.CreateIntentFn(ctx, req, idempotencyKey)
	}
	if resp, ok := m.byKey[idempotencyKey]; ok {
		return resp, nil
	}
	resp := &application.IntentResponse{
		Handle:    "gwo_" + uuid.New().String(),
		Status:    application.IntentStatusPending,
		CreatedAt: time.Now(),
	}
	m.byKey[idempotencyKey] = resp
	m.statuses[resp.Handle] = &application.IntentStatus{
		Handle: resp.Handle,
		Status: application.IntentStatusPending,
	}
	return resp, nil
}

func (m *MockGatewayClient) QueryIntent(ctx context.Context, handle string) (*application.IntentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryIntentFn != nil {
		return m.QueryIntentFn(ctx, handle)
	}
	if st, ok := m.statuses[handle]; ok {
		return st, nil
	}
	return nil, &application.GatewayError{Code: "intent_not_found", Message: "no such intent", StatusCode: 404}
}

// SetIntentStatus fakes the gateway-side outcome of an intent.
func (m *MockGatewayClient) SetIntentStatus(handle, status, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[handle] = &application.IntentStatus{Handle: handle, Status: status, Outcome: outcome}
}

// CreateCalls is the number of CreateIntent invocations, deduplicated or not.
func (m *MockGatewayClient) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// RemoteIntents is the number of distinct intents the gateway actually holds.
func (m *MockGatewayClient) RemoteIntents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byKey)
}

// MockVerifier
type MockVerifier struct {
	Valid    bool
	VerifyFn func(gatewayOrderID, gatewayPaymentID, signature string) bool
}

func NewMockVerifier() *MockVerifier {
	return &MockVerifier{Valid: true}
}

func (m *MockVerifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if m.VerifyFn != nil {
		return m.VerifyFn(gatewayOrderID, gatewayPaymentID, signature)
	}
	return m.Valid
}

// RecordingObserver counts protocol events for assertions.
type RecordingObserver struct {
	mu              sync.Mutex
	OrdersCreated   int
	Initiated       int
	Verified        map[string]int
	Rejected        int
	Reconciliations map[string]int
	Anomalies       map[string]int
}

func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{
		Verified:        make(map[string]int),
		Reconciliations: make(map[string]int),
		Anomalies:       make(map[string]int),
	}
}

func (r *RecordingObserver) OrderCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OrdersCreated++
}

func (r *RecordingObserver) PaymentInitiated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Initiated++
}

func (r *RecordingObserver) CallbackVerified(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Verified[outcome]++
}

func (r *RecordingObserver) CallbackRejected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rejected++
}

func (r *RecordingObserver) ReconciliationApplied(rule string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reconciliations[rule]++
}

func (r *RecordingObserver) AnomalyDetected(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Anomalies[kind]++
}
