// Package faultinject lets tests interrupt the checkout protocol at named
// suspension points, simulating a process crash between two durable writes.
// The production hook is a no-op.
package faultinject

import (
	"context"
	"errors"
	"math/rand"
	"sync"
)

// Point names a suspension point inside a coordinator sequence.
type Point string

const (
	AfterOrderCreate    Point = "after_order_create"
	AfterPaymentPersist Point = "after_payment_persist"
	AfterGatewayIntent  Point = "after_gateway_intent"
	AfterVerify         Point = "after_verify"
	BeforeOrderUpdate   Point = "before_order_update"
)

// ErrInjectedCrash is returned from an armed point. State written before the
// point stays durable, exactly as it would after a real crash.
var ErrInjectedCrash = errors.New("injected crash")

// Hook is consulted at each point. A non-nil error aborts the operation.
type Hook interface {
	Crash(ctx context.Context, p Point) error
}

// Noop never crashes.
type Noop struct{}

func (Noop) Crash(context.Context, Point) error { return nil }

// Armed crashes exactly once at the configured point.
type Armed struct {
	mu    sync.Mutex
	at    Point
	fired bool
}

func ArmAt(p Point) *Armed {
	return &Armed{at: p}
}

func (a *Armed) Crash(_ context.Context, p Point) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fired || p != a.at {
		return nil
	}
	a.fired = true
	return ErrInjectedCrash
}

// Fired reports whether the armed point has triggered.
func (a *Armed) Fired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fired
}

// Random crashes at any point with the given probability, for soak-style
// chaos runs.
type Random struct {
	Rate float64
}

func (r Random) Crash(context.Context, Point) error {
	if rand.Float64() < r.Rate {
		return ErrInjectedCrash
	}
	return nil
}
