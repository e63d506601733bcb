package hub

import (
	"context"
	"sync/atomic"

	"github.com/dshills/reqhub/internal/hub/dispatch"
	"github.com/dshills/reqhub/internal/requisition"
)

// Handler handles a requisition payload. It returns true when it considers
// the requisition handled. Returning ErrConsumed marks the requisition
// handled and stops sequential delivery to later subscribers.
type Handler interface {
	Handle(ctx context.Context, payload any) (bool, error)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, payload any) (bool, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, payload any) (bool, error) {
	return f(ctx, payload)
}

// Subscription is the handle returned by Register. It is consumed by
// Unregister.
type Subscription struct {
	id      string
	name    requisition.Name
	handler Handler
	active  atomic.Bool
}

func newSubscription(id string, name requisition.Name, h Handler) *Subscription {
	s := &Subscription{
		id:      id,
		name:    name,
		handler: h,
	}
	s.active.Store(true)
	return s
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Name returns the requisition name the subscription listens to.
func (s *Subscription) Name() requisition.Name {
	return s.name
}

// Active reports whether the subscription still receives requisitions.
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}

// cancel reports whether this call deactivated the subscription.
func (s *Subscription) cancel() bool {
	return s.active.CompareAndSwap(true, false)
}

// Handle implements dispatch.Handler. A subscription cancelled after a
// dispatch snapshot was taken reports dispatch.ErrInactive.
func (s *Subscription) Handle(ctx context.Context, payload any) (bool, error) {
	if !s.active.Load() {
		return false, dispatch.ErrInactive
	}
	return s.handler.Handle(ctx, payload)
}
