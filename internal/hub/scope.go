package hub

import (
	"sync"

	"github.com/dshills/reqhub/internal/requisition"
)

// Scope groups subscriptions made on one hub so they can be removed
// together when their owner goes away.
type Scope struct {
	hub *Hub

	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// NewScope creates an empty scope on h.
func (h *Hub) NewScope() *Scope {
	return &Scope{hub: h}
}

// Hub returns the hub the scope registers on.
func (s *Scope) Hub() *Hub {
	return s.hub
}

// Register registers handler on the hub and records the subscription.
func (s *Scope) Register(name requisition.Name, handler Handler) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrScopeClosed
	}
	sub, err := s.hub.Register(name, handler)
	if err != nil {
		return nil, err
	}
	s.subs = append(s.subs, sub)
	return sub, nil
}

// Unregister removes a subscription that was made through this scope.
func (s *Scope) Unregister(sub *Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, owned := range s.subs {
		if owned == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return s.hub.Unregister(sub)
		}
	}
	return false
}

// Len returns the number of live subscriptions in the scope.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.subs)
}

// Close unregisters every subscription of the scope. Later calls do
// nothing.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for _, sub := range s.subs {
		s.hub.Unregister(sub)
	}
	s.subs = nil
}
