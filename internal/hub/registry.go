package hub

import (
	"sync"

	"github.com/dshills/reqhub/internal/requisition"
)

// Registry keeps subscriptions per requisition name in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	subs map[requisition.Name][]*Subscription
	byID map[string]*Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[requisition.Name][]*Subscription),
		byID: make(map[string]*Subscription),
	}
}

// Add appends a subscription to the list of its name.
func (r *Registry) Add(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[sub.name] = append(r.subs[sub.name], sub)
	r.byID[sub.id] = sub
}

// Remove deletes a subscription. It returns false if the subscription was
// not registered.
func (r *Registry) Remove(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byID[sub.id] != sub {
		return false
	}
	delete(r.byID, sub.id)

	subs := r.subs[sub.name]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(r.subs, sub.name)
	} else {
		r.subs[sub.name] = subs
	}
	return true
}

// Snapshot returns a copy of the subscriptions of name in registration
// order.
func (r *Registry) Snapshot(name requisition.Name) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subs[name]
	if len(subs) == 0 {
		return nil
	}
	result := make([]*Subscription, len(subs))
	copy(result, subs)
	return result
}

// Count returns the number of subscriptions of name.
func (r *Registry) Count(name requisition.Name) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[name])
}

// Total returns the number of subscriptions across all names.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

// Clear removes every subscription and returns them.
func (r *Registry) Clear() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*Subscription, 0, len(r.byID))
	for _, subs := range r.subs {
		all = append(all, subs...)
	}
	r.subs = make(map[requisition.Name][]*Subscription)
	r.byID = make(map[string]*Subscription)
	return all
}
