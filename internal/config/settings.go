package config

import (
	"reflect"
	"sort"
	"sync"

	"github.com/juju/errors"
)

// Change is one setting that differs between two snapshots. Removed is set
// when the key no longer exists.
type Change struct {
	Key     string
	Value   any
	Removed bool
}

// Store holds the current settings keyed by dotted path.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewStore creates a store holding initial.
func NewStore(initial map[string]any) *Store {
	s := &Store{values: make(map[string]any, len(initial))}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Get returns the value of key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// All returns a copy of every setting.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Set changes one setting. A nil value removes it.
func (s *Store) Set(key string, value any) error {
	if key == "" {
		return errors.NotValidf("empty setting key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.values, key)
	} else {
		s.values[key] = value
	}
	logger.Debugf("setting %s = %v", key, value)
	return nil
}

// Replace swaps in a new snapshot and returns the differences in key order.
// The caller reports the changes.
func (s *Store) Replace(values map[string]any) []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changes []Change
	for k, v := range values {
		if old, ok := s.values[k]; !ok || !reflect.DeepEqual(old, v) {
			changes = append(changes, Change{Key: k, Value: v})
		}
	}
	for k := range s.values {
		if _, ok := values[k]; !ok {
			changes = append(changes, Change{Key: k, Removed: true})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })

	s.values = make(map[string]any, len(values))
	for k, v := range values {
		s.values[k] = v
	}
	return changes
}
