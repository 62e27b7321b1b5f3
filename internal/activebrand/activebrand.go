// Package activebrand holds the process-wide active-brand selector. It is
// an explicit, injectable store with subscribe/get/set semantics; switching
// brands bumps an epoch that in-flight fetches compare against, so a late
// response for the previous brand is discarded rather than merged.
package activebrand

import (
	"strings"
	"sync"

	"github.com/brandguard/brandguard-bot/internal/storage"
	"github.com/sirupsen/logrus"
)

// PreferenceKey is the fixed storage key the selection persists under.
const PreferenceKey = "active-brand"

// Listener is notified with the new brand id after a switch.
type Listener func(brandID string)

// Store is the active-brand selector.
type Store struct {
	mu        sync.Mutex
	persist   storage.Interface
	brandID   string
	epoch     uint64
	listeners map[int]Listener
	nextSub   int
	closed    bool
}

// New loads the persisted selection, falling back to defaultID when absent.
func New(persist storage.Interface, defaultID string) *Store {
	s := &Store{
		persist:   persist,
		brandID:   defaultID,
		listeners: make(map[int]Listener),
	}

	if persist != nil {
		if data, err := persist.Retrieve(PreferenceKey); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				s.brandID = id
			}
		}
	}
	return s
}

// Get returns the current brand id.
func (s *Store) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brandID
}

// Epoch returns the current switch counter. A fetch records the epoch when
// it starts and discards its result if the epoch moved before it finished.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Set switches the active brand, persists the choice, and notifies
// subscribers. Setting the same brand again is a no-op.
func (s *Store) Set(brandID string) {
	s.mu.Lock()
	if s.closed || brandID == "" || brandID == s.brandID {
		s.mu.Unlock()
		return
	}
	s.brandID = brandID
	s.epoch++
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.Store(PreferenceKey, []byte(brandID)); err != nil {
			logrus.Warnf("Failed to persist active brand: %v", err)
		}
	}

	for _, fn := range listeners {
		fn(brandID)
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close clears all listeners. Further Set calls are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = make(map[int]Listener)
}
