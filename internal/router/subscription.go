package router

import "sync"

// Subscription is the handle returned by ObserveEventsOn. It owns the
// table entries inserted for one observer. The caller is responsible for
// disposing it.
type Subscription struct {
	id      string
	modelID string
	table   *DispatchTable

	mu        sync.Mutex
	entries   []*HandlerEntry
	disposed  bool
	onDispose func(*Subscription, int)
}

func newSubscription(id, modelID string, table *DispatchTable) *Subscription {
	return &Subscription{
		id:      id,
		modelID: modelID,
		table:   table,
	}
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// ModelID returns the id of the observed model.
func (s *Subscription) ModelID() string {
	return s.modelID
}

// Len returns the number of handlers the subscription still owns.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// IsDisposed reports whether Dispose has been called.
func (s *Subscription) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disposed
}

// IsActive reports whether the subscription's handlers can still run: it
// has not been disposed and its model has not been unregistered.
func (s *Subscription) IsActive() bool {
	return !s.IsDisposed() && !s.table.Detached()
}

// Dispose removes the subscription's handlers from the model's table. They
// will not run for any later publish; a phase already in progress still
// runs the handlers it captured. Dispose is idempotent and safe after the
// model has been unregistered.
func (s *Subscription) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	entries := s.entries
	s.entries = nil
	onDispose := s.onDispose
	s.mu.Unlock()

	removed := 0
	for _, e := range entries {
		if s.table.Remove(e) {
			removed++
		}
	}
	if onDispose != nil {
		onDispose(s, removed)
	}
}
