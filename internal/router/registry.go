package router

import (
	"sync"
)

// ModelEntry is a registered model together with its dispatch table.
type ModelEntry struct {
	id    string
	model any
	table *DispatchTable
}

// ID returns the model id.
func (e *ModelEntry) ID() string { return e.id }

// Model returns the registered model.
func (e *ModelEntry) Model() any { return e.model }

// Table returns the model's dispatch table.
func (e *ModelEntry) Table() *DispatchTable { return e.table }

// Registry maps model ids to entries. It is thread-safe for concurrent
// access and remembers registration order.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*ModelEntry
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*ModelEntry),
	}
}

// Register adds model under id with a fresh dispatch table.
func (r *Registry) Register(id string, model any) (*ModelEntry, error) {
	if id == "" {
		return nil, ErrEmptyModelID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[id]; exists {
		return nil, &DuplicateModelError{ModelID: id}
	}

	entry := &ModelEntry{id: id, model: model, table: NewDispatchTable()}
	r.models[id] = entry
	r.order = append(r.order, id)
	return entry, nil
}

// Unregister removes id and detaches its table. It reports false if id
// was not registered.
func (r *Registry) Unregister(id string) (*ModelEntry, bool) {
	r.mu.Lock()
	entry, exists := r.models[id]
	if !exists {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.models, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	entry.table.Detach()
	return entry, true
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (*ModelEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.models[id]
	if !exists {
		return nil, &UnknownModelError{ModelID: id, Suggestion: suggest(id, r.order)}
	}
	return entry, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.models[id]
	return exists
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Entries returns the registered entries in registration order.
func (r *Registry) Entries() []*ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ModelEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.models)
}

// HandlerCount returns the total number of handlers across all tables.
func (r *Registry) HandlerCount() int {
	total := 0
	for _, e := range r.Entries() {
		total += e.table.Len()
	}
	return total
}
