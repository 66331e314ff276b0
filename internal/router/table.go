package router

import (
	"sort"
	"sync"

	"github.com/dshills/stagerouter/internal/router/discovery"
	"github.com/dshills/stagerouter/internal/router/stage"
)

type tableKey struct {
	event string
	stage stage.Stage
}

// DispatchTable maps (event name, stage) to the handlers registered for it,
// in insertion order. It is safe for concurrent use.
//
// Once detached the table is empty and ignores inserts and removals.
type DispatchTable struct {
	mu       sync.RWMutex
	lists    map[tableKey][]*HandlerEntry
	where    map[*HandlerEntry]tableKey
	detached bool
}

// NewDispatchTable creates an empty table.
func NewDispatchTable() *DispatchTable {
	return &DispatchTable{
		lists: make(map[tableKey][]*HandlerEntry),
		where: make(map[*HandlerEntry]tableKey),
	}
}

func (t *DispatchTable) insertLocked(k tableKey, entry HandlerEntry) *HandlerEntry {
	e := &entry
	t.lists[k] = append(t.lists[k], e)
	t.where[e] = k
	return e
}

// insertAll stores every binding for subscriptionID atomically. It returns
// false and stores nothing if the table is detached.
func (t *DispatchTable) insertAll(subscriptionID string, bindings []discovery.Binding) ([]*HandlerEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detached {
		return nil, false
	}

	entries := make([]*HandlerEntry, 0, len(bindings))
	for _, b := range bindings {
		entries = append(entries, t.insertLocked(tableKey{b.EventName, b.Stage}, HandlerEntry{
			Member:         b.Member,
			SubscriptionID: subscriptionID,
			Handler:        b.Handler,
		}))
	}
	return entries, true
}

// Remove deletes entry. It reports false if the entry is not in the table.
func (t *DispatchTable) Remove(entry *HandlerEntry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.removeLocked(entry)
}

func (t *DispatchTable) removeLocked(entry *HandlerEntry) bool {
	k, ok := t.where[entry]
	if !ok {
		return false
	}
	delete(t.where, entry)

	list := t.lists[k]
	for i, e := range list {
		if e != entry {
			continue
		}
		// Build a new slice so lists handed out earlier never change.
		next := make([]*HandlerEntry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(t.lists, k)
		} else {
			t.lists[k] = next
		}
		break
	}
	return true
}

// Snapshot returns a copy of the handlers for eventName and st.
func (t *DispatchTable) Snapshot(eventName string, st stage.Stage) []*HandlerEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := t.lists[tableKey{eventName, st}]
	if len(list) == 0 {
		return nil
	}
	out := make([]*HandlerEntry, len(list))
	copy(out, list)
	return out
}

// Len returns the total number of handlers in the table.
func (t *DispatchTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.where)
}

// Events returns the event names with at least one handler, sorted.
func (t *DispatchTable) Events() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for k := range t.lists {
		if !seen[k.event] {
			seen[k.event] = true
			out = append(out, k.event)
		}
	}
	sort.Strings(out)
	return out
}

// Detach empties the table and makes later inserts and removals no-ops.
func (t *DispatchTable) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.detached = true
	t.lists = make(map[tableKey][]*HandlerEntry)
	t.where = make(map[*HandlerEntry]tableKey)
}

// Detached reports whether Detach has been called.
func (t *DispatchTable) Detached() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.detached
}
