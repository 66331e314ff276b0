package router

import "sync"

// Disposable is anything that releases resources on Dispose.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a function to Disposable.
type DisposeFunc func()

// Dispose calls f.
func (f DisposeFunc) Dispose() { f() }

// Disposables disposes a group of Disposables together, in the order they
// were added. Models typically embed one and add their subscriptions to it.
// The zero value is ready to use.
type Disposables struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// Add appends items to the group. If the group is already disposed the
// items are disposed immediately.
func (d *Disposables) Add(items ...Disposable) {
	d.mu.Lock()
	if !d.disposed {
		for _, item := range items {
			if item != nil {
				d.items = append(d.items, item)
			}
		}
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	for _, item := range items {
		if item != nil {
			item.Dispose()
		}
	}
}

// Dispose disposes every item once. Later calls are no-ops.
func (d *Disposables) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	items := d.items
	d.items = nil
	d.mu.Unlock()

	for _, item := range items {
		item.Dispose()
	}
}

// IsDisposed reports whether Dispose has been called.
func (d *Disposables) IsDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.disposed
}

// Len returns the number of items waiting to be disposed.
func (d *Disposables) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.items)
}
