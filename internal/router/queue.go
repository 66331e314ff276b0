package router

import "sync"

// queuedItem is one pending unit of work against the model entry resolved
// at submission time. Exactly one of action and eventName is set.
type queuedItem struct {
	entry     *ModelEntry
	eventName string
	payload   any
	action    func(model any) error
}

// publishQueue is the FIFO of pending events. At most one caller drains
// it at a time.
type publishQueue struct {
	mu       sync.Mutex
	items    []queuedItem
	draining bool
}

// enqueue appends items and reports whether the caller must drain the
// queue. It returns true only when no other caller is draining.
func (q *publishQueue) enqueue(items ...queuedItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, items...)
	if q.draining {
		return false
	}
	q.draining = true
	return true
}

// next pops the oldest item. When the queue is empty it releases the
// drain flag and returns false, in the same critical section, so an item
// enqueued concurrently is never stranded.
func (q *publishQueue) next() (queuedItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		q.draining = false
		q.items = nil
		return queuedItem{}, false
	}
	item := q.items[0]
	q.items[0] = queuedItem{}
	q.items = q.items[1:]
	return item, true
}

// busy reports whether a caller is draining.
func (q *publishQueue) busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.draining
}

// len returns the number of pending items.
func (q *publishQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// reset drops pending items and releases the drain flag. It returns the
// number of items dropped.
func (q *publishQueue) reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	q.draining = false
	return n
}
