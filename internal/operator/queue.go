package operator

import (
	"context"
	"sync"
)

// workQueue is an unbounded FIFO with per-key deduplication.
//
// A key is never handed out twice at the same time: an item added while
// its key is being processed is parked and queued again once Done is
// called for that key.
type workQueue[T any] struct {
	mu sync.Mutex

	key func(T) string

	// queue holds items in arrival order
	queue []T

	// processing tracks keys handed out by Get and not yet Done
	processing map[string]bool

	// dirty holds the latest item added for a key while it was processing
	dirty map[string]T

	cond *sync.Cond

	shuttingDown bool
}

func newWorkQueue[T any](key func(T) string) *workQueue[T] {
	q := &workQueue[T]{
		key:        key,
		processing: make(map[string]bool),
		dirty:      make(map[string]T),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add queues item, replacing a waiting item with the same key in place.
// Items added after Shutdown are ignored.
func (q *workQueue[T]) Add(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	key := q.key(item)

	if q.processing[key] {
		q.dirty[key] = item
		return
	}

	for i, existing := range q.queue {
		if q.key(existing) == key {
			q.queue[i] = item
			return
		}
	}

	q.queue = append(q.queue, item)
	q.cond.Signal()
}

// Get blocks until an item is available. It returns false once ctx is done
// or the queue has been shut down and drained.
func (q *workQueue[T]) Get(ctx context.Context) (T, bool) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		if ctx.Err() != nil {
			return zero, false
		}

		// Wake the cond when ctx is cancelled; done releases the goroutine
		// on a normal wakeup.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		if ctx.Err() != nil {
			return zero, false
		}
	}

	if len(q.queue) == 0 {
		return zero, false
	}

	item := q.queue[0]
	q.queue[0] = zero
	q.queue = q.queue[1:]
	q.processing[q.key(item)] = true

	return item, true
}

// Done marks item's key as processed and re-queues a parked item for it.
func (q *workQueue[T]) Done(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := q.key(item)
	delete(q.processing, key)

	if parked, ok := q.dirty[key]; ok {
		delete(q.dirty, key)
		if q.shuttingDown {
			return
		}
		q.queue = append(q.queue, parked)
		q.cond.Signal()
	}
}

// Len returns the number of waiting items.
func (q *workQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Shutdown stops accepting items. Waiting items are still handed out.
func (q *workQueue[T]) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}
