package engine

// mailbox is an unbounded FIFO queue for one dispatch key.
//
// The queue is unbounded so that a slow handler never applies back-pressure
// to the producer; ordering is preserved because only the key's worker
// dequeues. It is not safe for concurrent use on its own and is always
// accessed under the owning Dispatcher's mutex.
type mailbox[T any] struct {
	items []T
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{items: make([]T, 0, 8)}
}

// push adds an item to the back of the queue.
func (q *mailbox[T]) push(item T) {
	q.items = append(q.items, item)
}

// pop removes and returns the front item.
// Returns false if the queue is empty.
func (q *mailbox[T]) pop() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]

	// Clear the slot so the backing array does not retain the item's
	// pointers until it is reallocated.
	q.items[0] = zero

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return item, true
}

// len returns the number of queued items.
func (q *mailbox[T]) len() int {
	return len(q.items)
}
