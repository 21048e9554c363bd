package engine

import "sync"

// TextQueue is an unbounded FIFO of generated text pending synthesis. The
// context loop produces, the audio loop consumes at most one item per
// iteration, so the consumer must never block on an empty queue.
type TextQueue struct {
	mu    sync.Mutex
	items []string
}

// NewTextQueue creates an empty text queue.
func NewTextQueue() *TextQueue {
	return &TextQueue{}
}

// Push appends text to the back of the queue.
func (q *TextQueue) Push(text string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, text)
}

// TryPop removes and returns the oldest item without blocking. The second
// return value is false when the queue is empty.
func (q *TextQueue) TryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}

	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of pending items.
func (q *TextQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
