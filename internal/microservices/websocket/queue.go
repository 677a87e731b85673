package websocket

import "sync"

// Queue is a bounded FIFO of outbound frames. When full, Push discards the
// oldest queued frame to make room, so a slow client loses freshness instead
// of holding up the relay. All methods are safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	items   [][]byte
	head    int // index of the oldest frame
	size    int
	dropped uint64
	ready   chan struct{} // signalled (non-blocking) after every Push
}

// NewQueue creates a queue holding at most capacity frames.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		items: make([][]byte, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push appends a frame and reports whether the oldest frame was dropped to
// make room for it. Never blocks.
func (q *Queue) Push(frame []byte) bool {
	q.mu.Lock()
	dropped := false
	capacity := len(q.items)
	if q.size == capacity {
		q.items[q.head] = nil
		q.head = (q.head + 1) % capacity
		q.size--
		q.dropped++
		dropped = true
	}
	q.items[(q.head+q.size)%capacity] = frame
	q.size++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Pop removes and returns the oldest frame.
func (q *Queue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil, false
	}
	frame := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return frame, true
}

// Ready is signalled whenever a frame has been pushed. A receive does not
// guarantee the queue is still non-empty.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return len(q.items)
}

// Dropped returns how many frames were discarded by overflow so far.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
