package scpi

import (
	"sync"

	"instrument-firmware/pkg/protocol"
)

// DefaultErrorQueueDepth matches the usual small instrument queue.
const DefaultErrorQueueDepth = 8

// ErrorQueue is the bounded FIFO of pending protocol error codes, drained by
// SYSTem:ERRor? queries. When the queue is full the newest entry is replaced
// by the -350 overflow marker and further pushes are dropped until the queue
// drains.
type ErrorQueue struct {
	mu         sync.Mutex
	codes      []int
	depth      int
	overflowed bool

	// OnPush, if set, observes every accepted code. The engine uses it to
	// raise the matching event-status bits.
	OnPush func(code int)
}

func NewErrorQueue(depth int) *ErrorQueue {
	if depth <= 0 {
		depth = DefaultErrorQueueDepth
	}
	return &ErrorQueue{depth: depth}
}

// Push queues a code. Pushing 0 is a no-op.
func (q *ErrorQueue) Push(code int) {
	if code == protocol.ErrNone {
		return
	}
	q.mu.Lock()
	switch {
	case len(q.codes) < q.depth:
		q.codes = append(q.codes, code)
	case !q.overflowed:
		q.codes[q.depth-1] = protocol.ErrQueueOverflow
		q.overflowed = true
	}
	cb := q.OnPush
	q.mu.Unlock()
	if cb != nil {
		cb(code)
	}
}

// Pop removes and returns the oldest code, or 0 when empty.
func (q *ErrorQueue) Pop() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.codes) == 0 {
		return protocol.ErrNone
	}
	code := q.codes[0]
	q.codes = q.codes[1:]
	if len(q.codes) == 0 {
		q.overflowed = false
	}
	return code
}

// Count returns the number of pending codes.
func (q *ErrorQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.codes)
}

// Clear empties the queue (*CLS).
func (q *ErrorQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.codes = nil
	q.overflowed = false
}
