package dispatch

import "context"

type pending struct {
	name    string
	handler Handler
}

// PendingQueue holds at most one handler awaiting execution on the host's
// main goroutine. A producer that finds the slot taken blocks until the
// host drains it; the queued handler is never dropped or replaced.
type PendingQueue struct {
	ch chan pending
}

// NewPendingQueue returns an empty single-slot queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{ch: make(chan pending, 1)}
}

// Put enqueues h, blocking while the slot is occupied. It returns ctx.Err()
// if ctx ends first, in which case nothing was enqueued.
func (q *PendingQueue) Put(ctx context.Context, name string, h Handler) error {
	select {
	case q.ch <- pending{name: name, handler: h}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll takes the queued handler without blocking. ok is false when the
// queue is empty, which is the common case.
func (q *PendingQueue) Poll() (name string, h Handler, ok bool) {
	select {
	case p := <-q.ch:
		return p.name, p.handler, true
	default:
		return "", nil, false
	}
}

// Len reports whether a handler is waiting (0 or 1).
func (q *PendingQueue) Len() int {
	return len(q.ch)
}
