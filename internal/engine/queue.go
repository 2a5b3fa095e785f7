package engine

import (
	"sync"
)

// Request is one pending document update.
type Request struct {
	Name string
	Text string
}

// updateQueue is a FIFO of document updates. Submitting a document that is
// already queued replaces its text in place, so a burst of saves results in
// one update with the latest text.
//
// The signal channel (buffer 1) lets Run wait with a context.
type updateQueue struct {
	mu      sync.Mutex
	pending []Request
	closed  bool
	signal  chan struct{}
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{signal: make(chan struct{}, 1)}
}

// Submit queues r. Returns false if the queue is closed.
func (q *updateQueue) Submit(r Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	coalesced := false
	for i := range q.pending {
		if q.pending[i].Name == r.Name {
			q.pending[i].Text = r.Text
			coalesced = true
			break
		}
	}
	if !coalesced {
		q.pending = append(q.pending, r)
	}

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryNext removes and returns the front request without blocking.
func (q *updateQueue) TryNext() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Request{}, false
	}
	r := q.pending[0]
	q.pending[0] = Request{}
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}
	return r, true
}

// Wait returns a channel that receives when requests may be available. It
// is closed by Close.
func (q *updateQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued requests.
func (q *updateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting requests and wakes any waiter. Requests already
// queued stay available to TryNext.
func (q *updateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *updateQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
