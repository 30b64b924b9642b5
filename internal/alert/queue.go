package alert

import (
	"sync/atomic"
	"time"
)

// Queue is the bounded hand-off between camera workers and the dispatcher.
// Many producers, one consumer. Offer never blocks: under saturation the
// event is dropped, which the design prefers over stalling a capture loop.
type Queue struct {
	ch      chan DetectionEvent
	dropped atomic.Int64
}

func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan DetectionEvent, capacity)}
}

// Offer enqueues the event if there is room. Returns false on a full queue.
func (q *Queue) Offer(e DetectionEvent) bool {
	select {
	case q.ch <- e:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Poll waits up to timeout for one event. The bounded wait is what lets
// the dispatcher notice shutdown without blocking forever.
func (q *Queue) Poll(timeout time.Duration) (DetectionEvent, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case e := <-q.ch:
		return e, true
	case <-timer.C:
		return DetectionEvent{}, false
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Dropped returns how many events were discarded at the producer side.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }
