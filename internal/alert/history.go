package alert

import "sync"

// History is a fixed-capacity, newest-first store of alert records. The
// ring structurally enforces the capacity bound: adding to a full history
// overwrites the oldest entry. The dispatcher is the only writer, but the
// HTTP API reads concurrently, hence the lock.
type History struct {
	mu       sync.RWMutex
	buffer   []Record
	capacity int
	next     int // index the next record is written to
	count    int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		buffer:   make([]Record, capacity),
		capacity: capacity,
	}
}

// Add records an alert, evicting the oldest entry when full.
func (h *History) Add(r Record) {
	h.mu.Lock()
	h.buffer[h.next] = r
	h.next = (h.next + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
	h.mu.Unlock()
}

// Records returns all entries, newest first.
func (h *History) Records() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Record, h.count)
	for i := 0; i < h.count; i++ {
		idx := (h.next - 1 - i + h.capacity) % h.capacity
		out[i] = h.buffer[idx]
	}
	return out
}

// Len returns the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Capacity returns the maximum number of records kept.
func (h *History) Capacity() int { return h.capacity }
