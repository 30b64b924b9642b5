// Package stream keeps the most recent displayable frame per camera for
// low-latency viewing. No history is buffered: each write replaces the
// previous frame outright.
package stream

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Table maps camera id to its latest frame. Each camera worker writes only
// its own key; readers may ask for any key. A single coarse lock serializes
// the table, which is fine because writes are infrequent next to the CPU
// cost of detection.
type Table struct {
	mu     sync.RWMutex
	frames map[string]entry
}

type entry struct {
	mat gocv.Mat
	at  time.Time
}

func NewTable() *Table {
	return &Table{frames: make(map[string]entry)}
}

// Update stores a copy of mat as the latest frame for cameraID. The caller
// keeps ownership of mat; the previous stored frame is released.
func (t *Table) Update(cameraID string, mat gocv.Mat) {
	if mat.Empty() {
		return
	}
	cloned := mat.Clone()

	t.mu.Lock()
	if prev, ok := t.frames[cameraID]; ok {
		prev.mat.Close()
	}
	t.frames[cameraID] = entry{mat: cloned, at: time.Now()}
	t.mu.Unlock()
}

// Latest returns a copy of the most recent frame for cameraID. The second
// return is false before the first frame arrives, which is a valid
// transient state. The caller owns the returned Mat.
func (t *Table) Latest(cameraID string) (gocv.Mat, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.frames[cameraID]
	if !ok {
		return gocv.Mat{}, false
	}
	return e.mat.Clone(), true
}

// LastUpdated reports when cameraID's frame was last written.
func (t *Table) LastUpdated(cameraID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.frames[cameraID]
	return e.at, ok
}

// CameraIDs returns the ids that have published at least one frame.
func (t *Table) CameraIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.frames))
	for id := range t.frames {
		ids = append(ids, id)
	}
	return ids
}

// Close releases every stored frame.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.frames {
		e.mat.Close()
		delete(t.frames, id)
	}
}
