package alert

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// DetectionEvent is one raw detection produced by a camera worker. Events
// are transient: created per detection, consumed exactly once by the
// dispatcher, then discarded.
type DetectionEvent struct {
	CameraID      string
	Class         string
	Confidence    float64
	Box           image.Rectangle
	PrimaryThreat bool
	Timestamp     time.Time // capture time, not processing time
	Snapshot      string    // snapshot reference, empty if none was saved
}

// Key identifies the unit of rate limiting: one camera seeing one class.
type Key struct {
	CameraID string
	Class    string
}

// Key returns the throttling key for the event.
func (e DetectionEvent) Key() Key {
	return Key{CameraID: e.CameraID, Class: e.Class}
}

// Type classifies why an alert fired.
type Type string

const (
	// TypeThreatDetected fires for primary-threat classes in any mode.
	TypeThreatDetected Type = "threat_detected"
	// TypeMotionPerson fires for person-class detections in full mode.
	TypeMotionPerson Type = "motion_person"
)

// Record is a finalized alert. Immutable once created; published to sinks
// and kept in the in-memory history for the process lifetime.
type Record struct {
	ID         string    `json:"id"`
	Type       Type      `json:"alert_type"`
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	CameraID   string    `json:"camera_id"`
	BBox       [4]int    `json:"bbox"` // xmin, ymin, xmax, ymax
	Timestamp  time.Time `json:"timestamp"`
	Snapshot   string    `json:"snapshot_file,omitempty"`
}

// NewRecord builds a Record from a classified event.
func NewRecord(typ Type, e DetectionEvent) Record {
	return Record{
		ID:         uuid.New().String(),
		Type:       typ,
		Class:      e.Class,
		Confidence: e.Confidence,
		CameraID:   e.CameraID,
		BBox:       [4]int{e.Box.Min.X, e.Box.Min.Y, e.Box.Max.X, e.Box.Max.Y},
		Timestamp:  e.Timestamp,
		Snapshot:   e.Snapshot,
	}
}
