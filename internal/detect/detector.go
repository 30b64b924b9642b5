// Package detect defines the object-detection boundary of the pipeline.
// Implementations never return an error across this boundary: a failed
// inference degrades to an empty result plus the original frame, so the
// capture loop reacts identically to "nothing found" and "engine hiccup".
package detect

import (
	"image"

	"gocv.io/x/gocv"
)

// Detection is one detected object in a frame.
type Detection struct {
	Class         string
	Confidence    float64
	Box           image.Rectangle
	PrimaryThreat bool
}

// Result carries the detections for one frame. Failed marks a detection
// subsystem failure; Detections is empty in that case. Callers treat both
// the same today, but health checks may want the distinction.
type Result struct {
	Detections []Detection
	Failed     bool
}

// Detector runs object detection on a single frame.
//
// Detect returns the result and an annotated frame. The returned Mat is
// always a fresh allocation owned by the caller; on failure it is an
// unannotated clone of the input.
type Detector interface {
	Detect(frame gocv.Mat) (Result, gocv.Mat)
	Close() error
}
