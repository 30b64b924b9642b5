package camera

import (
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// Source is one open capture device or stream. Read fills dst with the
// next frame and reports whether a frame was produced; false means the
// device is gone and must be reopened.
type Source interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// Opener creates a Source from a source locator. Workers hold an Opener
// rather than a device handle so the retry state machine can be exercised
// without real capture hardware.
type Opener interface {
	Open(source string) (Source, error)
}

// DeviceOpener opens sources through gocv: numeric locators become device
// indices, everything else is treated as a URL or file path.
type DeviceOpener struct{}

func (DeviceOpener) Open(source string) (Source, error) {
	var (
		cap *gocv.VideoCapture
		err error
	)
	if idx, convErr := strconv.Atoi(source); convErr == nil {
		cap, err = gocv.OpenVideoCapture(idx)
	} else {
		cap, err = gocv.OpenVideoCapture(source)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture source %q: %w", source, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("capture source %q did not open", source)
	}
	return &deviceSource{cap: cap}, nil
}

type deviceSource struct {
	cap *gocv.VideoCapture
}

func (s *deviceSource) Read(dst *gocv.Mat) bool {
	return s.cap.Read(dst)
}

func (s *deviceSource) Close() error {
	return s.cap.Close()
}
