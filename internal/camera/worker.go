// Package camera runs one capture worker per configured source. A worker
// owns an explicit connect/retry state machine, schedules detection on
// every Nth frame, publishes stream frames, and offers detection events
// to the alert queue without ever blocking.
package camera

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/mikeyg42/sentinel/internal/alert"
	"github.com/mikeyg42/sentinel/internal/config"
	"github.com/mikeyg42/sentinel/internal/detect"
	"github.com/mikeyg42/sentinel/internal/snapshot"
	"github.com/mikeyg42/sentinel/internal/stream"
)

// State names one position in the worker's lifecycle.
type State int32

const (
	// StateDisconnected means no device is held; the worker waits out a
	// delay before trying to reconnect. Any failure lands here.
	StateDisconnected State = iota
	// StateConnecting means the worker is opening the capture source.
	StateConnecting
	// StateStreaming means frames are being captured and processed.
	StateStreaming
	// StateStopped is terminal, reached only through the stop signal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const snapshotTimeout = 10 * time.Second

// Options bundles the immutable configuration one worker needs.
type Options struct {
	Camera     config.CameraConfig
	Detection  config.DetectionConfig
	RetryDelay time.Duration
	LoopDelay  time.Duration
}

// Worker captures and processes frames for a single camera.
type Worker struct {
	opts      Options
	opener    Opener
	detector  detect.Detector
	snapshots snapshot.Store // may be nil: snapshots disabled
	queue     *alert.Queue
	table     *stream.Table
	logger    *zap.Logger

	state      atomic.Int32
	frameCount atomic.Uint64

	// the rest is touched only by the Run goroutine
	source    Source
	frame     gocv.Mat
	nextDelay time.Duration
}

func NewWorker(opts Options, opener Opener, detector detect.Detector,
	snapshots snapshot.Store, queue *alert.Queue, table *stream.Table,
	logger *zap.Logger) *Worker {
	w := &Worker{
		opts:      opts,
		opener:    opener,
		detector:  detector,
		snapshots: snapshots,
		queue:     queue,
		table:     table,
		logger:    logger.Named("camera").With(zap.String("camera", opts.Camera.ID)),
	}
	w.state.Store(int32(StateConnecting))
	return w
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// FrameCount returns how many frames this worker has captured.
func (w *Worker) FrameCount() uint64 {
	return w.frameCount.Load()
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Run drives the state machine until ctx is cancelled. Capture failures
// of any kind put the worker back into StateDisconnected; nothing short
// of the stop signal terminates the loop.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("camera worker started",
		zap.String("source", w.opts.Camera.Source))

	w.frame = gocv.NewMat()
	defer w.frame.Close()
	defer w.release()
	defer w.setState(StateStopped)
	defer w.logger.Info("camera worker stopped",
		zap.Uint64("frames", w.frameCount.Load()))

	for {
		if ctx.Err() != nil {
			return
		}
		switch w.State() {
		case StateDisconnected:
			if !sleepCtx(ctx, w.nextDelay) {
				return
			}
			w.setState(StateConnecting)
		case StateConnecting:
			w.connect()
		case StateStreaming:
			w.streamOnce(ctx)
		default:
			return
		}
	}
}

func (w *Worker) connect() {
	src, err := w.opener.Open(w.opts.Camera.Source)
	if err != nil {
		w.logger.Warn("failed to open capture source",
			zap.Duration("retry_in", w.opts.RetryDelay), zap.Error(err))
		w.disconnect(w.opts.RetryDelay)
		return
	}
	w.source = src
	w.setState(StateStreaming)
	w.logger.Info("capture source opened")
}

// disconnect releases the device and schedules the next reconnect attempt.
func (w *Worker) disconnect(delay time.Duration) {
	w.release()
	w.nextDelay = delay
	w.setState(StateDisconnected)
}

func (w *Worker) release() {
	if w.source != nil {
		if err := w.source.Close(); err != nil {
			w.logger.Warn("error releasing capture source", zap.Error(err))
		}
		w.source = nil
	}
}

// streamOnce handles a single capture iteration. A panic anywhere in the
// body releases the device and backs off at twice the normal delay; one
// bad frame or library error never takes the worker down.
func (w *Worker) streamOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("capture loop failure, reconnecting",
				zap.Any("panic", r))
			w.disconnect(2 * w.opts.RetryDelay)
		}
	}()

	if ok := w.source.Read(&w.frame); !ok || w.frame.Empty() {
		w.logger.Warn("frame capture failed, releasing source")
		w.disconnect(w.opts.RetryDelay)
		return
	}

	// Counting starts at 1 so the Nth, 2Nth, ... frames run detection.
	count := w.frameCount.Add(1)
	det := w.opts.Detection
	runDetection := !det.EnableFrameSkip || count%uint64(det.FrameSkip) == 0

	if runDetection {
		w.detectAndPublish(ctx)
	} else {
		// Skipped frames still reach viewers, just unannotated.
		w.table.Update(w.opts.Camera.ID, w.frame)
	}

	sleepCtx(ctx, w.opts.LoopDelay)
}

func (w *Worker) detectAndPublish(ctx context.Context) {
	captureTime := time.Now()
	det := w.opts.Detection

	input := w.frame
	var resized gocv.Mat
	if det.EnableResize {
		var err error
		resized, err = resizeFrame(w.frame, det.ResizeWidth, det.ResizeHeight)
		if err != nil {
			w.logger.Warn("resize failed, detecting on full frame", zap.Error(err))
		} else {
			defer resized.Close()
			input = resized
		}
	}

	result, annotated := w.detector.Detect(input)
	defer annotated.Close()

	if result.Failed {
		w.logger.Warn("detection subsystem failure, frame skipped")
	}

	for _, d := range result.Detections {
		w.publishDetection(ctx, d, annotated, captureTime)
	}

	w.table.Update(w.opts.Camera.ID, annotated)
}

func (w *Worker) publishDetection(ctx context.Context, d detect.Detection,
	annotated gocv.Mat, captureTime time.Time) {
	// Snapshot policy is deliberately mode-independent: the dispatcher
	// may still discard this event, but the picture is already on disk.
	interesting := d.PrimaryThreat || d.Class == w.opts.Detection.PersonClass

	var ref string
	if interesting && w.snapshots != nil {
		ref = w.saveSnapshot(ctx, annotated, captureTime, d.Class)
	}

	w.queue.Offer(alert.DetectionEvent{
		CameraID:      w.opts.Camera.ID,
		Class:         d.Class,
		Confidence:    d.Confidence,
		Box:           d.Box,
		PrimaryThreat: d.PrimaryThreat,
		Timestamp:     captureTime,
		Snapshot:      ref,
	})
}

// saveSnapshot persists the annotated frame and returns its reference, or
// empty on any failure. Persistence problems never block event delivery.
func (w *Worker) saveSnapshot(ctx context.Context, annotated gocv.Mat,
	captureTime time.Time, class string) string {
	name := snapshot.Name(w.opts.Camera.ID, captureTime, class)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)
	if err != nil {
		w.logger.Warn("snapshot encode failed",
			zap.String("name", name), zap.Error(err))
		return ""
	}
	defer buf.Close()

	saveCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	if err := w.snapshots.Save(saveCtx, name, buf.GetBytes()); err != nil {
		w.logger.Warn("snapshot save failed",
			zap.String("name", name), zap.Error(err))
		return ""
	}
	return name
}

// resizeFrame wraps gocv.Resize, converting its panic on bad input into
// an error the caller can fall back from.
func resizeFrame(src gocv.Mat, width, height int) (dst gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			dst.Close()
			dst = gocv.Mat{}
			err = fmt.Errorf("resize to %dx%d: %v", width, height, r)
		}
	}()
	if width <= 0 || height <= 0 {
		return gocv.Mat{}, fmt.Errorf("bad resize target %dx%d", width, height)
	}
	dst = gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return dst, nil
}

// sleepCtx waits for d or until ctx is cancelled; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
