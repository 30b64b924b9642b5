package detect

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DNNConfig configures the ONNX-backed detector.
type DNNConfig struct {
	ModelPath            string
	InputWidth           int // network input size, default 640
	InputHeight          int
	ConfidenceThreshold  float64
	NMSThreshold         float64
	ClassNames           []string // defaults to the COCO 80-class list
	PrimaryThreatClasses []string
	PersonClass          string
}

// DNNDetector runs a YOLO-style ONNX model through gocv's DNN module.
// A Mat-backed network is not safe for concurrent Forward calls, so the
// whole inference is serialized behind a mutex; each camera worker gets
// its own DNNDetector in practice.
type DNNDetector struct {
	mu      sync.Mutex
	net     gocv.Net
	cfg     DNNConfig
	classes []string
	threats map[string]bool
	logger  *zap.Logger
	closed  bool
}

var boxColor = color.RGBA{R: 0, G: 200, B: 0, A: 255}
var threatColor = color.RGBA{R: 220, G: 30, B: 30, A: 255}

// NewDNNDetector loads the model. A load failure is the one startup error
// that aborts the process, so it is returned rather than degraded.
func NewDNNDetector(cfg DNNConfig, logger *zap.Logger) (*DNNDetector, error) {
	if cfg.InputWidth == 0 {
		cfg.InputWidth = 640
	}
	if cfg.InputHeight == 0 {
		cfg.InputHeight = 640
	}
	if cfg.NMSThreshold == 0 {
		cfg.NMSThreshold = 0.45
	}
	classes := cfg.ClassNames
	if len(classes) == 0 {
		classes = CocoClassNames
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load detection model %q", cfg.ModelPath)
	}

	threats := make(map[string]bool, len(cfg.PrimaryThreatClasses))
	for _, c := range cfg.PrimaryThreatClasses {
		threats[c] = true
	}

	d := &DNNDetector{
		net:     net,
		cfg:     cfg,
		classes: classes,
		threats: threats,
		logger:  logger.Named("detector"),
	}

	d.logger.Info("detection model loaded",
		zap.String("model", cfg.ModelPath),
		zap.Int("classes", len(classes)),
		zap.Float64("confidence_threshold", cfg.ConfidenceThreshold))

	if cfg.PersonClass != "" && !contains(classes, cfg.PersonClass) {
		d.logger.Warn("person class not present in model class list",
			zap.String("person_class", cfg.PersonClass))
	}

	return d, nil
}

// Detect implements Detector. The returned Mat is a clone of frame with
// boxes drawn for every detection; on inference failure it is an
// unannotated clone and Result.Failed is set.
func (d *DNNDetector) Detect(frame gocv.Mat) (Result, gocv.Mat) {
	d.mu.Lock()
	defer d.mu.Unlock()

	annotated := frame.Clone()
	if d.closed || frame.Empty() {
		return Result{Failed: d.closed}, annotated
	}

	detections, err := d.infer(frame)
	if err != nil {
		d.logger.Warn("inference failed", zap.Error(err))
		return Result{Failed: true}, annotated
	}

	for _, det := range detections {
		d.annotate(&annotated, det)
	}
	return Result{Detections: detections}, annotated
}

func (d *DNNDetector) infer(frame gocv.Mat) (detections []Detection, err error) {
	// gocv panics rather than erroring on malformed blobs or model output;
	// contain that here so the boundary contract holds.
	defer func() {
		if r := recover(); r != nil {
			detections = nil
			err = fmt.Errorf("dnn inference panic: %v", r)
		}
	}()

	inputSize := image.Pt(d.cfg.InputWidth, d.cfg.InputHeight)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, inputSize,
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	return d.parseOutput(output, frame.Cols(), frame.Rows())
}

// parseOutput decodes a YOLOv8-style [1 x (4+classes) x anchors] tensor.
func (d *DNNDetector) parseOutput(output gocv.Mat, frameW, frameH int) ([]Detection, error) {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output rank %d", len(sizes))
	}
	rows := sizes[1] // 4 box params + per-class scores
	anchors := sizes[2]
	if rows < 5 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}

	flat := output.Reshape(1, rows)
	defer flat.Close()

	scaleX := float32(frameW) / float32(d.cfg.InputWidth)
	scaleY := float32(frameH) / float32(d.cfg.InputHeight)

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for a := 0; a < anchors; a++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 4; c < rows; c++ {
			if s := flat.GetFloatAt(c, a); s > bestScore {
				bestScore = s
				bestClass = c - 4
			}
		}
		if bestClass < 0 || float64(bestScore) < d.cfg.ConfidenceThreshold {
			continue
		}

		cx := flat.GetFloatAt(0, a) * scaleX
		cy := flat.GetFloatAt(1, a) * scaleY
		w := flat.GetFloatAt(2, a) * scaleX
		h := flat.GetFloatAt(3, a) * scaleY

		boxes = append(boxes, scaledRect(cx, cy, w, h, frameW, frameH))
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores,
		float32(d.cfg.ConfidenceThreshold), float32(d.cfg.NMSThreshold))

	detections := make([]Detection, 0, len(keep))
	for _, idx := range keep {
		name := d.className(classIDs[idx])
		detections = append(detections, Detection{
			Class:         name,
			Confidence:    float64(scores[idx]),
			Box:           boxes[idx],
			PrimaryThreat: d.threats[name],
		})
	}
	return detections, nil
}

func (d *DNNDetector) className(id int) string {
	if id >= 0 && id < len(d.classes) {
		return d.classes[id]
	}
	return fmt.Sprintf("class_%d", id)
}

func (d *DNNDetector) annotate(mat *gocv.Mat, det Detection) {
	c := boxColor
	if det.PrimaryThreat {
		c = threatColor
	}
	gocv.Rectangle(mat, det.Box, c, 2)
	label := fmt.Sprintf("%s %.2f", det.Class, det.Confidence)
	pt := image.Pt(det.Box.Min.X, det.Box.Min.Y-6)
	if pt.Y < 12 {
		pt.Y = det.Box.Min.Y + 14
	}
	gocv.PutText(mat, label, pt, gocv.FontHersheySimplex, 0.5, c, 1)
}

// Close releases the network. Detect calls after Close return Failed.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// scaledRect converts a center/size box to a rectangle clamped to the frame.
func scaledRect(cx, cy, w, h float32, frameW, frameH int) image.Rectangle {
	x0 := int(cx - w/2)
	y0 := int(cy - h/2)
	x1 := int(cx + w/2)
	y1 := int(cy + h/2)
	return image.Rect(clamp(x0, 0, frameW), clamp(y0, 0, frameH),
		clamp(x1, 0, frameW), clamp(y1, 0, frameH))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
