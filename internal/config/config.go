package config

import (
	"fmt"
	"time"
)

// CameraConfig identifies one capture source. Immutable after startup.
type CameraConfig struct {
	ID     string
	Source string // device index ("0"), RTSP URL, or video file path
}

// DetectionConfig controls the per-frame detection stage.
type DetectionConfig struct {
	ModelPath            string
	ConfidenceThreshold  float64
	PrimaryThreatClasses []string
	PersonClass          string

	EnableResize bool
	ResizeWidth  int
	ResizeHeight int

	EnableFrameSkip bool
	FrameSkip       int // run detection on every Nth frame
}

// AlertConfig controls the dispatcher's throttling and history.
type AlertConfig struct {
	QueueCapacity    int
	DispatchInterval time.Duration // min gap between recorded alerts per (camera, class)
	EmailInterval    time.Duration // min gap between emails per (camera, class)
	HistoryCapacity  int
	PollTimeout      time.Duration
}

// WorkerConfig controls the capture loop's retry and pacing behavior.
type WorkerConfig struct {
	RetryDelay  time.Duration // delay before reopening a failed source
	LoopDelay   time.Duration // per-iteration yield
	StopTimeout time.Duration // max wait per worker at shutdown
}

// MQTTConfig configures the pub/sub alert sink. Empty Broker disables it.
type MQTTConfig struct {
	Broker   string
	Port     int
	Username string
	Password string
	Topic    string
	ClientID string
}

// MailConfig configures the SMTP alert sink.
type MailConfig struct {
	Enabled  bool
	Server   string
	Port     int
	UseTLS   bool
	Username string
	Password string
	Sender   string
}

// SnapshotConfig selects where interesting-detection snapshots go.
// If MinIO.Endpoint is set the object store is used, otherwise Dir.
type SnapshotConfig struct {
	Dir   string
	MinIO MinIOConfig
}

// MinIOConfig contains object store connection settings.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	MaxRetries      int
	RetryBackoff    time.Duration
}

// HTTPConfig configures the control-surface server.
type HTTPConfig struct {
	Addr        string
	JPEGQuality int
}

// Config holds all application configuration. Built once at startup and
// shared by reference; never mutated afterwards.
type Config struct {
	Cameras   []CameraConfig
	Detection DetectionConfig
	Alerts    AlertConfig
	Worker    WorkerConfig
	MQTT      MQTTConfig
	Mail      MailConfig
	Snapshot  SnapshotConfig
	HTTP      HTTPConfig
}

// NewDefaultConfig returns a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Cameras: []CameraConfig{
			{ID: "0", Source: "0"},
		},
		Detection: DetectionConfig{
			ModelPath:           "models/yolov8m.onnx",
			ConfidenceThreshold: 0.5,
			PrimaryThreatClasses: []string{
				"gun", "knife", "weapon", "explosive", "bomb", "bat",
				"machete", "sword", "axe", "crossbow",
			},
			PersonClass:     "person",
			EnableResize:    true,
			ResizeWidth:     640,
			ResizeHeight:    480,
			EnableFrameSkip: true,
			FrameSkip:       3,
		},
		Alerts: AlertConfig{
			QueueCapacity:    100,
			DispatchInterval: 2 * time.Second,
			EmailInterval:    60 * time.Second,
			HistoryCapacity:  50,
			PollTimeout:      time.Second,
		},
		Worker: WorkerConfig{
			RetryDelay:  5 * time.Second,
			LoopDelay:   10 * time.Millisecond,
			StopTimeout: 5 * time.Second,
		},
		MQTT: MQTTConfig{
			Port:     1883,
			Topic:    "sentinel/alerts",
			ClientID: "sentinel",
		},
		Mail: MailConfig{
			Server: "smtp.googlemail.com",
			Port:   587,
			UseTLS: true,
		},
		Snapshot: SnapshotConfig{
			Dir: "snapshots",
		},
		HTTP: HTTPConfig{
			Addr:        ":5000",
			JPEGQuality: 80,
		},
	}
}

// Validate checks the parts of the config that would otherwise fail deep
// inside a worker or the dispatcher.
func (c *Config) Validate() error {
	if len(c.Cameras) == 0 {
		return fmt.Errorf("no camera sources configured")
	}
	seen := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.ID == "" || cam.Source == "" {
			return fmt.Errorf("camera entries need both id and source")
		}
		if seen[cam.ID] {
			return fmt.Errorf("duplicate camera id %q", cam.ID)
		}
		seen[cam.ID] = true
	}
	if c.Detection.EnableFrameSkip && c.Detection.FrameSkip < 1 {
		return fmt.Errorf("frame skip factor must be >= 1, got %d", c.Detection.FrameSkip)
	}
	if c.Alerts.QueueCapacity < 1 {
		return fmt.Errorf("alert queue capacity must be >= 1, got %d", c.Alerts.QueueCapacity)
	}
	if c.Alerts.HistoryCapacity < 1 {
		return fmt.Errorf("alert history capacity must be >= 1, got %d", c.Alerts.HistoryCapacity)
	}
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", c.Detection.ConfidenceThreshold)
	}
	return nil
}
