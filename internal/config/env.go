package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv builds a Config from defaults plus environment overrides.
// A .env file in the working directory is honored if present.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	cfg := NewDefaultConfig()

	if v := os.Getenv("SENTINEL_CAMERAS"); v != "" {
		cams, err := ParseCameraList(v)
		if err != nil {
			return nil, fmt.Errorf("SENTINEL_CAMERAS: %w", err)
		}
		cfg.Cameras = cams
	}

	envString(&cfg.Detection.ModelPath, "SENTINEL_MODEL_PATH")
	envFloat(&cfg.Detection.ConfidenceThreshold, "SENTINEL_CONFIDENCE_THRESHOLD")
	envString(&cfg.Detection.PersonClass, "SENTINEL_PERSON_CLASS")
	if v := os.Getenv("SENTINEL_THREAT_CLASSES"); v != "" {
		cfg.Detection.PrimaryThreatClasses = splitTrimmed(v)
	}
	envBool(&cfg.Detection.EnableResize, "SENTINEL_ENABLE_RESIZE")
	envInt(&cfg.Detection.ResizeWidth, "SENTINEL_RESIZE_WIDTH")
	envInt(&cfg.Detection.ResizeHeight, "SENTINEL_RESIZE_HEIGHT")
	envBool(&cfg.Detection.EnableFrameSkip, "SENTINEL_ENABLE_FRAME_SKIP")
	envInt(&cfg.Detection.FrameSkip, "SENTINEL_FRAME_SKIP")

	envInt(&cfg.Alerts.QueueCapacity, "SENTINEL_QUEUE_CAPACITY")
	envDuration(&cfg.Alerts.DispatchInterval, "SENTINEL_ALERT_INTERVAL")
	envDuration(&cfg.Alerts.EmailInterval, "SENTINEL_MAIL_ALERT_INTERVAL")
	envInt(&cfg.Alerts.HistoryCapacity, "SENTINEL_HISTORY_CAPACITY")

	envDuration(&cfg.Worker.RetryDelay, "SENTINEL_RETRY_DELAY")
	envDuration(&cfg.Worker.StopTimeout, "SENTINEL_STOP_TIMEOUT")

	envString(&cfg.MQTT.Broker, "MQTT_BROKER")
	envInt(&cfg.MQTT.Port, "MQTT_PORT")
	envString(&cfg.MQTT.Username, "MQTT_USERNAME")
	envString(&cfg.MQTT.Password, "MQTT_PASSWORD")
	envString(&cfg.MQTT.Topic, "MQTT_TOPIC")

	envBool(&cfg.Mail.Enabled, "MAIL_ENABLED")
	envString(&cfg.Mail.Server, "MAIL_SERVER")
	envInt(&cfg.Mail.Port, "MAIL_PORT")
	envBool(&cfg.Mail.UseTLS, "MAIL_USE_TLS")
	envString(&cfg.Mail.Username, "MAIL_USERNAME")
	envString(&cfg.Mail.Password, "MAIL_PASSWORD")
	envString(&cfg.Mail.Sender, "MAIL_SENDER")
	if cfg.Mail.Sender == "" {
		cfg.Mail.Sender = cfg.Mail.Username
	}

	envString(&cfg.Snapshot.Dir, "SENTINEL_SNAPSHOT_DIR")
	envString(&cfg.Snapshot.MinIO.Endpoint, "MINIO_ENDPOINT")
	envString(&cfg.Snapshot.MinIO.AccessKeyID, "MINIO_ACCESS_KEY")
	envString(&cfg.Snapshot.MinIO.SecretAccessKey, "MINIO_SECRET_KEY")
	envBool(&cfg.Snapshot.MinIO.UseSSL, "MINIO_USE_SSL")
	envString(&cfg.Snapshot.MinIO.Bucket, "MINIO_BUCKET")

	envString(&cfg.HTTP.Addr, "SENTINEL_HTTP_ADDR")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseCameraList parses "id=source,id=source" pairs. A bare entry without
// "=" uses its position index as the id, matching single-webcam setups
// where SENTINEL_CAMERAS=0 is all anyone writes.
func ParseCameraList(s string) ([]CameraConfig, error) {
	var cams []CameraConfig
	for i, entry := range splitTrimmed(s) {
		id, source, found := strings.Cut(entry, "=")
		if !found {
			cams = append(cams, CameraConfig{ID: strconv.Itoa(i), Source: entry})
			continue
		}
		id, source = strings.TrimSpace(id), strings.TrimSpace(source)
		if id == "" || source == "" {
			return nil, fmt.Errorf("bad camera entry %q", entry)
		}
		cams = append(cams, CameraConfig{ID: id, Source: source})
	}
	if len(cams) == 0 {
		return nil, fmt.Errorf("empty camera list")
	}
	return cams, nil
}

func splitTrimmed(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "t", "yes":
			*dst = true
		case "false", "0", "f", "no":
			*dst = false
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
