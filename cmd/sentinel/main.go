package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentinel/internal/alert"
	"github.com/mikeyg42/sentinel/internal/api"
	"github.com/mikeyg42/sentinel/internal/appstate"
	"github.com/mikeyg42/sentinel/internal/camera"
	"github.com/mikeyg42/sentinel/internal/config"
	"github.com/mikeyg42/sentinel/internal/detect"
	"github.com/mikeyg42/sentinel/internal/lifecycle"
	"github.com/mikeyg42/sentinel/internal/notification"
	"github.com/mikeyg42/sentinel/internal/snapshot"
	"github.com/mikeyg42/sentinel/internal/stream"
)

// Application holds every long-lived component of the monitoring service.
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	state      *appstate.State
	queue      *alert.Queue
	history    *alert.History
	frames     *stream.Table
	detectors  []detect.Detector
	mqtt       *notification.MQTTPublisher
	controller *lifecycle.Controller
	apiServer  *api.Server
	hub        *api.AlertHub
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	flag.StringVar(&cfg.HTTP.Addr, "addr", cfg.HTTP.Addr, "HTTP API listen address")
	flag.StringVar(&cfg.Detection.ModelPath, "model", cfg.Detection.ModelPath, "Path to the ONNX detection model")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	app, err := NewApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create application", zap.Error(err))
	}
	defer app.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Run(ctx)
}

func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	app := &Application{
		config:  cfg,
		logger:  logger,
		state:   appstate.NewState(),
		queue:   alert.NewQueue(cfg.Alerts.QueueCapacity),
		history: alert.NewHistory(cfg.Alerts.HistoryCapacity),
		frames:  stream.NewTable(),
	}

	store, err := newSnapshotStore(cfg.Snapshot, logger)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	// A model that fails to load leaves nothing to monitor with, so this
	// is the one dependency that aborts startup.
	workers := make([]*camera.Worker, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		detector, err := detect.NewDNNDetector(detect.DNNConfig{
			ModelPath:            cfg.Detection.ModelPath,
			ConfidenceThreshold:  cfg.Detection.ConfidenceThreshold,
			PrimaryThreatClasses: cfg.Detection.PrimaryThreatClasses,
			PersonClass:          cfg.Detection.PersonClass,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", cam.ID, err)
		}
		app.detectors = append(app.detectors, detector)

		workers = append(workers, camera.NewWorker(camera.Options{
			Camera:     cam,
			Detection:  cfg.Detection,
			RetryDelay: cfg.Worker.RetryDelay,
			LoopDelay:  cfg.Worker.LoopDelay,
		}, camera.DeviceOpener{}, detector, store, app.queue, app.frames, logger))
	}

	app.hub = api.NewAlertHub(logger)
	publishers := []alert.Publisher{app.hub}

	// The broker is optional: a connect failure degrades to running
	// without the pub/sub sink rather than aborting.
	if cfg.MQTT.Broker != "" {
		mqttPub, err := notification.NewMQTTPublisher(cfg.MQTT, logger)
		if err != nil {
			logger.Warn("continuing without MQTT sink", zap.Error(err))
		} else {
			app.mqtt = mqttPub
			publishers = append(publishers, mqttPub)
		}
	}

	notifier, err := notification.NewEmailNotifier(cfg.Mail, app.state, logger)
	if err != nil {
		return nil, fmt.Errorf("create email notifier: %w", err)
	}

	dispatcher := alert.NewDispatcher(alert.DispatcherConfig{
		PersonClass:      cfg.Detection.PersonClass,
		DispatchInterval: cfg.Alerts.DispatchInterval,
		EmailInterval:    cfg.Alerts.EmailInterval,
		PollTimeout:      cfg.Alerts.PollTimeout,
	}, app.queue, app.state, app.history, publishers, notifier, logger)

	app.controller = lifecycle.NewController(workers, dispatcher, cfg.Worker.StopTimeout, logger)
	app.apiServer = api.NewServer(cfg.HTTP.Addr, app.state, app.history, app.frames, app.hub, logger)
	return app, nil
}

func newSnapshotStore(cfg config.SnapshotConfig, logger *zap.Logger) (snapshot.Store, error) {
	if cfg.MinIO.Endpoint != "" {
		return snapshot.NewMinIOStore(cfg.MinIO, logger)
	}
	return snapshot.NewLocalStore(cfg.Dir, logger)
}

// Run starts the pipeline and the API server, then blocks until the stop
// signal arrives.
func (app *Application) Run(ctx context.Context) {
	app.logger.Info("starting security monitor",
		zap.Int("cameras", len(app.config.Cameras)),
		zap.String("mode", app.state.SecurityMode().String()))

	app.controller.Start(ctx)
	app.apiServer.StartInBackground()

	<-ctx.Done()
	app.logger.Info("shutdown signal received")

	app.controller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("api server shutdown", zap.Error(err))
	}
}

func (app *Application) Cleanup() {
	if app.mqtt != nil {
		app.mqtt.Close()
	}
	for _, d := range app.detectors {
		if err := d.Close(); err != nil {
			app.logger.Warn("detector close", zap.Error(err))
		}
	}
	app.frames.Close()
}
