package alert

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentinel/internal/appstate"
)

// Publisher is a fire-and-forget pub/sub sink for finalized alerts.
type Publisher interface {
	Publish(Record) error
	IsConnected() bool
}

// Notifier delivers an alert over a slow channel (email). Invoked off the
// dispatcher goroutine so delivery latency never stalls the loop.
type Notifier interface {
	Notify(Record) error
}

// DispatcherConfig carries the policy knobs the dispatch loop needs.
type DispatcherConfig struct {
	PersonClass      string
	DispatchInterval time.Duration
	EmailInterval    time.Duration
	PollTimeout      time.Duration
}

// Dispatcher is the single consumer of the alert queue. It applies the
// mode-aware alert policy, both throttle windows, history recording, and
// best-effort fan-out to sinks.
type Dispatcher struct {
	cfg        DispatcherConfig
	queue      *Queue
	state      *appstate.State
	history    *History
	publishers []Publisher
	notifier   Notifier
	logger     *zap.Logger

	// owned exclusively by the Run goroutine
	dispatchSeen throttle
	emailSeen    throttle

	stats DispatcherStats
}

// DispatcherStats counts per-event outcomes.
type DispatcherStats struct {
	Processed  atomic.Int64
	NonAlerts  atomic.Int64
	Throttled  atomic.Int64
	Recorded   atomic.Int64
	EmailsSent atomic.Int64
}

func NewDispatcher(cfg DispatcherConfig, queue *Queue, state *appstate.State,
	history *History, publishers []Publisher, notifier Notifier, logger *zap.Logger) *Dispatcher {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	return &Dispatcher{
		cfg:          cfg,
		queue:        queue,
		state:        state,
		history:      history,
		publishers:   publishers,
		notifier:     notifier,
		logger:       logger.Named("dispatcher"),
		dispatchSeen: make(throttle),
		emailSeen:    make(throttle),
	}
}

// Run consumes events until ctx is cancelled. Events still queued at
// shutdown are dropped; delivery is best-effort by design.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("alert dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("alert dispatcher stopped",
				zap.Int64("processed", d.stats.Processed.Load()),
				zap.Int64("recorded", d.stats.Recorded.Load()),
				zap.Int64("queue_dropped", d.queue.Dropped()))
			return
		default:
		}

		event, ok := d.queue.Poll(d.cfg.PollTimeout)
		if !ok {
			continue // timeout; loop re-checks the shutdown signal
		}
		d.process(event)
	}
}

func (d *Dispatcher) process(event DetectionEvent) {
	d.stats.Processed.Add(1)

	// Mode is read once per event, not held across the whole decision.
	typ, isAlert := d.classify(event, d.state.SecurityMode())
	if !isAlert {
		d.stats.NonAlerts.Add(1)
		return
	}

	// The dispatch window gates everything downstream: an event throttled
	// here leaves no history entry and reaches no sink.
	key := event.Key()
	if !d.dispatchSeen.allow(key, event.Timestamp, d.cfg.DispatchInterval) {
		d.stats.Throttled.Add(1)
		return
	}

	record := NewRecord(typ, event)
	d.history.Add(record)
	d.stats.Recorded.Add(1)

	d.logger.Info("alert recorded",
		zap.String("type", string(record.Type)),
		zap.String("camera", record.CameraID),
		zap.String("class", record.Class),
		zap.Float64("confidence", record.Confidence),
		zap.String("snapshot", record.Snapshot))

	for _, pub := range d.publishers {
		if pub == nil || !pub.IsConnected() {
			continue
		}
		if err := pub.Publish(record); err != nil {
			d.logger.Warn("publish failed", zap.Error(err))
		}
	}

	// The email window is evaluated independently, only for events that
	// already passed the dispatch window, and is typically much longer.
	if d.emailSeen.allow(key, event.Timestamp, d.cfg.EmailInterval) && d.notifier != nil {
		d.stats.EmailsSent.Add(1)
		go func(r Record) {
			if err := d.notifier.Notify(r); err != nil {
				d.logger.Warn("email delivery failed",
					zap.String("alert_id", r.ID), zap.Error(err))
			}
		}(record)
	}
}

func (d *Dispatcher) classify(e DetectionEvent, mode appstate.SecurityMode) (Type, bool) {
	if e.PrimaryThreat {
		return TypeThreatDetected, true
	}
	if mode == appstate.ModeFull && e.Class == d.cfg.PersonClass {
		return TypeMotionPerson, true
	}
	return "", false
}

// Stats returns a snapshot of the dispatcher's counters.
func (d *Dispatcher) Stats() (processed, recorded, throttled, nonAlerts, emails int64) {
	return d.stats.Processed.Load(), d.stats.Recorded.Load(),
		d.stats.Throttled.Load(), d.stats.NonAlerts.Load(), d.stats.EmailsSent.Load()
}
