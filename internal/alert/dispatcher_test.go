package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentinel/internal/appstate"
)

type fakePublisher struct {
	mu        sync.Mutex
	records   []Record
	connected bool
	err       error
}

func (p *fakePublisher) Publish(r Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r)
	return p.err
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

type fakeNotifier struct {
	mu      sync.Mutex
	records []Record
	done    chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{done: make(chan struct{}, 16)}
}

func (n *fakeNotifier) Notify(r Record) error {
	n.mu.Lock()
	n.records = append(n.records, r)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func (n *fakeNotifier) wait(t *testing.T, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		select {
		case <-n.done:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for email %d of %d", i+1, count)
		}
	}
}

func testDispatcher(state *appstate.State, pub Publisher, email Notifier) (*Dispatcher, *History) {
	history := NewHistory(50)
	var pubs []Publisher
	if pub != nil {
		pubs = append(pubs, pub)
	}
	d := NewDispatcher(DispatcherConfig{
		PersonClass:      "person",
		DispatchInterval: 2 * time.Second,
		EmailInterval:    60 * time.Second,
		PollTimeout:      20 * time.Millisecond,
	}, NewQueue(100), state, history, pubs, email, zap.NewNop())
	return d, history
}

func threatAt(sec int64) DetectionEvent {
	return DetectionEvent{
		CameraID:      "cam0",
		Class:         "knife",
		Confidence:    0.9,
		PrimaryThreat: true,
		Timestamp:     time.Unix(sec, 0),
	}
}

func personAt(sec int64) DetectionEvent {
	return DetectionEvent{
		CameraID:   "cam0",
		Class:      "person",
		Confidence: 0.8,
		Timestamp:  time.Unix(sec, 0),
	}
}

func TestDispatchThrottleWindow(t *testing.T) {
	pub := &fakePublisher{connected: true}
	d, history := testDispatcher(appstate.NewState(), pub, nil)

	d.process(threatAt(100)) // fires
	d.process(threatAt(101)) // 1.0s later: throttled
	d.process(threatAt(103)) // 3.0s after last fire: fires

	if got := history.Len(); got != 2 {
		t.Fatalf("expected 2 history entries, got %d", got)
	}
	if got := pub.count(); got != 2 {
		t.Fatalf("expected 2 published records, got %d", got)
	}
}

func TestEmailThrottleIndependentOfDispatchWindow(t *testing.T) {
	email := newFakeNotifier()
	d, history := testDispatcher(appstate.NewState(), nil, email)

	d.process(threatAt(100)) // passes both windows: history + email
	d.process(threatAt(103)) // passes dispatch, inside 60s email window

	if got := history.Len(); got != 2 {
		t.Fatalf("expected both events in history, got %d", got)
	}
	email.wait(t, 1)
	if _, _, _, _, emails := d.Stats(); emails != 1 {
		t.Fatalf("expected exactly 1 email, got %d", emails)
	}
}

func TestSecurityModeGatesPersonAlerts(t *testing.T) {
	t.Run("standard mode discards person detections", func(t *testing.T) {
		d, history := testDispatcher(appstate.NewState(), nil, nil)
		d.process(personAt(100))
		if history.Len() != 0 {
			t.Fatal("person detection must not alert in standard mode")
		}
	})

	t.Run("full mode raises motion person alerts", func(t *testing.T) {
		state := appstate.NewState()
		state.SetSecurityMode(appstate.ModeFull)
		d, history := testDispatcher(state, nil, nil)

		d.process(personAt(100))
		records := history.Records()
		if len(records) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(records))
		}
		if records[0].Type != TypeMotionPerson {
			t.Fatalf("got type %s, want %s", records[0].Type, TypeMotionPerson)
		}
	})

	t.Run("primary threats alert regardless of mode", func(t *testing.T) {
		d, history := testDispatcher(appstate.NewState(), nil, nil)
		d.process(threatAt(100))
		records := history.Records()
		if len(records) != 1 || records[0].Type != TypeThreatDetected {
			t.Fatalf("expected one threat alert, got %+v", records)
		}
	})
}

func TestOtherClassesNeverAlert(t *testing.T) {
	state := appstate.NewState()
	state.SetSecurityMode(appstate.ModeFull)
	d, history := testDispatcher(state, nil, nil)

	d.process(DetectionEvent{
		CameraID:  "cam0",
		Class:     "chair",
		Timestamp: time.Unix(100, 0),
	})
	if history.Len() != 0 {
		t.Fatal("non-threat non-person classes must be discarded")
	}
}

func TestDisconnectedPublisherIsSkipped(t *testing.T) {
	pub := &fakePublisher{connected: false}
	d, history := testDispatcher(appstate.NewState(), pub, nil)

	d.process(threatAt(100))
	if history.Len() != 1 {
		t.Fatal("history must still record when publisher is down")
	}
	if pub.count() != 0 {
		t.Fatal("disconnected publisher must not receive records")
	}
}

func TestRecordCarriesEventSnapshot(t *testing.T) {
	d, history := testDispatcher(appstate.NewState(), nil, nil)

	ev := threatAt(100)
	ev.Snapshot = "cam0_20260830_120000_knife.jpg"
	d.process(ev)

	records := history.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Snapshot != ev.Snapshot {
		t.Fatalf("snapshot reference lost: %q", records[0].Snapshot)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d, _ := testDispatcher(appstate.NewState(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestRunConsumesQueuedEvents(t *testing.T) {
	pub := &fakePublisher{connected: true}
	d, history := testDispatcher(appstate.NewState(), pub, nil)

	d.queue.Offer(threatAt(100))
	d.queue.Offer(threatAt(110))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for history.Len() < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("expected 2 alerts, got %d", history.Len())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
