package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/mikeyg42/sentinel/internal/alert"
	"github.com/mikeyg42/sentinel/internal/appstate"
	"github.com/mikeyg42/sentinel/internal/stream"
)

func testServer(t *testing.T) (*Server, *appstate.State, *alert.History, *stream.Table) {
	t.Helper()
	state := appstate.NewState()
	history := alert.NewHistory(10)
	table := stream.NewTable()
	t.Cleanup(table.Close)
	hub := NewAlertHub(zap.NewNop())
	return NewServer(":0", state, history, table, hub, zap.NewNop()), state, history, table
}

func TestSecurityModeRoundTrip(t *testing.T) {
	s, state, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/security_mode", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["mode"] != "standard" {
		t.Errorf("default mode = %q, want standard", got["mode"])
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/security_mode",
		strings.NewReader(`{"mode":"full"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d: %s", rec.Code, rec.Body.String())
	}
	if state.SecurityMode() != appstate.ModeFull {
		t.Error("mode change did not reach shared state")
	}
}

func TestSecurityModeRejectsUnknown(t *testing.T) {
	s, state, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/security_mode",
		strings.NewReader(`{"mode":"paranoid"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if state.SecurityMode() != appstate.ModeStandard {
		t.Error("invalid request changed the mode")
	}
}

func TestAlertsReturnsHistoryNewestFirst(t *testing.T) {
	s, _, history, _ := testServer(t)
	for i, class := range []string{"knife", "person"} {
		history.Add(alert.Record{
			ID:        class,
			Class:     class,
			Timestamp: time.Unix(int64(100+i), 0),
		})
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []alert.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Class != "person" || got[1].Class != "knife" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestAlertsEmptyHistoryIsEmptyArray(t *testing.T) {
	s, _, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty history body = %q, want []", body)
	}
}

func TestRecipientSetAndClear(t *testing.T) {
	s, state, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/recipient",
		strings.NewReader(`{"email":"ops@example.com"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d", rec.Code)
	}
	if state.Recipient() != "ops@example.com" {
		t.Errorf("recipient = %q", state.Recipient())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/recipient", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	if state.Recipient() != "" {
		t.Error("recipient not cleared")
	}
}

func TestRecipientRejectsInvalidAddress(t *testing.T) {
	s, state, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/recipient",
		strings.NewReader(`{"email":"not-an-address"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if state.Recipient() != "" {
		t.Error("invalid address was stored")
	}
}

func TestFrameEndpoint(t *testing.T) {
	s, _, _, table := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frame/cam0", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before any frame = %d, want 404", rec.Code)
	}

	m := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	table.Update("cam0", m)
	m.Close()

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frame/cam0", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty JPEG body")
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _, _ := testServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "ok" {
		t.Errorf("health payload = %v", got)
	}
}

func TestAlertHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewAlertHub(zap.NewNop())
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	if hub.IsConnected() {
		t.Fatal("hub claims connected with no subscribers")
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.After(2 * time.Second)
	for !hub.IsConnected() {
		select {
		case <-deadline:
			t.Fatal("subscriber never registered")
		case <-time.After(time.Millisecond):
		}
	}

	want := alert.Record{ID: "rec-1", Type: alert.TypeThreatDetected, Class: "knife", CameraID: "cam0"}
	if err := hub.Publish(want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got alert.Record
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != want.ID || got.Class != want.Class {
		t.Errorf("received %+v, want %+v", got, want)
	}
}
