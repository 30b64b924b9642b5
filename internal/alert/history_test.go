package alert

import (
	"fmt"
	"testing"
)

func recordN(n int) Record {
	return Record{ID: fmt.Sprintf("rec-%d", n), Class: "person", CameraID: "cam0"}
}

func TestHistoryNewestFirst(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 3; i++ {
		h.Add(recordN(i))
	}

	records := h.Records()
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}
	for i, want := range []string{"rec-2", "rec-1", "rec-0"} {
		if records[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, records[i].ID, want)
		}
	}
}

func TestHistoryEvictsOldestWhenFull(t *testing.T) {
	const capacity = 5
	h := NewHistory(capacity)

	for i := 0; i < capacity+5; i++ {
		h.Add(recordN(i))
	}

	records := h.Records()
	if len(records) != capacity {
		t.Fatalf("expected exactly %d entries, got %d", capacity, len(records))
	}
	// Newest first: 9, 8, 7, 6, 5. The five oldest (0-4) are gone.
	for i := 0; i < capacity; i++ {
		want := fmt.Sprintf("rec-%d", capacity+5-1-i)
		if records[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, records[i].ID, want)
		}
	}
}

func TestHistoryCapacityFloor(t *testing.T) {
	h := NewHistory(0)
	h.Add(recordN(1))
	h.Add(recordN(2))
	if h.Len() != 1 {
		t.Fatalf("expected capacity floor of 1, got len %d", h.Len())
	}
	if h.Records()[0].ID != "rec-2" {
		t.Fatal("expected newest record to survive")
	}
}
