package wildfire

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestRunPrunesExpiredSeenEntries: a seen-set entry older than the TTL is
// pruned on the next run while a fresh one survives.
func TestRunPrunesExpiredSeenEntries(t *testing.T) {
	now := time.Now().UTC()
	old := now.Add(-(seenTTL + time.Second))

	prior := seenState{Seen: map[string]time.Time{
		"A": old,
		"B": now,
	}}
	b, err := json.Marshal(prior)
	if err != nil {
		t.Fatal(err)
	}
	priorStr := string(b)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]report{})
	}))
	defer srv.Close()

	a := New(srv.URL)
	events, nextState := a.Run(context.Background(), &priorStr)
	if len(events) != 0 {
		t.Fatalf("expected no new events, got %d", len(events))
	}

	got := loadSeenState(nextState)
	if _, ok := got.Seen["A"]; ok {
		t.Fatalf("expected stale entry %q to be pruned", "A")
	}
	if _, ok := got.Seen["B"]; !ok {
		t.Fatalf("expected fresh entry %q to survive", "B")
	}
}

func TestRunEmitsOnlyUnseenReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reports := []report{
			{ID: "A", Area: "Area A", Progress: "in_progress", Region: "Gangwon", ReportedAt: "2025-03-01T10:00:00"},
			{ID: "B", Area: "Area B", Progress: "reported", Region: "Gyeongbuk", ReportedAt: "2025-03-01T11:00:00"},
		}
		_ = json.NewEncoder(w).Encode(reports)
	}))
	defer srv.Close()

	a := New(srv.URL)

	events, state := a.Run(context.Background(), nil)
	if len(events) != 2 {
		t.Fatalf("run 1: expected 2 events, got %d", len(events))
	}

	events, _ = a.Run(context.Background(), state)
	if len(events) != 0 {
		t.Fatalf("run 2: expected 0 new events for already-seen reports, got %d", len(events))
	}
}
