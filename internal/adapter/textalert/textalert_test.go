package textalert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRunDedupBySerial: the feed returns [100, 101] on the first run, then
// [101, 102, 103] on the second; only genuinely new serials should be
// emitted and the checkpoint should track the max seen.
func TestRunDedupBySerial(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var items []item
		if calls == 1 {
			items = []item{
				{Serial: 100, Message: "first", Region: "Seoul", Level: "warning", IssuedAt: "2025-01-01 09:00:00"},
				{Serial: 101, Message: "second", Region: "Seoul", Level: "warning", IssuedAt: "2025-01-01 09:01:00"},
			}
		} else {
			items = []item{
				{Serial: 101, Message: "second", Region: "Seoul", Level: "warning", IssuedAt: "2025-01-01 09:01:00"},
				{Serial: 102, Message: "third", Region: "Seoul", Level: "warning", IssuedAt: "2025-01-01 09:02:00"},
				{Serial: 103, Message: "fourth", Region: "Seoul", Level: "warning", IssuedAt: "2025-01-01 09:03:00"},
			}
		}
		_ = json.NewEncoder(w).Encode(items)
	}))
	defer srv.Close()

	a := New(srv.URL)

	events, state := a.Run(context.Background(), nil)
	if len(events) != 2 {
		t.Fatalf("run 1: expected 2 events, got %d", len(events))
	}
	if state == nil || *state != "101" {
		t.Fatalf("run 1: expected checkpoint %q, got %v", "101", state)
	}

	events, state = a.Run(context.Background(), state)
	if len(events) != 2 {
		t.Fatalf("run 2: expected 2 new events (102, 103), got %d", len(events))
	}
	if state == nil || *state != "103" {
		t.Fatalf("run 2: expected checkpoint %q, got %v", "103", state)
	}
}

func TestRunDegradesOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(srv.URL)
	prior := "42"
	events, state := a.Run(context.Background(), &prior)
	if events != nil {
		t.Fatalf("expected no events on transport failure, got %v", events)
	}
	if state == nil || *state != "42" {
		t.Fatalf("expected prior state to be carried forward unchanged, got %v", state)
	}
}
