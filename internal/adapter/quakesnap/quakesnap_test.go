package quakesnap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRunSnapshotHashDedup: an HTML snippet describing one earthquake
// notice emits exactly one event on the first run, and zero on a second
// run against byte-identical content.
func TestRunSnapshotHashDedup(t *testing.T) {
	const html = `<p>2025/12/25 05:14:43 경남 밀양시 동쪽 15km 지역 (규모:1.5 / 깊이:8km)</p>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	}))
	defer srv.Close()

	a := New(srv.URL)

	events, state := a.Run(context.Background(), nil)
	if len(events) != 1 {
		t.Fatalf("run 1: expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Title != "경남 밀양시 동쪽 15km 지역 규모 1.5 미소지진" {
		t.Fatalf("unexpected title: %q", e.Title)
	}
	if e.OccurredAt == nil || e.OccurredAt.Format("2006-01-02T15:04:05Z") != "2025-12-24T20:14:43Z" {
		t.Fatalf("unexpected occurred_at: %v", e.OccurredAt)
	}
	var payload struct {
		DepthKm float64 `json:"depthKm"`
	}
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload.DepthKm != 8 {
		t.Fatalf("expected depthKm 8, got %v", payload.DepthKm)
	}

	events, state2 := a.Run(context.Background(), state)
	if len(events) != 0 {
		t.Fatalf("run 2: expected 0 events on identical content, got %d", len(events))
	}
	if state2 == nil || *state2 != *state {
		t.Fatalf("run 2: expected checkpoint to stay unchanged")
	}
}
