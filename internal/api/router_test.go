package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/model"
	"github.com/neuwcodebox/disaster-feed/internal/sse"
)

type fakeEventLog struct {
	events []*model.Event
}

func (f *fakeEventLog) Insert(ctx context.Context, e *model.Event) error { return nil }
func (f *fakeEventLog) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return nil, nil
}
func (f *fakeEventLog) List(ctx context.Context, filter model.ListFilter) ([]*model.Event, error) {
	return f.events, nil
}
func (f *fakeEventLog) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Event, error) {
	return nil, nil
}

type fakeBus struct{}

func (fakeBus) Publish(ctx context.Context, eventID string) error { return nil }
func (fakeBus) Subscribe(handler func(eventID string)) (func(), error) {
	return func() {}, nil
}
func (fakeBus) Close() error { return nil }

func TestPingReturnsOK(t *testing.T) {
	log := &fakeEventLog{}
	hub := sse.NewHub(log, fakeBus{})
	h := New(Deps{EventLog: log, Hub: hub})

	req := httptest.NewRequest(http.MethodGet, "/api/health/ping", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if !body.OK {
		t.Fatal("expected ok=true")
	}
}

func TestListEventsReturnsEvents(t *testing.T) {
	log := &fakeEventLog{events: []*model.Event{
		{ID: "1", Source: model.SourceTextAlert, Kind: model.KindEarthquake, Level: model.LevelInfo},
	}}
	hub := sse.NewHub(log, fakeBus{})
	h := New(Deps{EventLog: log, Hub: hub})

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var dtos []eventDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dtos); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if len(dtos) != 1 || dtos[0].ID != "1" {
		t.Fatalf("unexpected events: %+v", dtos)
	}
	if dtos[0].Source != int(model.SourceTextAlert) || dtos[0].Kind != int(model.KindEarthquake) {
		t.Fatalf("expected source/kind to round-trip as integers, got %+v", dtos[0])
	}

	req2 := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/events?source=%d&kind=%d", dtos[0].Source, dtos[0].Kind), nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected the DTO's own source/kind values to be accepted back, got %d", rec2.Code)
	}
}

func TestListEventsRejectsBadLimit(t *testing.T) {
	log := &fakeEventLog{}
	hub := sse.NewHub(log, fakeBus{})
	h := New(Deps{EventLog: log, Hub: hub})

	req := httptest.NewRequest(http.MethodGet, "/events?limit=-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListEventsRejectsUnknownKind(t *testing.T) {
	log := &fakeEventLog{}
	hub := sse.NewHub(log, fakeBus{})
	h := New(Deps{EventLog: log, Hub: hub})

	req := httptest.NewRequest(http.MethodGet, "/events?kind=9999", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
