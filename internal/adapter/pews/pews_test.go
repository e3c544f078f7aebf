package pews

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/model"
)

func TestHeaderPhase(t *testing.T) {
	cases := []struct {
		name string
		b    byte
		want phase
	}{
		{"bit1 clear is no phase", 0x00, phaseNone},
		{"bit1 clear with other bits set is still no phase", 0x9f, phaseNone},
		{"bit1 set, bit2 clear is fast", 0x40, phaseFast},
		{"bit1 set, bit2 set is detail", 0x60, phaseDetail},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := headerPhase(c.b); got != c.want {
				t.Fatalf("headerPhase(%#x) = %v, want %v", c.b, got, c.want)
			}
		})
	}
}

// bitField packs a value into a bit range using the same MSB-first, bit 0 =
// MSB-of-byte-0 convention readBits expects.
type bitField struct {
	offset, length int
	value          uint64
}

func packBits(totalBytes int, fields []bitField) []byte {
	b := make([]byte, totalBytes)
	for _, f := range fields {
		for i := 0; i < f.length; i++ {
			bit := (f.value >> uint(f.length-1-i)) & 1
			if bit == 0 {
				continue
			}
			pos := f.offset + i
			byteIdx := pos / 8
			bitIdx := 7 - (pos % 8)
			b[byteIdx] |= 1 << uint(bitIdx)
		}
	}
	return b
}

func TestDecodeTrailer(t *testing.T) {
	occurred := time.Date(2025, 6, 1, 3, 4, 5, 0, time.UTC)
	b := packBits(bitTrailerBytes, []bitField{
		{0, 10, 567},                 // lat 30 + 5.67 = 35.67
		{10, 10, 500},                // lon 124 + 5.00 = 129.00
		{20, 7, 42},                  // mag 4.2
		{27, 10, 105},                // depth 10.5 km
		{37, 32, uint64(occurred.Unix())},
		{69, 26, 123456}, // eqkID
		{95, 4, 5},       // intensity
		{99, 17, 1 << 16}, // region bit 0 -> regionNames[0]
	})

	got := decodeTrailer(b)
	if got.lat != 35.67 || got.lon != 129.00 {
		t.Fatalf("unexpected lat/lon: %v/%v", got.lat, got.lon)
	}
	if got.mag != 4.2 {
		t.Fatalf("unexpected mag: %v", got.mag)
	}
	if got.depthKm != 10.5 {
		t.Fatalf("unexpected depthKm: %v", got.depthKm)
	}
	if !got.occurredAt.Equal(occurred) {
		t.Fatalf("unexpected occurredAt: %v", got.occurredAt)
	}
	if got.eqkID != 123456 {
		t.Fatalf("unexpected eqkID: %v", got.eqkID)
	}
	if got.intensity != 5 {
		t.Fatalf("unexpected intensity: %v", got.intensity)
	}
	if len(got.regions) != 1 || got.regions[0] != regionNames[0] {
		t.Fatalf("unexpected regions: %v", got.regions)
	}
}

// frame builds a full default-header body: 4-byte header (only the first
// byte matters), a 60-byte text trailer (content irrelevant to decoding),
// and a packed bit trailer for eqkID/phase.
func frame(headerByte byte, eqkID int64) []byte {
	bit := packBits(bitTrailerBytes, []bitField{
		{69, 26, uint64(eqkID)},
	})
	body := make([]byte, 0, defaultHeaderBytes+textTrailerBytes+bitTrailerBytes)
	body = append(body, headerByte, 0, 0, 0)
	body = append(body, make([]byte, textTrailerBytes)...)
	body = append(body, bit...)
	return body
}

func newServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestRunPhaseNoneEmitsNothing: a frame whose header clears bit1 emits zero
// events regardless of what the trailer contains.
func TestRunPhaseNoneEmitsNothing(t *testing.T) {
	srv := newServer(t, frame(0x00, 999))
	a := New(srv.URL, "", "")

	events, state := a.Run(context.Background(), nil)
	if len(events) != 0 {
		t.Fatalf("expected 0 events, got %d", len(events))
	}
	if state != nil {
		t.Fatalf("expected checkpoint to stay nil, got %v", state)
	}
}

// TestRunDetailPhaseAfterFastPhaseDowngradesToInfo: a fast (phase 2) notice
// for an incident is Severe; a later detail (phase 3) notice for the same
// eqkID is downgraded to Info rather than re-alerting at full severity.
func TestRunDetailPhaseAfterFastPhaseDowngradesToInfo(t *testing.T) {
	const eqkID = int64(42)

	fastSrv := newServer(t, frame(0x40, eqkID))
	a := New(fastSrv.URL, "", "")
	events, state := a.Run(context.Background(), nil)
	if len(events) != 1 {
		t.Fatalf("fast phase: expected 1 event, got %d", len(events))
	}
	if events[0].Level != model.LevelSevere {
		t.Fatalf("fast phase: expected Severe, got %v", events[0].Level)
	}

	detailSrv := newServer(t, frame(0x60, eqkID))
	a.BaseURL = detailSrv.URL
	events, state = a.Run(context.Background(), state)
	if len(events) != 1 {
		t.Fatalf("detail phase: expected 1 event, got %d", len(events))
	}
	if events[0].Level != model.LevelInfo {
		t.Fatalf("detail phase: expected Info downgrade, got %v", events[0].Level)
	}
	if state == nil {
		t.Fatal("expected an updated checkpoint")
	}
}

// TestRunDetailPhaseForNewIncidentIsCritical: a detail-phase notice for an
// eqkID never seen before is not downgraded.
func TestRunDetailPhaseForNewIncidentIsCritical(t *testing.T) {
	srv := newServer(t, frame(0x60, 7))
	a := New(srv.URL, "", "")

	events, _ := a.Run(context.Background(), nil)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Level != model.LevelCritical {
		t.Fatalf("expected Critical, got %v", events[0].Level)
	}
}

// TestRunSamePhaseSameIncidentIsDeduped: an identical (eqkID, phase) pair
// across two runs emits nothing on the second.
func TestRunSamePhaseSameIncidentIsDeduped(t *testing.T) {
	srv := newServer(t, frame(0x40, 7))
	a := New(srv.URL, "", "")

	events, state := a.Run(context.Background(), nil)
	if len(events) != 1 {
		t.Fatalf("run 1: expected 1 event, got %d", len(events))
	}

	events, _ = a.Run(context.Background(), state)
	if len(events) != 0 {
		t.Fatalf("run 2: expected 0 events on an unchanged (eqkID, phase), got %d", len(events))
	}
}

func TestDraftPayloadRoundTrips(t *testing.T) {
	const eqkID = int64(55)
	srv := newServer(t, frame(0x60, eqkID))
	a := New(srv.URL, "", "")

	events, _ := a.Run(context.Background(), nil)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	var payload struct {
		EqkID int64 `json:"eqkId"`
	}
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload.EqkID != eqkID {
		t.Fatalf("expected eqkId %d, got %d", eqkID, payload.EqkID)
	}
}
