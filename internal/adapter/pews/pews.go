// Package pews ingests a binary earthquake early-warning stream: a short
// header that gates which phase a frame belongs to, followed by a 60-byte
// text trailer and a 15-byte (120-bit) bit-packed trailer carrying the
// decoded quake fields.
package pews

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/httpkit"
	"github.com/neuwcodebox/disaster-feed/internal/model"
)

const (
	fetchTimeout       = 10 * time.Second
	defaultHeaderBytes = 4
	simHeaderBytes     = 1
	textTrailerBytes   = 60
	bitTrailerBytes    = 15

	simWindow = 5 * time.Minute
)

// regionNames is the fixed 17-element list the affected-regions bitmask
// indexes into, one bit per South Korean top-level administrative region.
var regionNames = [17]string{
	"서울", "부산", "대구", "인천", "광주", "대전", "울산", "세종", "경기",
	"강원", "충북", "충남", "전북", "전남", "경북", "경남", "제주",
}

// phase is the header-derived gating value.
type phase int

const (
	phaseNone phase = iota + 1
	phaseFast
	phaseDetail
)

// checkpointState is the opaque per-source dedup key.
type checkpointState struct {
	LastEqkID int64 `json:"lastEqkId"`
	LastPhase int   `json:"lastPhase"`
}

// Adapter polls the early-warning binary endpoint.
type Adapter struct {
	BaseURL string
	client  *http.Client

	simEqkID   string
	simStartAt time.Time
	simulate   bool

	mu     sync.Mutex
	offset time.Duration // server - local clock skew estimate, clamped >= 0
}

// New constructs the adapter. simEqkID/simStartAt (from KMA_PEWS_SIM_EQK_ID
// / KMA_PEWS_SIM_START_AT) activate simulation mode when both are non-empty.
func New(baseURL, simEqkID, simStartAt string) *Adapter {
	a := &Adapter{BaseURL: baseURL, client: httpkit.NewClient(fetchTimeout)}
	if simEqkID != "" && simStartAt != "" {
		if t, err := time.Parse(time.RFC3339, simStartAt); err == nil {
			a.simulate = true
			a.simEqkID = simEqkID
			a.simStartAt = t
		}
	}
	return a
}

func (a *Adapter) SourceID() model.Source { return model.SourcePEWS }

func (a *Adapter) PollIntervalSec() int { return 5 }

func (a *Adapter) Run(ctx context.Context, priorState *string) ([]model.DraftEvent, *string) {
	prior := loadCheckpoint(priorState)

	if a.simulate && time.Since(a.simStartAt) > simWindow {
		// Simulation window elapsed; fall through to live fetch behavior.
		a.simulate = false
	}

	body, err := a.fetch(ctx)
	if err != nil {
		return nil, priorState
	}

	headerLen := defaultHeaderBytes
	if a.simulate {
		headerLen = simHeaderBytes
	}
	if len(body) < headerLen+textTrailerBytes+bitTrailerBytes {
		return nil, priorState
	}

	header := body[:headerLen]
	bitTrailer := body[headerLen+textTrailerBytes : headerLen+textTrailerBytes+bitTrailerBytes]

	ph := headerPhase(header[0])
	if ph == phaseNone {
		return nil, priorState
	}

	fields := decodeTrailer(bitTrailer)

	next := checkpointState{LastEqkID: fields.eqkID, LastPhase: int(ph)}
	if prior.LastEqkID == next.LastEqkID && prior.LastPhase == next.LastPhase {
		return nil, priorState
	}

	draft := toDraft(fields, ph, prior)
	encoded := encodeCheckpoint(next)
	return []model.DraftEvent{draft}, &encoded
}

func (a *Adapter) fetch(ctx context.Context) ([]byte, error) {
	url := a.buildURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<16)

	a.updateClockOffset(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pews: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<16))
}

// buildURL computes the "YYYYMMDDhhmmss.b" timestamp the upstream expects,
// using the current clock-offset estimate (or the simulated replay instant
// while a simulation window is active).
func (a *Adapter) buildURL() string {
	var t time.Time
	if a.simulate {
		t = a.simStartAt.Add(time.Since(a.simStartAt))
	} else {
		a.mu.Lock()
		off := a.offset
		a.mu.Unlock()
		t = time.Now().UTC().Add(off)
	}

	prefix := a.BaseURL
	if a.simulate {
		prefix = a.BaseURL + "/sim"
	}

	tenth := t.Nanosecond() / 100_000_000
	return fmt.Sprintf("%s/%s.%d", prefix, t.Format("20060102150405"), tenth)
}

// updateClockOffset re-derives the server/local skew from the ST header
// (seconds since epoch) or, failing that, the Date header. The offset is
// clamped non-negative: a server believed to be behind us is treated as
// perfectly synchronized rather than introducing a negative skew.
func (a *Adapter) updateClockOffset(resp *http.Response) {
	var serverTime time.Time
	if st := resp.Header.Get("ST"); st != "" {
		var secs int64
		if _, err := fmt.Sscanf(st, "%d", &secs); err == nil {
			serverTime = time.Unix(secs, 0).UTC()
		}
	}
	if serverTime.IsZero() {
		if d := resp.Header.Get("Date"); d != "" {
			if t, err := http.ParseTime(d); err == nil {
				serverTime = t.UTC()
			}
		}
	}
	if serverTime.IsZero() {
		return
	}

	off := serverTime.Sub(time.Now().UTC())
	if off < 0 {
		off = 0
	}

	a.mu.Lock()
	a.offset = off
	a.mu.Unlock()
}

func headerPhase(b byte) phase {
	bit1 := (b >> 6) & 1
	bit2 := (b >> 5) & 1
	switch {
	case bit1 == 0:
		return phaseNone
	case bit2 == 0:
		return phaseFast
	default:
		return phaseDetail
	}
}

type trailerFields struct {
	lat, lon     float64
	mag, depthKm float64
	occurredAt   time.Time
	eqkID        int64
	intensity    int64
	regions      []string
}

// decodeTrailer reads the 120-bit packed block at fixed offsets:
// lat[0:10], lon[10:20], mag×10[20:27], depth×10[27:37],
// unix-seconds[37:69], eqk-id[69:95], intensity[95:99], region-mask[99:116].
func decodeTrailer(b []byte) trailerFields {
	rawLat := readBits(b, 0, 10)
	rawLon := readBits(b, 10, 10)
	rawMag := readBits(b, 20, 7)
	rawDepth := readBits(b, 27, 10)
	rawUnix := readBits(b, 37, 32)
	rawEqk := readBits(b, 69, 26)
	rawIntensity := readBits(b, 95, 4)
	rawMask := readBits(b, 99, 17)

	var regions []string
	for i := 0; i < 17; i++ {
		if rawMask&(1<<uint(16-i)) != 0 {
			regions = append(regions, regionNames[i])
		}
	}

	return trailerFields{
		lat:        30 + float64(rawLat)/100,
		lon:        124 + float64(rawLon)/100,
		mag:        float64(rawMag) / 10,
		depthKm:    float64(rawDepth) / 10,
		occurredAt: time.Unix(int64(rawUnix), 0).UTC(),
		eqkID:      int64(rawEqk),
		intensity:  int64(rawIntensity),
		regions:    regions,
	}
}

// readBits extracts length bits starting at bit offset (0 = MSB of b[0]).
func readBits(b []byte, offset, length int) uint64 {
	var out uint64
	for i := 0; i < length; i++ {
		pos := offset + i
		byteIdx := pos / 8
		bitIdx := 7 - (pos % 8)
		bit := (b[byteIdx] >> uint(bitIdx)) & 1
		out = (out << 1) | uint64(bit)
	}
	return out
}

func toDraft(f trailerFields, ph phase, prior checkpointState) model.DraftEvent {
	level := model.LevelCritical
	switch {
	case prior.LastEqkID != 0 && f.eqkID == prior.LastEqkID:
		// Same incident already alerted in an earlier phase: downgrade so
		// clients aren't re-alerted at full severity twice.
		level = model.LevelInfo
	case ph == phaseFast:
		level = model.LevelSevere
	}

	region := ""
	if len(f.regions) > 0 {
		region = f.regions[0]
		for _, r := range f.regions[1:] {
			region += ", " + r
		}
	}

	title := fmt.Sprintf("규모 %.1f 지진 조기경보", f.mag)
	occurred := f.occurredAt
	payload, _ := json.Marshal(map[string]any{
		"eqkId":     f.eqkID,
		"lat":       f.lat,
		"lon":       f.lon,
		"magnitude": f.mag,
		"depthKm":   f.depthKm,
		"intensity": f.intensity,
		"regions":   f.regions,
		"phase":     int(ph),
	})

	var regionPtr *string
	if region != "" {
		regionPtr = &region
	}

	return model.DraftEvent{
		Kind:       model.KindEarthquakeEarlyWarning,
		Title:      title,
		OccurredAt: &occurred,
		RegionText: regionPtr,
		Level:      level,
		Payload:    payload,
	}
}

func loadCheckpoint(raw *string) checkpointState {
	var s checkpointState
	if raw == nil || *raw == "" {
		return s
	}
	_ = json.Unmarshal([]byte(*raw), &s)
	return s
}

func encodeCheckpoint(s checkpointState) string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}
