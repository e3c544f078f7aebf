// Package wildfire ingests a JSON list of active wildfire reports keyed by
// report id, using a seen-set-with-TTL for dedup.
package wildfire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/httpkit"
	"github.com/neuwcodebox/disaster-feed/internal/model"
)

const (
	fetchTimeout = 15 * time.Second
	seenTTL      = 24 * time.Hour
)

// report is one entry of the upstream feed.
type report struct {
	ID        string `json:"id"`
	Area      string `json:"area"`
	Progress  string `json:"progress"` // "reported" | "in_progress" | "completed"
	Region    string `json:"region"`
	ReportedAt string `json:"reported_at"` // "2006-01-02T15:04:05" in +09:00
}

// seenState is the checkpoint payload: report id -> ISO timestamp first seen.
type seenState struct {
	Seen map[string]time.Time `json:"seen"`
}

var progressLevel = map[string]model.Level{
	"reported":    model.LevelModerate,
	"in_progress": model.LevelSevere,
	"completed":   model.LevelInfo,
}

// Adapter polls a JSON feed of active wildfire reports.
type Adapter struct {
	URL    string
	client *http.Client
}

func New(url string) *Adapter {
	return &Adapter{URL: url, client: httpkit.NewClient(fetchTimeout)}
}

func (a *Adapter) SourceID() model.Source { return model.SourceWildfire }

func (a *Adapter) PollIntervalSec() int { return 120 }

func (a *Adapter) Run(ctx context.Context, priorState *string) ([]model.DraftEvent, *string) {
	state := loadSeenState(priorState)

	reports, err := a.fetch(ctx)
	if err != nil {
		return nil, priorState
	}

	now := time.Now().UTC()
	pruned := make(map[string]time.Time, len(state.Seen))
	for id, seenAt := range state.Seen {
		if now.Sub(seenAt) <= seenTTL {
			pruned[id] = seenAt
		}
	}
	state.Seen = pruned

	var events []model.DraftEvent
	for _, r := range reports {
		if _, ok := state.Seen[r.ID]; ok {
			continue
		}
		events = append(events, toDraft(r))
		state.Seen[r.ID] = now
	}

	next := encodeSeenState(state)
	return events, &next
}

func (a *Adapter) fetch(ctx context.Context) ([]report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wildfire: unexpected status %d", resp.StatusCode)
	}

	var reports []report
	if err := json.NewDecoder(resp.Body).Decode(&reports); err != nil {
		return nil, err
	}
	return reports, nil
}

var kst = time.FixedZone("KST", 9*60*60)

func toDraft(r report) model.DraftEvent {
	title := normalizeText(fmt.Sprintf("%s 산불 발생", r.Area))
	region := normalizeText(r.Region)
	occurred := parseKST(r.ReportedAt)

	level, ok := progressLevel[r.Progress]
	if !ok {
		// Unknown progress code: treat like a completed/closed report rather
		// than boosting severity for something unrecognized.
		level = model.LevelInfo
	}

	payload, _ := json.Marshal(map[string]any{"report_id": r.ID, "progress": r.Progress})

	return model.DraftEvent{
		Kind:       model.KindWildfire,
		Title:      title,
		OccurredAt: occurred,
		RegionText: &region,
		Level:      level,
		Payload:    payload,
	}
}

func parseKST(s string) *time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, kst)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func loadSeenState(raw *string) seenState {
	s := seenState{Seen: map[string]time.Time{}}
	if raw == nil || *raw == "" {
		return s
	}
	_ = json.Unmarshal([]byte(*raw), &s)
	if s.Seen == nil {
		s.Seen = map[string]time.Time{}
	}
	return s
}

func encodeSeenState(s seenState) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `{"seen":{}}`
	}
	return string(b)
}
