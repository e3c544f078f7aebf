// Package textalert ingests an emergency text-message alert feed keyed by
// an increasing serial number, using a monotone scalar watermark for dedup.
package textalert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/httpkit"
	"github.com/neuwcodebox/disaster-feed/internal/model"
)

const fetchTimeout = 10 * time.Second

// item is one entry of the upstream feed's JSON array.
type item struct {
	Serial   int64  `json:"serial"`
	Message  string `json:"message"`
	Region   string `json:"region"`
	Level    string `json:"level"`
	IssuedAt string `json:"issued_at"` // "2006-01-02 15:04:05" in +09:00
}

var levelMap = map[string]model.Level{
	"safety":   model.LevelInfo,
	"caution":  model.LevelMinor,
	"warning":  model.LevelModerate,
	"severe":   model.LevelSevere,
	"critical": model.LevelCritical,
}

// Adapter polls a JSON feed of serial-numbered text alerts.
type Adapter struct {
	URL    string
	client *http.Client
}

func New(url string) *Adapter {
	return &Adapter{URL: url, client: httpkit.NewClient(fetchTimeout)}
}

func (a *Adapter) SourceID() model.Source { return model.SourceTextAlert }

func (a *Adapter) PollIntervalSec() int { return 60 }

func (a *Adapter) Run(ctx context.Context, priorState *string) ([]model.DraftEvent, *string) {
	var watermark int64
	if priorState != nil {
		if n, err := strconv.ParseInt(*priorState, 10, 64); err == nil {
			watermark = n
		}
	}

	items, err := a.fetch(ctx)
	if err != nil {
		return nil, priorState
	}

	var events []model.DraftEvent
	maxSerial := watermark
	for _, it := range items {
		if it.Serial <= watermark {
			continue
		}
		events = append(events, toDraft(it))
		if it.Serial > maxSerial {
			maxSerial = it.Serial
		}
	}

	next := strconv.FormatInt(maxSerial, 10)
	return events, &next
}

func (a *Adapter) fetch(ctx context.Context) ([]item, error) {
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
		return nil, fmt.Errorf("textalert: unexpected status %d", resp.StatusCode)
	}

	var items []item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

func toDraft(it item) model.DraftEvent {
	body := normalizeText(it.Message)
	occurred := parseKST(it.IssuedAt)
	region := normalizeText(it.Region)

	level, ok := levelMap[strings.ToLower(it.Level)]
	if !ok {
		level = model.LevelInfo
	}

	payload, _ := json.Marshal(map[string]any{"serial": it.Serial})

	return model.DraftEvent{
		Kind:       model.KindTextAlert,
		Title:      body,
		Body:       &body,
		OccurredAt: occurred,
		RegionText: &region,
		Level:      level,
		Payload:    payload,
	}
}

var kst = time.FixedZone("KST", 9*60*60)

// parseKST parses a "2006-01-02 15:04:05" timestamp in +09:00 and converts
// to UTC, returning nil on malformed input rather than erroring.
func parseKST(s string) *time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, kst)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// normalizeText collapses whitespace runs and trims.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
