// Package weather ingests a KMA-style CSV weather-warning feed. Rows carry
// no stable serial or id, so dedup compares the whitespace-normalized full
// response body with the body stored in the checkpoint, since every row can
// change together on each publish.
package weather

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/httpkit"
	"github.com/neuwcodebox/disaster-feed/internal/model"
)

const fetchTimeout = 20 * time.Second

var kst = time.FixedZone("KST", 9*60*60)

// levelMap maps the KMA warning-grade string to the 5-level enum.
var levelMap = map[string]model.Level{
	"주의보": model.LevelMinor,
	"경보":   model.LevelSevere,
}

var kindMap = map[string]model.Kind{
	"호우": model.KindHeavyRain,
	"대설": model.KindHeavySnow,
	"강풍": model.KindWindstorm,
	"폭염": model.KindHeatWave,
	"한파": model.KindColdWave,
	"태풍": model.KindTyphoon,
	"황사": model.KindYellowDust,
	"건조": model.KindDrought,
	"풍랑": model.KindStormSurge,
	"짙은안개": model.KindDenseFog,
}

// Adapter polls a KMA weather-warning CSV feed.
type Adapter struct {
	URL    string
	APIKey string
	client *http.Client
}

func New(url, apiKey string) *Adapter {
	return &Adapter{URL: url, APIKey: apiKey, client: httpkit.NewClient(fetchTimeout)}
}

func (a *Adapter) SourceID() model.Source { return model.SourceWeather }

func (a *Adapter) PollIntervalSec() int { return 300 }

func (a *Adapter) Run(ctx context.Context, priorState *string) ([]model.DraftEvent, *string) {
	body, err := a.fetch(ctx)
	if err != nil {
		return nil, priorState
	}

	normalized := normalizeText(string(body))
	if priorState != nil && normalized == *priorState {
		return nil, priorState
	}

	rows, err := parseCSV(body)
	if err != nil {
		return nil, priorState
	}

	events := make([]model.DraftEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, toDraft(row))
	}

	return events, &normalized
}

func (a *Adapter) fetch(ctx context.Context) ([]byte, error) {
	url := a.URL
	if a.APIKey != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url = fmt.Sprintf("%s%sauthKey=%s", url, sep, a.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// warningRow is one normalized CSV record.
type warningRow struct {
	Region   string
	Kind     string
	Grade    string
	IssuedAt string // "2006-01-02 15:04" in +09:00
}

// parseCSV reads the KMA CSV dialect, trimming the trailing "=" cell the
// upstream occasionally appends to each record.
func parseCSV(body []byte) ([]warningRow, error) {
	r := csv.NewReader(bufio.NewReader(bytes.NewReader(body)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var rows []warningRow
	for _, rec := range records {
		rec = trimTrailingEquals(rec)
		if len(rec) < 4 {
			continue
		}
		rows = append(rows, warningRow{
			Region:   strings.TrimSpace(rec[0]),
			Kind:     strings.TrimSpace(rec[1]),
			Grade:    strings.TrimSpace(rec[2]),
			IssuedAt: strings.TrimSpace(rec[3]),
		})
	}
	return rows, nil
}

func trimTrailingEquals(rec []string) []string {
	for len(rec) > 0 && strings.TrimSpace(rec[len(rec)-1]) == "=" {
		rec = rec[:len(rec)-1]
	}
	return rec
}

func toDraft(row warningRow) model.DraftEvent {
	kind, ok := kindMap[row.Kind]
	if !ok {
		kind = model.KindUnknown
	}
	level, ok := levelMap[row.Grade]
	if !ok {
		level = model.LevelInfo
	}

	title := normalizeText(fmt.Sprintf("%s %s %s", row.Region, row.Kind, row.Grade))
	region := row.Region
	occurred := parseKST(row.IssuedAt)
	payload, _ := json.Marshal(map[string]any{"grade": row.Grade, "kind": row.Kind})

	return model.DraftEvent{
		Kind:       kind,
		Title:      title,
		OccurredAt: occurred,
		RegionText: &region,
		Level:      level,
		Payload:    payload,
	}
}

func parseKST(s string) *time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, kst)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
