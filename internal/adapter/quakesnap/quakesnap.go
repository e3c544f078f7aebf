// Package quakesnap ingests a single-block HTML dashboard carrying the
// latest earthquake notice, parsed with golang.org/x/net/html. Dedup compares
// the whitespace-normalized snapshot text with the text stored in the
// checkpoint.
package quakesnap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/neuwcodebox/disaster-feed/internal/httpkit"
	"github.com/neuwcodebox/disaster-feed/internal/model"
)

const fetchTimeout = 15 * time.Second

var kst = time.FixedZone("KST", 9*60*60)

// snapshotPattern captures "2025/12/25 05:14:43 <region> (규모:1.5 / 깊이:8km)".
var snapshotPattern = regexp.MustCompile(
	`(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})\s+(.*?)\s*\(규모\s*:\s*([\d.]+)\s*/\s*깊이\s*:\s*(\d+(?:\.\d+)?)\s*km\)`,
)

// Adapter scrapes a single HTML block holding the latest earthquake notice.
type Adapter struct {
	URL    string
	client *http.Client
}

func New(url string) *Adapter {
	return &Adapter{URL: url, client: httpkit.NewClient(fetchTimeout)}
}

func (a *Adapter) SourceID() model.Source { return model.SourceQuakeSnapshot }

func (a *Adapter) PollIntervalSec() int { return 30 }

func (a *Adapter) Run(ctx context.Context, priorState *string) ([]model.DraftEvent, *string) {
	text, err := a.fetchText(ctx)
	if err != nil {
		return nil, priorState
	}

	normalized := normalizeText(text)
	if priorState != nil && normalized == *priorState {
		return nil, priorState
	}

	draft, ok := parseSnapshot(normalized)
	if !ok {
		// Unparseable snapshot: nothing to emit, but still checkpoint the
		// raw text so an unchanging malformed page doesn't retry forever.
		return nil, &normalized
	}

	return []model.DraftEvent{draft}, &normalized
}

func (a *Adapter) fetchText(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("quakesnap: unexpected status %d", resp.StatusCode)
	}
	return extractText(resp.Body)
}

// extractText walks the HTML tokenizer and concatenates all text nodes,
// decoding entities as it goes (the tokenizer already does so).
func extractText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != nil && err.Error() != "EOF" {
				return "", err
			}
			return sb.String(), nil
		case html.TextToken:
			sb.Write(z.Text())
			sb.WriteByte(' ')
		}
	}
}

func parseSnapshot(normalized string) (model.DraftEvent, bool) {
	m := snapshotPattern.FindStringSubmatch(normalized)
	if m == nil {
		return model.DraftEvent{}, false
	}

	occurred := parseKST(m[1])
	region := strings.TrimSpace(m[2])
	mag := m[3]
	depth, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return model.DraftEvent{}, false
	}

	title := fmt.Sprintf("%s 규모 %s 미소지진", region, mag)
	payload, _ := json.Marshal(map[string]any{"magnitude": mag, "depthKm": depth})

	return model.DraftEvent{
		Kind:       model.KindEarthquake,
		Title:      title,
		OccurredAt: occurred,
		RegionText: &region,
		Level:      levelForMagnitude(mag),
		Payload:    payload,
	}, true
}

func levelForMagnitude(mag string) model.Level {
	v, err := strconv.ParseFloat(mag, 64)
	if err != nil {
		return model.LevelInfo
	}
	switch {
	case v >= 5.5:
		return model.LevelCritical
	case v >= 4.5:
		return model.LevelSevere
	case v >= 3.5:
		return model.LevelModerate
	case v >= 2.5:
		return model.LevelMinor
	default:
		return model.LevelInfo
	}
}

func parseKST(s string) *time.Time {
	t, err := time.ParseInLocation("2006/01/02 15:04:05", s, kst)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
