package api

import (
	"encoding/json"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/model"
)

// eventDTO mirrors model.Event verbatim for the wire; nullable fields
// marshal as JSON null. Source/Kind carry both their integer tag (the same
// value /events accepts via ?source=/?kind=) and a human-readable name, so a
// value read from this DTO can be fed straight back into a list query.
type eventDTO struct {
	ID         string          `json:"id"`
	Source     int             `json:"source"`
	SourceName string          `json:"source_name"`
	Kind       int             `json:"kind"`
	KindName   string          `json:"kind_name"`
	Title      string          `json:"title"`
	Body       *string         `json:"body"`
	FetchedAt  time.Time       `json:"fetched_at"`
	OccurredAt *time.Time      `json:"occurred_at"`
	RegionText *string         `json:"region_text"`
	Level      int             `json:"level"`
	Payload    json.RawMessage `json:"payload"`
}

func toDTO(e *model.Event) eventDTO {
	return eventDTO{
		ID:         e.ID,
		Source:     int(e.Source),
		SourceName: e.Source.String(),
		Kind:       int(e.Kind),
		KindName:   e.Kind.String(),
		Title:      e.Title,
		Body:       e.Body,
		FetchedAt:  e.FetchedAt,
		OccurredAt: e.OccurredAt,
		RegionText: e.RegionText,
		Level:      int(e.Level),
		Payload:    e.Payload,
	}
}

func toDTOs(events []*model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toDTO(e))
	}
	return out
}
