package ingest

import (
	"context"
	"log"

	"github.com/neuwcodebox/disaster-feed/internal/bus"
	"github.com/neuwcodebox/disaster-feed/internal/model"
	"github.com/neuwcodebox/disaster-feed/internal/store"
)

// Writer is the Event Writer: append-then-notify.
type Writer struct {
	log store.EventLog
	bus bus.Bus
}

func NewWriter(log store.EventLog, b bus.Bus) *Writer {
	return &Writer{log: log, bus: b}
}

// Append inserts e into the Event Log, then best-effort publishes its id on
// the Event Bus. A publish failure is logged and swallowed — the event is
// already durable and will surface to clients via `since` catch-up.
func (w *Writer) Append(ctx context.Context, e *model.Event) error {
	if err := w.log.Insert(ctx, e); err != nil {
		return err
	}

	if err := w.bus.Publish(ctx, e.ID); err != nil {
		log.Printf("ingest: bus publish failed for %s: %v", e.ID, err)
	}
	return nil
}
