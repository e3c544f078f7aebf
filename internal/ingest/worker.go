package ingest

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/adapter"
	"github.com/neuwcodebox/disaster-feed/internal/eventid"
	"github.com/neuwcodebox/disaster-feed/internal/model"
	"github.com/neuwcodebox/disaster-feed/internal/store"
)

// Registry is the subset of adapter.Registry the worker needs; satisfied by
// *adapter.Registry in production and by test fakes.
type Registry interface {
	Get(sourceID model.Source) (adapter.Adapter, bool)
}

// Worker is the Ingest Worker: resolves an adapter by source id,
// enforces a per-source single-flight guard, runs it, and writes whatever
// it returns — advancing the checkpoint only if every insert succeeded.
type Worker struct {
	registry    Registry
	checkpoints store.CheckpointStore
	writer      *Writer

	mu      sync.Mutex
	running map[model.Source]bool
}

func NewWorker(registry Registry, checkpoints store.CheckpointStore, writer *Writer) *Worker {
	return &Worker{
		registry:    registry,
		checkpoints: checkpoints,
		writer:      writer,
		running:     make(map[model.Source]bool),
	}
}

// ProcessSource is the queue.Handler bound to the "poll-source" job: it
// receives the source id encoded as its integer string.
func (w *Worker) ProcessSource(ctx context.Context, sourceIDStr string) error {
	n, err := strconv.Atoi(sourceIDStr)
	if err != nil {
		log.Printf("ingest: bad source id payload %q: %v", sourceIDStr, err)
		return nil
	}
	sourceID := model.Source(n)

	a, ok := w.registry.Get(sourceID)
	if !ok {
		log.Printf("ingest: no adapter registered for source %s", sourceID)
		return nil
	}

	if !w.acquire(sourceID) {
		log.Printf("ingest: %s already running on this worker, skipping", sourceID)
		return nil
	}
	defer w.release(sourceID)

	cp, err := w.checkpoints.Get(ctx, sourceID)
	if err != nil {
		log.Printf("ingest: checkpoint lookup failed for %s: %v", sourceID, err)
		return nil
	}
	var prior *string
	if cp != nil {
		prior = cp.State
	}

	fetchedAt := time.Now().UTC()
	drafts, next := a.Run(ctx, prior)

	allOK := true
	for _, d := range drafts {
		e := &model.Event{
			ID:         eventid.New(),
			Source:     sourceID,
			Kind:       d.Kind,
			Title:      d.Title,
			Body:       d.Body,
			FetchedAt:  fetchedAt,
			OccurredAt: d.OccurredAt,
			RegionText: d.RegionText,
			Level:      d.Level,
			Payload:    d.Payload,
		}
		if err := w.writer.Append(ctx, e); err != nil {
			log.Printf("ingest: insert failed for %s event: %v", sourceID, err)
			allOK = false
		}
	}

	if !allOK {
		// Checkpoint intentionally left unchanged: the next run retries with
		// the same prior state, relying on the adapter's own dedup to skip
		// what already made it in.
		return nil
	}

	if err := w.checkpoints.Upsert(ctx, sourceID, next); err != nil {
		log.Printf("ingest: checkpoint upsert failed for %s: %v", sourceID, err)
	}
	return nil
}

func (w *Worker) acquire(sourceID model.Source) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running[sourceID] {
		return false
	}
	w.running[sourceID] = true
	return true
}

func (w *Worker) release(sourceID model.Source) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.running, sourceID)
}

// OnJobFailure is the queue's "job-failed" observer, logging fires whose
// retries were exhausted without a successful run.
func OnJobFailure(sourceIDStr string, err error) {
	log.Printf("ingest: job failed for source %s: %v", sourceIDStr, err)
}
