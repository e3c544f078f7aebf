package ingest

import (
	"fmt"
	"log"
	"strconv"

	"github.com/neuwcodebox/disaster-feed/internal/adapter"
	"github.com/neuwcodebox/disaster-feed/internal/queue"
)

// InstallSchedule is the Ingest Scheduler: registers one repeatable
// job per registered adapter, keyed by "ingest:<source_id>", firing every
// poll_interval_sec * 1000 ms. Adapters with a non-positive interval are
// skipped with a warning. Safe to call on every boot — the queue replaces
// the schedule for a job id idempotently.
func InstallSchedule(q queue.Queue, registry *adapter.Registry) {
	for _, a := range registry.List() {
		interval := a.PollIntervalSec()
		if interval <= 0 {
			log.Printf("ingest: skipping %s, non-positive poll interval %d", a.SourceID(), interval)
			continue
		}

		jobID := fmt.Sprintf("ingest:%s", a.SourceID())
		sourceIDStr := strconv.Itoa(int(a.SourceID()))
		if err := q.RegisterRepeatable(jobID, sourceIDStr, int64(interval)*1000); err != nil {
			log.Printf("ingest: failed to schedule %s: %v", a.SourceID(), err)
		}
	}
}
