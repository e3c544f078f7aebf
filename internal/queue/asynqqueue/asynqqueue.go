// Package asynqqueue implements queue.Queue on top of hibiken/asynq, a
// Redis-backed task queue. asynq's cron-style Scheduler (backed by
// robfig/cron's "@every" directive) gives us repeatable-job semantics,
// and its Server/ServeMux give us retrying workers.
package asynqqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/neuwcodebox/disaster-feed/internal/queue"
)

const (
	queueName = "ingest"
	taskName  = "poll-source"
)

type payload struct {
	SourceID string `json:"source_id"`
}

// Queue wires an asynq Scheduler + Server around one Redis URL. Task
// enqueuing goes entirely through the Scheduler's repeatable entries; there
// is no ad-hoc one-off enqueue path, so no asynq.Client is kept around.
type Queue struct {
	redisOpt asynq.RedisConnOpt

	scheduler *asynq.Scheduler
	server    *asynq.Server

	mu       sync.Mutex
	entryIDs map[string]string // jobID -> scheduler entry id
}

// New parses redisURL (the same REDIS_URL the Event Bus connects to, on a
// separate connection) and constructs the scheduler.
func New(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynqqueue: parse redis url: %w", err)
	}

	q := &Queue{
		redisOpt:  opt,
		entryIDs:  make(map[string]string),
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{}),
	}
	return q, nil
}

func (q *Queue) RegisterRepeatable(jobID string, sourceID string, intervalMs int64) error {
	if intervalMs <= 0 {
		return fmt.Errorf("asynqqueue: non-positive interval for %s", jobID)
	}

	b, err := json.Marshal(payload{SourceID: sourceID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(taskName, b, asynq.Queue(queueName), asynq.MaxRetry(3))

	q.mu.Lock()
	defer q.mu.Unlock()

	if old, ok := q.entryIDs[jobID]; ok {
		if err := q.scheduler.Unregister(old); err != nil {
			log.Printf("asynqqueue: unregister stale entry for %s: %v", jobID, err)
		}
	}

	cronspec := fmt.Sprintf("@every %dms", intervalMs)
	entryID, err := q.scheduler.Register(cronspec, task)
	if err != nil {
		return fmt.Errorf("asynqqueue: register %s: %w", jobID, err)
	}
	q.entryIDs[jobID] = entryID
	return nil
}

func (q *Queue) Run(ctx context.Context, handler queue.Handler, onFailure func(sourceID string, err error)) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(taskName, func(ctx context.Context, t *asynq.Task) error {
		var p payload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("asynqqueue: bad payload: %w", err)
		}
		return handler(ctx, p.SourceID)
	})

	q.server = asynq.NewServer(q.redisOpt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{queueName: 1},
		RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
			return 5 * time.Second * time.Duration(1<<uint(n))
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried < maxRetry {
				return
			}
			var p payload
			_ = json.Unmarshal(t.Payload(), &p)
			onFailure(p.SourceID, err)
		}),
	})

	if err := q.scheduler.Start(); err != nil {
		return fmt.Errorf("asynqqueue: scheduler start: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- q.server.Run(mux) }()

	select {
	case <-ctx.Done():
		q.scheduler.Shutdown()
		q.server.Shutdown()
		return nil
	case err := <-errCh:
		q.scheduler.Shutdown()
		return err
	}
}

func (q *Queue) Close() error {
	return nil
}
