// Package queue defines the durable job queue abstraction: a repeatable-job
// scheduler with retry/backoff, shared across instances via a common
// backing store so only one instance executes a given fire.
package queue

import "context"

// Handler processes one fire of a repeatable job. Returning an error marks
// the attempt failed; the queue retries per its backoff policy.
type Handler func(ctx context.Context, sourceID string) error

// Queue is the Job Queue.
type Queue interface {
	// RegisterRepeatable installs (or idempotently replaces) a job that
	// fires every intervalMs, identified by the stable id "ingest:<source_id>".
	RegisterRepeatable(jobID string, sourceID string, intervalMs int64) error

	// Run starts the worker loop, invoking handler for each fire, until ctx
	// is canceled. onFailure is notified after all retries for a fire are
	// exhausted.
	Run(ctx context.Context, handler Handler, onFailure func(sourceID string, err error)) error

	Close() error
}
