// Package adapter defines the source-adapter framework contract and the
// compile-time registry of concrete adapters.
package adapter

import (
	"context"

	"github.com/neuwcodebox/disaster-feed/internal/model"
)

// Adapter is one ingestible source. Run must never panic on ordinary
// transport, timeout, or parse failures — those degrade to an empty result
// carrying the prior state forward; only programmer bugs propagate.
type Adapter interface {
	SourceID() model.Source

	// PollIntervalSec is the number of seconds between scheduled fires.
	PollIntervalSec() int

	// Run fetches and normalizes new items since priorState (nil on first
	// run) and returns the draft events plus the new opaque state to
	// checkpoint on success. len(events) == 0 with an unchanged state is a
	// normal, successful no-op run, not an error.
	Run(ctx context.Context, priorState *string) (events []model.DraftEvent, nextState *string)
}
