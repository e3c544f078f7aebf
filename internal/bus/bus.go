// Package bus defines the cross-instance event-notification abstraction.
// It carries only event ids — the payload itself is always re-read from
// the Event Log, never from the bus message.
package bus

import "context"

// Bus is the Event Bus: a single logical "events:new" channel.
type Bus interface {
	// Publish is fire-and-forget best-effort; implementations must swallow
	// transport errors and log them rather than return them to callers
	// that cannot usefully react (the event is already durably persisted).
	Publish(ctx context.Context, eventID string) error

	// Subscribe delivers each received event id to handler, one message at
	// a time from a single receiving goroutine. The returned func
	// unsubscribes and releases the underlying subscription.
	Subscribe(handler func(eventID string)) (unsubscribe func(), err error)

	Close() error
}
