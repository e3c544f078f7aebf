// Package sse implements the SSE Hub: the per-instance fan-out of
// freshly inserted events to connected /events/stream clients, and replay
// of missed events on reconnect via `since` catch-up.
package sse

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/neuwcodebox/disaster-feed/internal/bus"
	"github.com/neuwcodebox/disaster-feed/internal/model"
	"github.com/neuwcodebox/disaster-feed/internal/store"
)

// Client is one connected SSE subscriber. Events is buffered so a slow
// reader doesn't block the hub's broadcast loop; a full buffer evicts the
// client rather than stalling everyone else.
type Client struct {
	Events chan *model.Event
	done   chan struct{}
}

// Hub owns the instance-local subscriber set; it is the only thing allowed
// to read or write that set.
type Hub struct {
	eventLog store.EventLog
	bus      bus.Bus

	mu          sync.Mutex
	started     bool
	unsubscribe func()
	clients     map[*Client]struct{}
}

func NewHub(eventLog store.EventLog, b bus.Bus) *Hub {
	return &Hub{
		eventLog: eventLog,
		bus:      b,
		clients:  make(map[*Client]struct{}),
	}
}

// Start subscribes to the Event Bus once. Idempotent; if the subscribe call
// fails the hub stays un-started and logs — there is no automatic retry
// loop, a caller must invoke Start again.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}

	unsub, err := h.bus.Subscribe(h.onBusMessage)
	if err != nil {
		log.Printf("sse: subscribe failed: %v", err)
		return err
	}
	h.unsubscribe = unsub
	h.started = true
	return nil
}

// Stop unsubscribes from the bus and clears the subscriber set.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	for c := range h.clients {
		close(c.done)
	}
	h.clients = make(map[*Client]struct{})
	h.started = false
}

// AddClient registers a new subscriber with a bounded event buffer.
func (h *Hub) AddClient() *Client {
	c := &Client{
		Events: make(chan *model.Event, 64),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// RemoveClient is the on-abort hook: it evicts c from the subscriber set.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.done)
	}
}

// CatchUp reads every event since the given instant and passes each to send,
// in ascending order, writing straight to the connection rather than through
// the bounded client channel — a catch-up backlog can exceed the channel's
// buffer and a client isn't draining it until CatchUp returns. A nil since
// is a no-op. Stops early if ctx is done or send returns an error.
func (h *Hub) CatchUp(ctx context.Context, since *time.Time, send func(*model.Event) error) error {
	if since == nil {
		return nil
	}
	events, err := h.eventLog.ListSince(ctx, *since, 0)
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := send(e); err != nil {
			return err
		}
	}
	return nil
}

// onBusMessage is invoked once per received event id: it re-reads the event
// from the log (never trusts the bus payload itself) and fans it out.
func (h *Hub) onBusMessage(eventID string) {
	e, err := h.eventLog.GetByID(context.Background(), eventID)
	if err != nil {
		log.Printf("sse: lookup failed for %s: %v", eventID, err)
		return
	}
	if e == nil {
		log.Printf("sse: event %s not yet visible, dropping notification", eventID)
		return
	}

	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		select {
		case c.Events <- e:
		case <-c.done:
		default:
			log.Printf("sse: client buffer full, evicting")
			h.RemoveClient(c)
		}
	}
}
