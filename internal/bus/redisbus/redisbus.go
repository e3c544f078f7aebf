// Package redisbus implements bus.Bus on top of Redis pub/sub, the same
// backing store the Job Queue uses (REDIS_URL serves both, over two
// separate connections).
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channel = "events:new"

type message struct {
	EventID string `json:"event_id"`
}

// Bus publishes and subscribes on the "events:new" channel.
type Bus struct {
	client *redis.Client

	mu  sync.Mutex
	sub *redis.PubSub
}

// New wraps an existing Redis client. The caller owns the client's
// lifecycle; Close here only tears down any active subscription.
func New(client *redis.Client) *Bus {
	return &Bus{client: client}
}

func (b *Bus) Publish(ctx context.Context, eventID string) error {
	payload, err := json.Marshal(message{EventID: eventID})
	if err != nil {
		return fmt.Errorf("marshal event bus message: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("bus: publish failed: %v", err)
		return nil
	}
	return nil
}

func (b *Bus) Subscribe(handler func(eventID string)) (func(), error) {
	ctx := context.Background()
	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("bus: subscribe: %w", err)
	}

	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	ch := sub.Channel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil || m.EventID == "" {
					log.Printf("bus: dropping malformed message: %v", err)
					continue
				}
				handler(m.EventID)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			sub.Close()
		})
	}
	return unsubscribe, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		return b.sub.Close()
	}
	return nil
}
