// Package shutdown implements an ordered teardown sequence: HTTP server
// close, then SSE hub stop, ingest worker close, bus subscriber quit, bus
// client quit, and finally the DB pool — with a watchdog that force-exits
// if any step hangs.
package shutdown

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

const watchdog = 10 * time.Second

// Step is one teardown action, run in registration order.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Sequence runs each step in order, guarded by a single watchdog covering
// the whole teardown, and is itself guarded against re-entry.
type Sequence struct {
	steps []Step

	mu      sync.Mutex
	started bool
}

func New(steps ...Step) *Sequence {
	return &Sequence{steps: steps}
}

// Run executes every step in order. If the whole sequence does not finish
// within the watchdog window, it calls os.Exit(1) directly — a hung step
// means something in the process is not honoring its own context.
func (s *Sequence) Run() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), watchdog)
		defer cancel()
		for _, step := range s.steps {
			if err := step.Run(ctx); err != nil {
				log.Printf("shutdown: %s: %v", step.Name, err)
			}
		}
	}()

	select {
	case <-done:
		log.Println("shutdown: clean exit")
	case <-time.After(watchdog):
		log.Println("shutdown: watchdog fired, forcing exit")
		os.Exit(1)
	}
}
