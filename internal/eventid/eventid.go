// Package eventid generates the time-ordered identifiers used for Event.ID.
//
// A ULID is a 128-bit value: a 48-bit millisecond timestamp followed by 80
// bits of randomness, Crockford base32-encoded so that lexicographic string
// order matches creation order even for ids minted in the same millisecond.
// ulid.Monotonic increments the randomness component for ids generated
// within the same millisecond, so ordering stays strict; the mutex below
// makes that monotonic generator safe across the concurrent adapter
// goroutines the ingest worker runs.
package eventid

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh, time-ordered, globally unique id.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
