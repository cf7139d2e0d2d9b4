package status

import (
	"sync"
	"time"

	"github.com/beyonddemise/couchdb-idp-updater/internal/clock"
)

// Store tracks the last successful write per update URL.
//
// Entries are only ever added or overwritten; the map grows for the process
// lifetime and is never garbage-collected. Writes are last-writer-wins per
// URL.
type Store struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[string]string
}

// NewStore creates an empty status store
func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Store{
		clock:   clk,
		entries: make(map[string]string),
	}
}

// Record notes a successful write to the given URL at the current time
func (s *Store) Record(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[url] = s.clock.Now().Format(time.RFC1123)
}

// Snapshot returns a copy of the current URL -> timestamp mapping
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of tracked URLs
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
