package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a simple in-memory implementation of Store.
// Records older than the TTL are dropped by a background cleanup.
type MemoryStore struct {
	records  []Record
	mu       sync.RWMutex
	ttl      time.Duration
	stopChan chan struct{}
	stopped  bool
}

// NewMemoryStore creates a new in-memory ledger.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	go s.cleanup()

	return s
}

// Record appends a record. Calls after Close are ignored.
func (s *MemoryStore) Record(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, r)
	return nil
}

// List returns live matching records, newest first.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]Record, error) {
	out := s.live(f)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.limit() {
		out = out[:f.limit()]
	}
	return out, nil
}

// Summarize aggregates live matching records per action.
func (s *MemoryStore) Summarize(_ context.Context, f Filter) ([]Summary, error) {
	return summarize(s.live(f)), nil
}

func (s *MemoryStore) live(f Filter) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-s.ttl)
	var out []Record
	for _, r := range s.records {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Close stops the cleanup goroutine and clears data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
		s.records = nil
	}
	return nil
}

// cleanup periodically removes expired entries.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.stopped {
				cutoff := time.Now().Add(-s.ttl)
				kept := s.records[:0]
				for _, r := range s.records {
					if !r.CreatedAt.Before(cutoff) {
						kept = append(kept, r)
					}
				}
				s.records = kept
			}
			s.mu.Unlock()
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
