// Package inmem provides an in-memory instrument.Store for unit tests and
// local development seeding.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/xecure-ai/alex-sub000/internal/instrument"
)

// Store implements instrument.Store in memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]instrument.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]instrument.Record)}
}

// Get implements instrument.Store.
func (s *Store) Get(_ context.Context, symbol string) (instrument.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[symbol]
	return r, ok, nil
}

// Upsert implements instrument.Store.
func (s *Store) Upsert(_ context.Context, r instrument.Record) error {
	if err := instrument.Validate(r); err != nil {
		return err
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Symbol] = r
	return nil
}

// ListMissing implements instrument.Store.
func (s *Store) ListMissing(_ context.Context, symbols []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	missing := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		r, ok := s.records[sym]
		if !ok || !r.HasAllAllocations() {
			missing = append(missing, sym)
		}
	}
	return missing, nil
}
