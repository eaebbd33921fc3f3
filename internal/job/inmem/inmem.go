// Package inmem provides an in-memory job.Store for unit tests and the
// jobctl development CLI. It has no persistence across process restarts.
package inmem

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xecure-ai/alex-sub000/internal/job"
)

// Store implements job.Store in memory. All operations are safe for
// concurrent use via a single mutex; this core's concurrency model does not
// require per-slot locking (§5's slot-partitioning invariant makes this
// store's own lock contention negligible in practice) but a single mutex
// keeps the implementation trivially correct, which matters more for a test
// double than per-slot throughput.
type Store struct {
	mu      sync.Mutex
	records map[string]job.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]job.Record)}
}

// CreateJob implements job.Store.
func (s *Store) CreateJob(_ context.Context, userRef string, kind job.Kind, request job.RequestPayload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()
	s.records[id] = job.Record{
		ID:        id,
		UserRef:   userRef,
		Kind:      kind,
		Status:    job.StatusPending,
		Request:   request,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

// GetJob implements job.Store.
func (s *Store) GetJob(_ context.Context, jobID string) (job.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[jobID]
	if !ok {
		return job.Record{}, job.ErrNotFound
	}
	return cloneRecord(r), nil
}

// UpdateStatus implements job.Store.
func (s *Store) UpdateStatus(_ context.Context, jobID string, status job.Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[jobID]
	if !ok {
		return job.ErrNotFound
	}
	if !job.CanTransition(r.Status, status) {
		return job.ErrInvalidTransition
	}
	now := time.Now().UTC()
	r.Status = status
	r.UpdatedAt = now
	switch status {
	case job.StatusRunning:
		r.StartedAt = &now
	case job.StatusCompleted, job.StatusFailed:
		r.CompletedAt = &now
		if status == job.StatusFailed {
			r.Error = errMsg
		}
	}
	s.records[jobID] = r
	return nil
}

// SetSlot implements job.Store.
func (s *Store) SetSlot(_ context.Context, jobID string, slot job.Slot, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[jobID]
	if !ok {
		return job.ErrNotFound
	}

	changed := true
	switch slot {
	case job.SlotReport:
		md, _ := value.(string)
		if r.Report != nil && *r.Report == md {
			changed = false
		}
		r.Report = &md
	case job.SlotCharts:
		incoming, _ := value.(map[string]job.Chart)
		merged := make(map[string]job.Chart, len(r.Charts)+len(incoming))
		for k, v := range r.Charts {
			merged[k] = v
		}
		for k, v := range incoming {
			merged[k] = v
		}
		if reflect.DeepEqual(r.Charts, merged) {
			changed = false
		}
		r.Charts = merged
	case job.SlotRetirement:
		ret, _ := value.(job.Retirement)
		if r.Retirement != nil && reflect.DeepEqual(*r.Retirement, ret) {
			changed = false
		}
		r.Retirement = &ret
	case job.SlotSummary:
		sum, _ := value.(job.Summary)
		if r.Summary != nil && reflect.DeepEqual(*r.Summary, sum) {
			changed = false
		}
		r.Summary = &sum
	}

	if changed {
		r.UpdatedAt = time.Now().UTC()
	}
	s.records[jobID] = r
	return nil
}

func cloneRecord(r job.Record) job.Record {
	out := r
	if r.Charts != nil {
		out.Charts = make(map[string]job.Chart, len(r.Charts))
		for k, v := range r.Charts {
			out.Charts[k] = v
		}
	}
	return out
}
