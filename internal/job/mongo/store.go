// Package mongo wires the job.Store interface to the MongoDB client.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/xecure-ai/alex-sub000/internal/job"
)

// Store implements job.Store by delegating to the Mongo Client.
type Store struct {
	client Client
}

// NewStore builds a job.Store using the provided client.
func NewStore(client Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// NewStoreFromMongo constructs the underlying client and wraps it.
func NewStoreFromMongo(opts Options) (*Store, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(c)
}

// CreateJob implements job.Store.
func (s *Store) CreateJob(ctx context.Context, userRef string, kind job.Kind, request job.RequestPayload) (string, error) {
	id := newJobID()
	now := time.Now().UTC()
	if err := s.client.InsertJob(ctx, fromRecord(id, userRef, kind, request, now)); err != nil {
		return "", err
	}
	return id, nil
}

// GetJob implements job.Store.
func (s *Store) GetJob(ctx context.Context, jobID string) (job.Record, error) {
	doc, err := s.client.FindJob(ctx, jobID)
	if err != nil {
		return job.Record{}, err
	}
	return doc.toRecord(), nil
}

// UpdateStatus implements job.Store. It derives the legal predecessor set
// from the target status alone, then performs the transition as a single
// guarded findOneAndUpdate so a concurrent duplicate delivery can
// never double-transition the job (§5 "at-most-one per job" lease).
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status job.Status, errMsg string) error {
	from, err := legalPredecessors(status)
	if err != nil {
		return err
	}
	ok, err := s.client.UpdateStatus(ctx, jobID, from, status, errMsg, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return job.ErrInvalidTransition
	}
	return nil
}

// SetSlot implements job.Store.
func (s *Store) SetSlot(ctx context.Context, jobID string, slot job.Slot, value any) error {
	now := time.Now().UTC()
	if slot == job.SlotCharts {
		charts, ok := value.(map[string]job.Chart)
		if !ok {
			return errors.New("job: charts slot requires map[string]job.Chart")
		}
		return s.client.MergeChartsSlot(ctx, jobID, charts, now)
	}
	field, ok := slotField(slot)
	if !ok {
		return errors.New("job: unknown slot " + string(slot))
	}
	return s.client.SetSlot(ctx, jobID, field, value, now)
}

func slotField(slot job.Slot) (string, bool) {
	switch slot {
	case job.SlotReport:
		return "slots.report", true
	case job.SlotRetirement:
		return "slots.retirement", true
	case job.SlotSummary:
		return "slots.summary", true
	default:
		return "", false
	}
}

func legalPredecessors(to job.Status) ([]job.Status, error) {
	switch to {
	case job.StatusRunning:
		return []job.Status{job.StatusPending}, nil
	case job.StatusCompleted, job.StatusFailed:
		return []job.Status{job.StatusRunning}, nil
	default:
		return nil, job.ErrInvalidTransition
	}
}
