// Package inmem provides a mutex-guarded, slice-backed queue.Consumer for
// tests. It simulates SQS-style at-least-once redelivery: an unacked
// message becomes visible again after its visibility timeout, and a
// message that has been received MaxReceiveCount times without an ack is
// routed to a dead-letter slice instead of being redelivered again.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xecure-ai/alex-sub000/internal/queue"
)

const (
	defaultVisibilityTimeout = 30 * time.Second
	defaultMaxReceiveCount   = 3
)

type inFlight struct {
	jobID     string
	visibleAt time.Time
}

// Queue implements queue.Consumer plus Send, the producer-side operation
// that enqueues a job id.
type Queue struct {
	mu       sync.Mutex
	pending  []string // job ids waiting to be (re)delivered
	inFlight map[string]*inFlight // keyed by receipt handle
	receives map[string]int       // keyed by job id, across redeliveries

	visibilityTimeout time.Duration
	maxReceiveCount   int
	deadLetter        []string
}

// Options configures a Queue. Zero values fall back to 30s visibility and
// a max receive count of 3, per §4.8's stated default.
type Options struct {
	VisibilityTimeout time.Duration
	MaxReceiveCount   int
}

// New returns an empty Queue.
func New(opts Options) *Queue {
	vt := opts.VisibilityTimeout
	if vt <= 0 {
		vt = defaultVisibilityTimeout
	}
	mrc := opts.MaxReceiveCount
	if mrc <= 0 {
		mrc = defaultMaxReceiveCount
	}
	return &Queue{
		inFlight:          make(map[string]*inFlight),
		receives:          make(map[string]int),
		visibilityTimeout: vt,
		maxReceiveCount:   mrc,
	}
}

// Send enqueues jobID for delivery.
func (q *Queue) Send(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, jobID)
	return nil
}

// Receive implements queue.Consumer. It also reclaims any in-flight
// message whose visibility timeout has elapsed, routing it to the
// dead-letter slice once it has been received maxReceiveCount times.
func (q *Queue) Receive(_ context.Context, max int) ([]queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reclaimExpiredLocked()

	if max <= 0 || max > len(q.pending) {
		max = len(q.pending)
	}
	out := make([]queue.Message, 0, max)
	for i := 0; i < max; i++ {
		jobID := q.pending[i]
		q.receives[jobID]++
		handle := uuid.NewString()
		q.inFlight[handle] = &inFlight{jobID: jobID, visibleAt: time.Now().Add(q.visibilityTimeout)}
		out = append(out, queue.Message{JobID: jobID, ReceiptHandle: handle})
	}
	q.pending = q.pending[max:]
	return out, nil
}

// Ack implements queue.Consumer.
func (q *Queue) Ack(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if f, ok := q.inFlight[msg.ReceiptHandle]; ok {
		delete(q.receives, f.jobID)
		delete(q.inFlight, msg.ReceiptHandle)
	}
	return nil
}

// Extend implements queue.Consumer.
func (q *Queue) Extend(_ context.Context, msg queue.Message, d time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if f, ok := q.inFlight[msg.ReceiptHandle]; ok {
		f.visibleAt = time.Now().Add(d)
	}
	return nil
}

// DeadLettered returns the job ids that reached maxReceiveCount receives
// without being acked, for test assertions.
func (q *Queue) DeadLettered() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deadLetter...)
}

func (q *Queue) reclaimExpiredLocked() {
	now := time.Now()
	for handle, f := range q.inFlight {
		if now.Before(f.visibleAt) {
			continue
		}
		delete(q.inFlight, handle)
		if q.receives[f.jobID] >= q.maxReceiveCount {
			q.deadLetter = append(q.deadLetter, f.jobID)
			delete(q.receives, f.jobID)
			continue
		}
		q.pending = append(q.pending, f.jobID)
	}
}
