// Package queue defines the consumer-side contract of §4.8: pulling job
// messages (opaque job ids) from a FIFO-agnostic, at-least-once queue,
// acknowledging them on success, and relying on the queue's own visibility
// timeout and redrive policy for retry and dead-lettering.
package queue

import (
	"context"
	"time"
)

// Message is one delivery of a job id. ReceiptHandle is opaque backend
// state Ack/Extend need to address this specific delivery (SQS's receipt
// handle, the in-memory queue's delivery token, ...).
type Message struct {
	JobID         string
	ReceiptHandle string
}

// Consumer pulls job messages and acknowledges or extends their visibility.
// Implementations need not be safe for concurrent Receive calls from
// multiple goroutines against the same underlying queue resource unless
// documented otherwise; cmd/consumer runs at most one Receive loop per
// configured worker slot.
type Consumer interface {
	// Receive polls for up to max available messages, blocking up to the
	// backend's own poll timeout. An empty, nil-error result means no
	// messages were available.
	Receive(ctx context.Context, max int) ([]Message, error)

	// Ack permanently removes msg from the queue after successful
	// processing (including a job that finalized as StatusFailed).
	Ack(ctx context.Context, msg Message) error

	// Extend pushes out msg's visibility timeout by d, used by a consumer
	// running an orchestrator pass that is approaching the default
	// visibility window.
	Extend(ctx context.Context, msg Message, d time.Duration) error
}
