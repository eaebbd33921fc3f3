package inmem

import (
	"context"
	"testing"
	"time"
)

func TestSendReceiveAck(t *testing.T) {
	ctx := context.Background()
	q := New(Options{})

	if err := q.Send(ctx, "job-1"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	msgs, err := q.Receive(ctx, 10)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].JobID != "job-1" {
		t.Fatalf("Receive() = %+v, want one job-1 message", msgs)
	}

	if err := q.Ack(ctx, msgs[0]); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}
	again, _ := q.Receive(ctx, 10)
	if len(again) != 0 {
		t.Fatalf("Receive() after Ack = %+v, want empty", again)
	}
}

func TestUnackedMessageIsRedeliveredAfterVisibilityTimeout(t *testing.T) {
	ctx := context.Background()
	q := New(Options{VisibilityTimeout: 10 * time.Millisecond, MaxReceiveCount: 3})

	_ = q.Send(ctx, "job-1")
	first, _ := q.Receive(ctx, 10)
	if len(first) != 1 {
		t.Fatalf("first Receive() = %+v, want one message", first)
	}

	time.Sleep(20 * time.Millisecond)
	second, _ := q.Receive(ctx, 10)
	if len(second) != 1 || second[0].JobID != "job-1" {
		t.Fatalf("second Receive() = %+v, want job-1 redelivered", second)
	}
}

func TestMessageExceedingMaxReceiveCountIsDeadLettered(t *testing.T) {
	ctx := context.Background()
	q := New(Options{VisibilityTimeout: 5 * time.Millisecond, MaxReceiveCount: 2})

	_ = q.Send(ctx, "job-1")
	for i := 0; i < 2; i++ {
		msgs, _ := q.Receive(ctx, 10)
		if len(msgs) != 1 {
			t.Fatalf("Receive() attempt %d = %+v, want one message", i, msgs)
		}
		time.Sleep(10 * time.Millisecond) // let it expire without acking
	}

	// Third attempt to reclaim should dead-letter instead of redeliver.
	msgs, _ := q.Receive(ctx, 10)
	if len(msgs) != 0 {
		t.Fatalf("Receive() after exhausting retries = %+v, want empty", msgs)
	}
	dead := q.DeadLettered()
	if len(dead) != 1 || dead[0] != "job-1" {
		t.Fatalf("DeadLettered() = %v, want [job-1]", dead)
	}
}
