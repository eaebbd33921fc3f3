package middleware

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xecure-ai/alex-sub000/internal/model"
)

type stubClient struct {
	errsThenOK int
	calls      int
	err        error
}

func (s *stubClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	s.calls++
	if s.calls <= s.errsThenOK {
		return nil, s.err
	}
	return &model.Response{Text: "ok"}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestWithBackoffRetriesOnRateLimit(t *testing.T) {
	stub := &stubClient{errsThenOK: 2, err: fmt.Errorf("wrapped: %w", model.ErrRateLimited)}
	c := WithBackoff(stub).(*backoffClient)
	c.sleep = noSleep

	resp, err := c.Complete(context.Background(), &model.Request{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != "ok" || stub.calls != 3 {
		t.Fatalf("resp=%+v calls=%d, want ok after 3 calls", resp, stub.calls)
	}
}

func TestWithBackoffGivesUpAfterMaxAttempts(t *testing.T) {
	stub := &stubClient{errsThenOK: 100, err: model.ErrRateLimited}
	c := WithBackoff(stub).(*backoffClient)
	c.sleep = noSleep

	_, err := c.Complete(context.Background(), &model.Request{})
	if !errors.Is(err, model.ErrRateLimited) {
		t.Fatalf("Complete() error = %v, want ErrRateLimited", err)
	}
	if stub.calls != defaultMaxAttempt {
		t.Fatalf("calls = %d, want %d", stub.calls, defaultMaxAttempt)
	}
}

func TestWithBackoffDoesNotRetryNonTransientErrors(t *testing.T) {
	stub := &stubClient{errsThenOK: 100, err: model.ErrInvalidRequest}
	c := WithBackoff(stub).(*backoffClient)
	c.sleep = noSleep

	_, err := c.Complete(context.Background(), &model.Request{})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("Complete() error = %v, want ErrInvalidRequest", err)
	}
	if stub.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry)", stub.calls)
	}
}

func TestDelayForDoublesAndCaps(t *testing.T) {
	c := &backoffClient{base: 2 * time.Second, max: 10 * time.Second, maxAttempt: 5}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := c.delayFor(i + 1); got != w {
			t.Fatalf("delayFor(%d) = %v, want %v", i+1, got, w)
		}
	}
}

type recordingHooks struct {
	retries []int
}

func (r *recordingHooks) JobStarted(string, string, string)                     {}
func (r *recordingHooks) ClassificationStarted(string, int)                     {}
func (r *recordingHooks) ClassificationCompleted(string, int, time.Duration)    {}
func (r *recordingHooks) ClassificationFailed(string, string, error)            {}
func (r *recordingHooks) WorkerStarted(string, string)                          {}
func (r *recordingHooks) WorkerCommitted(string, string, time.Duration)         {}
func (r *recordingHooks) WorkerFailed(string, string, error)                    {}
func (r *recordingHooks) ToolInvoked(string, string, string, time.Duration, int) {}
func (r *recordingHooks) ModelRetry(_, _ string, attempt int, _ error)           { r.retries = append(r.retries, attempt) }
func (r *recordingHooks) JobFinalized(string, string, time.Duration)            {}
func (r *recordingHooks) DuplicateDeliveryIgnored(string)                       {}

func TestWithRetryTelemetryRecordsOnRetryableError(t *testing.T) {
	stub := &stubClient{errsThenOK: 1, err: model.ErrRateLimited}
	hooks := &recordingHooks{}
	c := WithRetryTelemetry(stub, hooks, "job-1", "narrative")

	if _, err := c.Complete(context.Background(), &model.Request{}); err != model.ErrRateLimited {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(hooks.retries) != 1 {
		t.Fatalf("retries recorded = %d, want 1", len(hooks.retries))
	}
}

// TestComposedBackoffOverTelemetryEmitsOneEventPerAttempt pins the
// composition order every caller must use: WithBackoff(WithRetryTelemetry(...)).
// Telemetry has to sit inside the backoff loop, not outside it, or the
// outer wrapper only ever observes the loop's final (successful) result and
// no model_retry events are emitted at all, per scenario 6.
func TestComposedBackoffOverTelemetryEmitsOneEventPerAttempt(t *testing.T) {
	stub := &stubClient{errsThenOK: 2, err: model.ErrRateLimited}
	hooks := &recordingHooks{}
	c := WithBackoff(WithRetryTelemetry(stub, hooks, "job-1", "narrative")).(*backoffClient)
	c.sleep = noSleep

	resp, err := c.Complete(context.Background(), &model.Request{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != "ok" || stub.calls != 3 {
		t.Fatalf("resp=%+v calls=%d, want ok after 3 calls", resp, stub.calls)
	}
	if len(hooks.retries) != 2 {
		t.Fatalf("retries recorded = %v, want 2 events", hooks.retries)
	}
	if hooks.retries[0] != 1 || hooks.retries[1] != 2 {
		t.Fatalf("retries recorded = %v, want [1 2]", hooks.retries)
	}
}
