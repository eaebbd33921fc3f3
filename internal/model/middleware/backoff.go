// Package middleware provides model.Client decorators: a fixed exponential
// backoff retry policy and a telemetry-emitting wrapper, composed the same
// way the teacher's rate limiter decorates a model.Client.
package middleware

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/xecure-ai/alex-sub000/internal/model"
	"github.com/xecure-ai/alex-sub000/internal/telemetry"
)

const (
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 10 * time.Second
	defaultMaxAttempt = 5
)

type backoffClient struct {
	next       model.Client
	base       time.Duration
	max        time.Duration
	maxAttempt int
	sleep      func(context.Context, time.Duration) error
}

// WithBackoff wraps next in the fixed exponential backoff policy: base 2s,
// doubling each attempt, capped at 10s, up to 5 attempts total. Retries
// trigger only on model.ErrRateLimited and model.ErrTimeout; any other
// error is returned immediately.
func WithBackoff(next model.Client) model.Client {
	return &backoffClient{
		next:       next,
		base:       defaultBaseDelay,
		max:        defaultMaxDelay,
		maxAttempt: defaultMaxAttempt,
		sleep:      sleepContext,
	}
}

func (c *backoffClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempt; attempt++ {
		resp, err := c.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		if attempt == c.maxAttempt {
			break
		}
		delay := c.delayFor(attempt)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// delayFor doubles the base delay per attempt, capped at max.
func (c *backoffClient) delayFor(attempt int) time.Duration {
	d := c.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.max {
			return c.max
		}
	}
	if d > c.max {
		return c.max
	}
	return d
}

func isRetryable(err error) bool {
	return errors.Is(err, model.ErrRateLimited) || errors.Is(err, model.ErrTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type telemetryClient struct {
	next   model.Client
	hooks  telemetry.Hooks
	jobID  string
	worker string

	// attempt counts consecutive retryable failures seen by this client
	// within one backoff sequence; it resets to 0 on the next success so a
	// later turn's retries are again reported starting at 1.
	attempt atomic.Int64
}

// WithRetryTelemetry wraps next so every retryable error observed by a
// backoffClient further up the chain is also reported through hooks as a
// model_retry event. It is meant to wrap the same client the backoff
// middleware wraps, at the same layer, via WithBackoff(WithRetryTelemetry(...)).
func WithRetryTelemetry(next model.Client, hooks telemetry.Hooks, jobID, worker string) model.Client {
	if hooks == nil {
		hooks = telemetry.NoOp{}
	}
	return &telemetryClient{next: next, hooks: hooks, jobID: jobID, worker: worker}
}

func (c *telemetryClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	resp, err := c.next.Complete(ctx, req)
	if err == nil {
		c.attempt.Store(0)
		return resp, nil
	}
	if isRetryable(err) {
		n := c.attempt.Add(1)
		c.hooks.ModelRetry(c.jobID, c.worker, int(n), err)
	}
	return resp, err
}
