// Package otel implements telemetry.Hooks as OpenTelemetry counters and
// histograms, for processes that export metrics to a collector rather than
// (or in addition to) structured logs.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xecure-ai/alex-sub000/internal/telemetry"
)

// noctx is used for every instrument recording call: hook methods carry no
// context.Context, so there is no span to attach these measurements to.
var noctx = context.Background()

// Hooks records every event as an OpenTelemetry instrument. Errors are
// recorded as a labeled counter increment, not a span event, since hook
// methods carry no context.Context to attach a span to.
type Hooks struct {
	jobsStarted      metric.Int64Counter
	jobsFinalized    metric.Int64Counter
	classifications  metric.Int64Counter
	classifyFailures metric.Int64Counter
	workerStarts     metric.Int64Counter
	workerCommits    metric.Int64Counter
	workerFailures   metric.Int64Counter
	toolInvocations  metric.Int64Counter
	toolDuration     metric.Float64Histogram
	modelRetries     metric.Int64Counter
	duplicates       metric.Int64Counter
}

// New builds a Hooks from a Meter obtained via the process's MeterProvider.
func New(meter metric.Meter) (*Hooks, error) {
	h := &Hooks{}
	var err error
	if h.jobsStarted, err = meter.Int64Counter("alex.jobs.started"); err != nil {
		return nil, err
	}
	if h.jobsFinalized, err = meter.Int64Counter("alex.jobs.finalized"); err != nil {
		return nil, err
	}
	if h.classifications, err = meter.Int64Counter("alex.classification.completed"); err != nil {
		return nil, err
	}
	if h.classifyFailures, err = meter.Int64Counter("alex.classification.failed"); err != nil {
		return nil, err
	}
	if h.workerStarts, err = meter.Int64Counter("alex.worker.started"); err != nil {
		return nil, err
	}
	if h.workerCommits, err = meter.Int64Counter("alex.worker.committed"); err != nil {
		return nil, err
	}
	if h.workerFailures, err = meter.Int64Counter("alex.worker.failed"); err != nil {
		return nil, err
	}
	if h.toolInvocations, err = meter.Int64Counter("alex.tool.invoked"); err != nil {
		return nil, err
	}
	if h.toolDuration, err = meter.Float64Histogram("alex.tool.duration_ms"); err != nil {
		return nil, err
	}
	if h.modelRetries, err = meter.Int64Counter("alex.model.retries"); err != nil {
		return nil, err
	}
	if h.duplicates, err = meter.Int64Counter("alex.job.duplicate_delivery"); err != nil {
		return nil, err
	}
	return h, nil
}

var _ telemetry.Hooks = (*Hooks)(nil)

func (h *Hooks) JobStarted(_, _, kind string) {
	h.jobsStarted.Add(noctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (h *Hooks) ClassificationStarted(string, int) {}

func (h *Hooks) ClassificationCompleted(_ string, classified int, _ time.Duration) {
	h.classifications.Add(noctx, int64(classified))
}

func (h *Hooks) ClassificationFailed(_, _ string, _ error) {
	h.classifyFailures.Add(noctx, 1)
}

func (h *Hooks) WorkerStarted(_, worker string) {
	h.workerStarts.Add(noctx, 1, metric.WithAttributes(attribute.String("worker", worker)))
}

func (h *Hooks) WorkerCommitted(_, worker string, _ time.Duration) {
	h.workerCommits.Add(noctx, 1, metric.WithAttributes(attribute.String("worker", worker)))
}

func (h *Hooks) WorkerFailed(_, worker string, _ error) {
	h.workerFailures.Add(noctx, 1, metric.WithAttributes(attribute.String("worker", worker)))
}

func (h *Hooks) ToolInvoked(_, worker, tool string, elapsed time.Duration, _ int) {
	attrs := metric.WithAttributes(attribute.String("worker", worker), attribute.String("tool", tool))
	h.toolInvocations.Add(noctx, 1, attrs)
	h.toolDuration.Record(noctx, float64(elapsed.Milliseconds()), attrs)
}

func (h *Hooks) ModelRetry(_, worker string, _ int, _ error) {
	h.modelRetries.Add(noctx, 1, metric.WithAttributes(attribute.String("worker", worker)))
}

func (h *Hooks) JobFinalized(_, status string, _ time.Duration) {
	h.jobsFinalized.Add(noctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (h *Hooks) DuplicateDeliveryIgnored(string) {
	h.duplicates.Add(noctx, 1)
}
