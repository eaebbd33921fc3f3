// Package zap implements telemetry.Hooks as structured JSON log lines via
// go.uber.org/zap.
package zap

import (
	"time"

	"go.uber.org/zap"

	"github.com/xecure-ai/alex-sub000/internal/telemetry"
)

// Hooks logs every event at Info level (Warn for failures) using a single
// *zap.Logger.
type Hooks struct {
	log *zap.Logger
}

// New wraps log as a telemetry.Hooks. log must not be nil.
func New(log *zap.Logger) *Hooks {
	return &Hooks{log: log}
}

var _ telemetry.Hooks = (*Hooks)(nil)

func (h *Hooks) JobStarted(jobID, userRef, kind string) {
	h.log.Info("job_started", zap.String("job_id", jobID), zap.String("user_ref", userRef), zap.String("kind", kind))
}

func (h *Hooks) ClassificationStarted(jobID string, symbolCount int) {
	h.log.Info("classification_started", zap.String("job_id", jobID), zap.Int("symbol_count", symbolCount))
}

func (h *Hooks) ClassificationCompleted(jobID string, classified int, elapsed time.Duration) {
	h.log.Info("classification_completed",
		zap.String("job_id", jobID), zap.Int("classified", classified), zap.Duration("elapsed", elapsed))
}

func (h *Hooks) ClassificationFailed(jobID, symbol string, err error) {
	h.log.Warn("classification_failed", zap.String("job_id", jobID), zap.String("symbol", symbol), zap.Error(err))
}

func (h *Hooks) WorkerStarted(jobID, worker string) {
	h.log.Info("worker_started", zap.String("job_id", jobID), zap.String("worker", worker))
}

func (h *Hooks) WorkerCommitted(jobID, worker string, elapsed time.Duration) {
	h.log.Info("worker_committed", zap.String("job_id", jobID), zap.String("worker", worker), zap.Duration("elapsed", elapsed))
}

func (h *Hooks) WorkerFailed(jobID, worker string, err error) {
	h.log.Warn("worker_failed", zap.String("job_id", jobID), zap.String("worker", worker), zap.Error(err))
}

func (h *Hooks) ToolInvoked(jobID, worker, tool string, elapsed time.Duration, payloadSize int) {
	h.log.Info("tool_invoked",
		zap.String("job_id", jobID), zap.String("worker", worker), zap.String("tool", tool),
		zap.Duration("elapsed", elapsed), zap.Int("payload_size", payloadSize))
}

func (h *Hooks) ModelRetry(jobID, worker string, attempt int, err error) {
	h.log.Warn("model_retry",
		zap.String("job_id", jobID), zap.String("worker", worker), zap.Int("attempt", attempt), zap.Error(err))
}

func (h *Hooks) JobFinalized(jobID, status string, elapsed time.Duration) {
	h.log.Info("job_finalized", zap.String("job_id", jobID), zap.String("status", status), zap.Duration("elapsed", elapsed))
}

func (h *Hooks) DuplicateDeliveryIgnored(jobID string) {
	h.log.Info("duplicate_delivery_ignored", zap.String("job_id", jobID))
}
