// Package worker drives one specialist's tool-calling model loop: seed
// prompt, Client.Complete, dispatch any tool calls through a
// toolregistry.Registry, append results, repeat until a final text reply,
// max_turns, or a fatal error — then verify the worker's job slot was
// committed by one of its tools. Schema-mode workers (the classifier) do not
// use Runtime; see internal/worker/classifier.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xecure-ai/alex-sub000/internal/job"
	"github.com/xecure-ai/alex-sub000/internal/model"
	"github.com/xecure-ai/alex-sub000/internal/telemetry"
	"github.com/xecure-ai/alex-sub000/internal/toolregistry"
)

// Spec parameterizes one tool-mode worker run.
type Spec struct {
	JobID  string
	Worker string

	// Messages seeds the conversation; the portfolio snapshot and
	// instructions are injected here by the caller, not fetched via tools.
	Messages []model.Message

	Tools    *toolregistry.Registry
	MaxTurns int

	// Slot is the job-record field this worker owns. Run fails with
	// ErrSlotNotCommitted if it is still empty when the loop ends.
	Slot     job.Slot
	JobStore job.Store

	Client model.Client
	Hooks  telemetry.Hooks
}

// Result is the outcome of a completed worker run.
type Result struct {
	FinalText string
	Turns     int
}

// Sentinel worker errors, per the error taxonomy of §7.
var (
	ErrMaxTurnsExceeded  = errors.New("worker: max turns exceeded")
	ErrSlotNotCommitted  = errors.New("worker: result slot was not committed")
	ErrToolError         = errors.New("worker: tool invocation failed")
	ErrModelError        = errors.New("worker: model call failed")
)

// Runtime drives the shared tool-call loop for every tool-mode worker.
type Runtime struct{}

// NewRuntime returns a Runtime. It holds no state; a single instance may be
// shared across concurrent worker runs.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Run executes spec's model loop to completion or failure.
func (r *Runtime) Run(ctx context.Context, spec Spec) (*Result, error) {
	if spec.MaxTurns <= 0 {
		return nil, fmt.Errorf("worker %s: max turns must be positive", spec.Worker)
	}
	hooks := spec.Hooks
	if hooks == nil {
		hooks = telemetry.NoOp{}
	}
	hooks.WorkerStarted(spec.JobID, spec.Worker)
	start := time.Now()

	messages := append([]model.Message(nil), spec.Messages...)
	defs := spec.Tools.Definitions()

	for turn := 1; turn <= spec.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			hooks.WorkerFailed(spec.JobID, spec.Worker, err)
			return nil, err
		}

		req := &model.Request{Messages: messages, Tools: defs}
		resp, err := spec.Client.Complete(ctx, req)
		if err != nil {
			wrapped := fmt.Errorf("%w: %w", ErrModelError, err)
			hooks.WorkerFailed(spec.JobID, spec.Worker, wrapped)
			return nil, wrapped
		}

		if len(resp.ToolCalls) == 0 {
			return r.finish(ctx, spec, hooks, start, resp.Text, turn)
		}

		assistantParts := make([]model.Part, 0, len(resp.ToolCalls)+1)
		if resp.Text != "" {
			assistantParts = append(assistantParts, model.TextPart{Text: resp.Text})
		}
		for _, tc := range resp.ToolCalls {
			assistantParts = append(assistantParts, model.ToolUsePart{ID: tc.ID, Name: tc.Name, Input: tc.Payload})
		}
		messages = append(messages, model.Message{Role: model.ConversationRoleAssistant, Parts: assistantParts})

		resultParts := make([]model.Part, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			out, err := spec.Tools.Invoke(ctx, spec.JobID, spec.Worker, tc.Name, tc.Payload)
			if err != nil {
				wrapped := fmt.Errorf("%w: %w", ErrToolError, err)
				resultParts = append(resultParts, model.ToolResultPart{ToolUseID: tc.ID, Content: wrapped.Error(), IsError: true})
				continue
			}
			resultParts = append(resultParts, model.ToolResultPart{ToolUseID: tc.ID, Content: out})
		}
		messages = append(messages, model.Message{Role: model.ConversationRoleUser, Parts: resultParts})
	}

	err := fmt.Errorf("%w: worker %s exceeded %d turns", ErrMaxTurnsExceeded, spec.Worker, spec.MaxTurns)
	hooks.WorkerFailed(spec.JobID, spec.Worker, err)
	return nil, err
}

func (r *Runtime) finish(ctx context.Context, spec Spec, hooks telemetry.Hooks, start time.Time, text string, turns int) (*Result, error) {
	rec, err := spec.JobStore.GetJob(ctx, spec.JobID)
	if err != nil {
		wrapped := fmt.Errorf("worker %s: check slot commit: %w", spec.Worker, err)
		hooks.WorkerFailed(spec.JobID, spec.Worker, wrapped)
		return nil, wrapped
	}
	if !slotCommitted(rec, spec.Slot) {
		err := fmt.Errorf("%w: worker %s, slot %s", ErrSlotNotCommitted, spec.Worker, spec.Slot)
		hooks.WorkerFailed(spec.JobID, spec.Worker, err)
		return nil, err
	}
	hooks.WorkerCommitted(spec.JobID, spec.Worker, time.Since(start))
	return &Result{FinalText: text, Turns: turns}, nil
}

func slotCommitted(rec job.Record, slot job.Slot) bool {
	switch slot {
	case job.SlotReport:
		return rec.Report != nil && *rec.Report != ""
	case job.SlotCharts:
		return len(rec.Charts) > 0
	case job.SlotRetirement:
		return rec.Retirement != nil
	case job.SlotSummary:
		return rec.Summary != nil
	default:
		return false
	}
}
