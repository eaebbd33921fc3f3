// Package retirement builds the retirement-projector specialist: a
// tool-mode worker whose one tool, commit_retirement, writes the
// pre-computed Monte Carlo projection (plus the model's narrative framing
// of it) to the retirement slot. The simulation itself runs outside the
// model loop, per §4.6.4.
package retirement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xecure-ai/alex-sub000/internal/job"
	"github.com/xecure-ai/alex-sub000/internal/model"
	"github.com/xecure-ai/alex-sub000/internal/telemetry"
	"github.com/xecure-ai/alex-sub000/internal/toolregistry"
	"github.com/xecure-ai/alex-sub000/internal/worker"
)

const maxTurns = 8

const systemPrompt = `You are a retirement planning analyst. You are given a pre-computed Monte ` +
	`Carlo projection (success probability, percentile balance bands, years to depletion in the ` +
	`worst decile). Write a short markdown explanation of what it means for this client, then call ` +
	`commit_retirement exactly once with that markdown and the projection JSON you were given.`

// Run builds the retirement worker's tool set, seeds the prompt with the
// already-computed projection, and drives it through the shared worker
// runtime.
func Run(ctx context.Context, rt *worker.Runtime, client model.Client, store job.Store, hooks telemetry.Hooks, jobID, portfolioContext string, projection Projection) (*worker.Result, error) {
	registry := toolregistry.New(hooks)
	if err := registry.Register(commitRetirementTool(store, jobID, projection)); err != nil {
		return nil, err
	}

	projectionJSON, err := json.Marshal(projection)
	if err != nil {
		return nil, fmt.Errorf("retirement: encode projection: %w", err)
	}

	messages := []model.Message{
		{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: systemPrompt}}},
		{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: portfolioContext}}},
		{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{
			Text: fmt.Sprintf("Pre-computed Monte Carlo projection:\n%s", projectionJSON),
		}}},
	}

	return rt.Run(ctx, worker.Spec{
		JobID:    jobID,
		Worker:   "retirement",
		Messages: messages,
		Tools:    registry,
		MaxTurns: maxTurns,
		Slot:     job.SlotRetirement,
		JobStore: store,
		Client:   client,
		Hooks:    hooks,
	})
}

// commitRetirementTool's projection argument is the one Project already
// computed outside the model loop; the committed record's numbers always
// come from it, never from the model's echoed projection_json, so a
// reformatted or mistranscribed echo can never corrupt the deterministic
// simulation result it is meant to only narrate.
func commitRetirementTool(store job.Store, jobID string, projection Projection) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "commit_retirement",
		Description: "Commits the final retirement narrative and the structured Monte Carlo projection to the job's retirement slot.",
		Parameters: []toolregistry.ParamSpec{
			{Name: "markdown", Kind: toolregistry.ParamKindString, Required: true},
			{Name: "projection_json", Kind: toolregistry.ParamKindString, Required: true, Description: "the projection JSON you were given, echoed back verbatim"},
		},
		Handler: func(ctx context.Context, payload json.RawMessage) (any, error) {
			var in struct {
				Markdown       string `json:"markdown"`
				ProjectionJSON string `json:"projection_json"`
			}
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, err
			}
			if in.Markdown == "" {
				return nil, fmt.Errorf("commit_retirement: markdown must not be empty")
			}
			if len(in.ProjectionJSON) == 0 {
				return nil, fmt.Errorf("commit_retirement: projection_json must not be empty")
			}
			rec := job.Retirement{
				Markdown:     in.Markdown,
				SuccessProb:  projection.SuccessProbability,
				P10:          projection.P10,
				P50:          projection.P50,
				P90:          projection.P90,
				YearsDeplete: projection.YearsToDepletion,
			}
			if err := store.SetSlot(ctx, jobID, job.SlotRetirement, rec); err != nil {
				return nil, err
			}
			return "retirement projection committed", nil
		},
	}
}
