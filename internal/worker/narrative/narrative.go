// Package narrative builds the narrative-writer specialist: a tool-mode
// worker with fetch_knowledge and commit_report tools that produces the
// report slot's markdown analysis.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xecure-ai/alex-sub000/internal/job"
	"github.com/xecure-ai/alex-sub000/internal/knowledge"
	"github.com/xecure-ai/alex-sub000/internal/model"
	"github.com/xecure-ai/alex-sub000/internal/telemetry"
	"github.com/xecure-ai/alex-sub000/internal/toolregistry"
	"github.com/xecure-ai/alex-sub000/internal/worker"
)

const maxTurns = 10

const systemPrompt = `You are a financial analyst writing a narrative summary of a client's portfolio. ` +
	`Use fetch_knowledge to pull supporting material when useful; it may return no results, in which ` +
	`case proceed without it. Call commit_report exactly once with the complete markdown analysis.`

// Run builds the narrative worker's tool set and drives it through the
// shared worker runtime.
func Run(ctx context.Context, rt *worker.Runtime, client model.Client, store job.Store, lookup knowledge.Lookup, hooks telemetry.Hooks, jobID, portfolioContext string) (*worker.Result, error) {
	registry := toolregistry.New(hooks)
	if err := registry.Register(fetchKnowledgeTool(lookup)); err != nil {
		return nil, err
	}
	if err := registry.Register(commitReportTool(store, jobID)); err != nil {
		return nil, err
	}

	messages := []model.Message{
		{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: systemPrompt}}},
		{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: portfolioContext}}},
	}

	return rt.Run(ctx, worker.Spec{
		JobID:    jobID,
		Worker:   "narrative",
		Messages: messages,
		Tools:    registry,
		MaxTurns: maxTurns,
		Slot:     job.SlotReport,
		JobStore: store,
		Client:   client,
		Hooks:    hooks,
	})
}

func fetchKnowledgeTool(lookup knowledge.Lookup) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "fetch_knowledge",
		Description: "Searches supporting material relevant to a query. Returns no results, not an error, when nothing matches.",
		Parameters: []toolregistry.ParamSpec{
			{Name: "query", Kind: toolregistry.ParamKindString, Required: true, Description: "search text"},
			{Name: "k", Kind: toolregistry.ParamKindNumber, Required: true, Description: "max results to return"},
		},
		Handler: func(ctx context.Context, payload json.RawMessage) (any, error) {
			var in struct {
				Query string `json:"query"`
				K     int    `json:"k"`
			}
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, err
			}
			if lookup == nil {
				return []knowledge.Result{}, nil
			}
			results, err := lookup.Search(ctx, in.Query, in.K)
			if err != nil {
				// A knowledge lookup failure is "no knowledge available", not
				// a tool error: the worker proceeds without it.
				return []knowledge.Result{}, nil
			}
			return results, nil
		},
	}
}

func commitReportTool(store job.Store, jobID string) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "commit_report",
		Description: "Commits the final markdown narrative analysis to the job's report slot.",
		Parameters: []toolregistry.ParamSpec{
			{Name: "markdown", Kind: toolregistry.ParamKindString, Required: true},
		},
		Handler: func(ctx context.Context, payload json.RawMessage) (any, error) {
			var in struct {
				Markdown string `json:"markdown"`
			}
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, err
			}
			if in.Markdown == "" {
				return nil, fmt.Errorf("commit_report: markdown must not be empty")
			}
			if err := store.SetSlot(ctx, jobID, job.SlotReport, in.Markdown); err != nil {
				return nil, err
			}
			return "report committed", nil
		},
	}
}
