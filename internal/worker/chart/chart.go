// Package chart builds the chart-builder specialist: a tool-mode worker
// with a single create_chart tool that validates, normalizes, and commits
// one chart at a time into the charts slot's key-by-key merge.
package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xecure-ai/alex-sub000/internal/job"
	"github.com/xecure-ai/alex-sub000/internal/model"
	"github.com/xecure-ai/alex-sub000/internal/telemetry"
	"github.com/xecure-ai/alex-sub000/internal/toolregistry"
	"github.com/xecure-ai/alex-sub000/internal/worker"
)

const (
	maxTurns    = 10
	minCharts   = 3
	maxMergeAttempts = 3
)

// ErrTooFewCharts indicates the worker terminated having committed fewer
// than minCharts charts.
var ErrTooFewCharts = fmt.Errorf("chart: fewer than %d charts committed", minCharts)

var validChartTypes = map[string]bool{"pie": true, "bar": true, "donut": true, "horizontalBar": true}

var hexColor = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)

const systemPrompt = `You are a financial portfolio chart builder. Call create_chart once per chart, ` +
	`producing between 4 and 6 charts before finishing (title, description, chart_type, parallel ` +
	`names/values/colors lists of equal length). Colors are 6-digit hex strings without a leading '#'.`

// Run builds the chart worker's tool set and drives it through the shared
// worker runtime, then enforces the minimum-charts-committed invariant.
func Run(ctx context.Context, rt *worker.Runtime, client model.Client, store job.Store, hooks telemetry.Hooks, jobID, portfolioContext string) (*worker.Result, error) {
	registry := toolregistry.New(hooks)
	if err := registry.Register(createChartTool(store, jobID)); err != nil {
		return nil, err
	}

	messages := []model.Message{
		{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: systemPrompt}}},
		{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: portfolioContext}}},
	}

	result, err := rt.Run(ctx, worker.Spec{
		JobID:    jobID,
		Worker:   "chart",
		Messages: messages,
		Tools:    registry,
		MaxTurns: maxTurns,
		Slot:     job.SlotCharts,
		JobStore: store,
		Client:   client,
		Hooks:    hooks,
	})
	if err != nil {
		return nil, err
	}

	rec, err := store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}
	if len(rec.Charts) < minCharts {
		return nil, fmt.Errorf("%w: committed %d", ErrTooFewCharts, len(rec.Charts))
	}
	return result, nil
}

type createChartInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ChartType   string    `json:"chart_type"`
	Names       []string  `json:"names"`
	Values      []float64 `json:"values"`
	Colors      []string  `json:"colors"`
}

func createChartTool(store job.Store, jobID string) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "create_chart",
		Description: "Creates one chart and merges it into the charts slot, keyed by a normalized form of its title.",
		Parameters: []toolregistry.ParamSpec{
			{Name: "title", Kind: toolregistry.ParamKindString, Required: true},
			{Name: "description", Kind: toolregistry.ParamKindString, Required: true},
			{Name: "chart_type", Kind: toolregistry.ParamKindEnum, Required: true, EnumValues: []string{"pie", "bar", "donut", "horizontalBar"}},
			{Name: "names", Kind: toolregistry.ParamKindStringList, Required: true},
			{Name: "values", Kind: toolregistry.ParamKindNumberList, Required: true},
			{Name: "colors", Kind: toolregistry.ParamKindStringList, Required: true},
		},
		Handler: func(ctx context.Context, payload json.RawMessage) (any, error) {
			var in createChartInput
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, err
			}
			descriptor, key, err := buildDescriptor(in)
			if err != nil {
				return nil, err
			}
			if err := mergeChart(ctx, store, jobID, key, descriptor); err != nil {
				return nil, err
			}
			return fmt.Sprintf("chart %q committed", key), nil
		},
	}
}

func buildDescriptor(in createChartInput) (job.Chart, string, error) {
	if !validChartTypes[in.ChartType] {
		return job.Chart{}, "", fmt.Errorf("create_chart: unknown chart_type %q", in.ChartType)
	}
	n := len(in.Names)
	if n == 0 || n != len(in.Values) || n != len(in.Colors) {
		return job.Chart{}, "", fmt.Errorf("create_chart: names, values, and colors must be equal-length and non-empty")
	}
	var total float64
	for _, v := range in.Values {
		if v < 0 {
			return job.Chart{}, "", fmt.Errorf("create_chart: values must be non-negative")
		}
		total += v
	}
	if total <= 0 {
		return job.Chart{}, "", fmt.Errorf("create_chart: values must sum to a positive total")
	}
	items := make([]job.ChartItem, n)
	for i := range in.Names {
		if !hexColor.MatchString(in.Colors[i]) {
			return job.Chart{}, "", fmt.Errorf("create_chart: color %q is not a 6-digit hex value", in.Colors[i])
		}
		items[i] = job.ChartItem{
			Name:       in.Names[i],
			Value:      in.Values[i],
			Percentage: in.Values[i] / total * 100,
			Color:      in.Colors[i],
		}
	}
	descriptor := job.Chart{
		Title:       in.Title,
		Description: in.Description,
		ChartType:   in.ChartType,
		Data:        items,
	}
	return descriptor, normalizeKey(in.Title), nil
}

func normalizeKey(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	prevDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('_')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// mergeChart merges one chart into the charts slot under key. It reads no
// version token and does no read-modify-write of its own: job.Store.SetSlot
// merges charts atomically under its own lock (or, for Mongo, a single
// dotted-path $set). A failed SetSlot is retried, whatever the error, up to
// maxMergeAttempts times.
func mergeChart(ctx context.Context, store job.Store, jobID, key string, descriptor job.Chart) error {
	var lastErr error
	for attempt := 1; attempt <= maxMergeAttempts; attempt++ {
		err := store.SetSlot(ctx, jobID, job.SlotCharts, map[string]job.Chart{key: descriptor})
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("create_chart: merge chart %q: %w", key, lastErr)
}
