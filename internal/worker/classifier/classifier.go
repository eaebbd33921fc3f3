// Package classifier implements the pre-classification specialist. It runs
// in schema mode (no tools): given one instrument, the model is constrained
// to emit an allocation triple, which the orchestrator then upserts into the
// instrument store. Classifier runs do not touch internal/job at all.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xecure-ai/alex-sub000/internal/instrument"
	"github.com/xecure-ai/alex-sub000/internal/model"
)

const systemPrompt = `You are a financial instrument classifier. Given an instrument's symbol, ` +
	`display name, and kind, allocate it across three closed vocabularies. Each of the three ` +
	`allocation maps must contain only the listed keys and their values must sum to 100.`

var responseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"asset_class_allocation": allocationSchema(assetClasses),
		"region_allocation":      allocationSchema(regions),
		"sector_allocation":      allocationSchema(sectors),
	},
	"required":             []any{"asset_class_allocation", "region_allocation", "sector_allocation"},
	"additionalProperties": false,
}

var (
	assetClasses = []string{"equity", "fixed_income", "cash", "real_estate", "commodity", "alternative"}
	regions      = []string{"north_america", "europe", "asia_pacific", "emerging_markets", "global"}
	sectors      = []string{
		"technology", "financials", "healthcare", "energy", "industrials",
		"consumer", "utilities", "materials", "communication", "diversified",
	}
)

func allocationSchema(keys []string) map[string]any {
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = map[string]any{"type": "number"}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

type schemaResult struct {
	AssetClassAllocation map[string]float64 `json:"asset_class_allocation"`
	RegionAllocation     map[string]float64 `json:"region_allocation"`
	SectorAllocation     map[string]float64 `json:"sector_allocation"`
}

// Classify runs one schema-mode model call for the given instrument and
// returns a validated instrument.Record ready for Store.Upsert. It does not
// write to any store itself.
func Classify(ctx context.Context, client model.Client, symbol, displayName string, kind instrument.Kind) (instrument.Record, error) {
	prompt := fmt.Sprintf("Classify instrument %q (%q), kind=%s.", symbol, displayName, kind)
	req := &model.Request{
		Messages: []model.Message{
			{Role: model.ConversationRoleSystem, Parts: []model.Part{model.TextPart{Text: systemPrompt}}},
			{Role: model.ConversationRoleUser, Parts: []model.Part{model.TextPart{Text: prompt}}},
		},
		ResponseSchema: responseSchema,
		MaxTokens:      1024,
	}
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return instrument.Record{}, fmt.Errorf("classifier: %w", err)
	}

	var out schemaResult
	if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
		return instrument.Record{}, fmt.Errorf("classifier: decode schema response: %w", err)
	}

	rec := instrument.Record{
		Symbol:               symbol,
		DisplayName:          displayName,
		Kind:                 kind,
		AssetClassAllocation: toAssetClassMap(out.AssetClassAllocation),
		RegionAllocation:     toRegionMap(out.RegionAllocation),
		SectorAllocation:     toSectorMap(out.SectorAllocation),
	}
	if err := instrument.Validate(rec); err != nil {
		return instrument.Record{}, err
	}
	return rec, nil
}

func toAssetClassMap(m map[string]float64) map[instrument.AssetClass]float64 {
	out := make(map[instrument.AssetClass]float64, len(m))
	for k, v := range m {
		out[instrument.AssetClass(k)] = v
	}
	return out
}

func toRegionMap(m map[string]float64) map[instrument.Region]float64 {
	out := make(map[instrument.Region]float64, len(m))
	for k, v := range m {
		out[instrument.Region(k)] = v
	}
	return out
}

func toSectorMap(m map[string]float64) map[instrument.Sector]float64 {
	out := make(map[instrument.Sector]float64, len(m))
	for k, v := range m {
		out[instrument.Sector(k)] = v
	}
	return out
}
