// Package inmem provides a static knowledge.Lookup fake for unit tests.
package inmem

import (
	"context"

	"github.com/xecure-ai/alex-sub000/internal/knowledge"
)

// Lookup returns a fixed set of results regardless of query, truncated to k.
// A nil or empty Results slice simulates "no knowledge available".
type Lookup struct {
	Results []knowledge.Result
	Err     error
}

// Search implements knowledge.Lookup.
func (l *Lookup) Search(_ context.Context, _ string, k int) ([]knowledge.Result, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	if k <= 0 || k >= len(l.Results) {
		return l.Results, nil
	}
	return l.Results[:k], nil
}
