// Package knowledge defines the contract the narrative worker uses to pull
// supporting material (fund facts, glossary entries, market commentary) into
// a job's report. The embedding/vector-search backend is opaque; this
// package only fixes the Go-level contract callers depend on.
package knowledge

import "context"

// Result is one retrieved knowledge snippet.
type Result struct {
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// Lookup searches a knowledge base for passages relevant to a query.
type Lookup interface {
	// Search returns up to k results ordered by descending relevance.
	// Implementations should return an empty slice, not an error, when the
	// query matches nothing.
	Search(ctx context.Context, queryText string, k int) ([]Result, error)
}
