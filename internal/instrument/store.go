package instrument

import "context"

// Store is the reference-data store for financial instruments.
type Store interface {
	// Get returns the instrument for symbol, or (Record{}, false) if absent.
	Get(ctx context.Context, symbol string) (Record, bool, error)

	// Upsert validates r against the closed vocabularies and sum-to-100
	// invariant before writing. Returns ErrValidation on an invalid record;
	// never writes a partially-valid record.
	Upsert(ctx context.Context, r Record) error

	// ListMissing returns the subset of symbols that are absent from the
	// store or lack at least one of the three allocation maps.
	ListMissing(ctx context.Context, symbols []string) ([]string, error)
}
