// Package mongo wires the instrument.Store interface to the MongoDB client.
package mongo

import (
	"context"
	"errors"

	"github.com/xecure-ai/alex-sub000/internal/instrument"
)

// Store implements instrument.Store by delegating to the Mongo Client.
type Store struct {
	client Client
}

// NewStore builds an instrument.Store using the provided client.
func NewStore(client Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: client}, nil
}

// NewStoreFromMongo constructs the underlying client and wraps it.
func NewStoreFromMongo(opts Options) (*Store, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(c)
}

// Get implements instrument.Store.
func (s *Store) Get(ctx context.Context, symbol string) (instrument.Record, bool, error) {
	return s.client.FindOne(ctx, symbol)
}

// Upsert implements instrument.Store.
func (s *Store) Upsert(ctx context.Context, r instrument.Record) error {
	if err := instrument.Validate(r); err != nil {
		return err
	}
	return s.client.Upsert(ctx, r)
}

// ListMissing implements instrument.Store.
func (s *Store) ListMissing(ctx context.Context, symbols []string) ([]string, error) {
	found, err := s.client.FindSymbols(ctx, symbols)
	if err != nil {
		return nil, err
	}
	missing := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		r, ok := found[sym]
		if !ok || !r.HasAllAllocations() {
			missing = append(missing, sym)
		}
	}
	return missing, nil
}
