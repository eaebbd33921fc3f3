// Package mongo hosts the MongoDB client used by the instrument store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/xecure-ai/alex-sub000/internal/instrument"
)

const (
	defaultCollection = "instruments"
	defaultOpTimeout  = 5 * time.Second
)

// Client exposes Mongo-backed operations for instrument records.
type Client interface {
	Ping(ctx context.Context) error
	FindOne(ctx context.Context, symbol string) (instrument.Record, bool, error)
	FindSymbols(ctx context.Context, symbols []string) (map[string]instrument.Record, error)
	Upsert(ctx context.Context, r instrument.Record) error
}

// Options configures the Mongo instrument client.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New returns a Client backed by MongoDB, ensuring a unique index on symbol.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "symbol", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, err
	}

	return &client{mongo: opts.Client, coll: coll, timeout: timeout}, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) FindOne(ctx context.Context, symbol string) (instrument.Record, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc instrumentDoc
	err := c.coll.FindOne(ctx, bson.M{"symbol": symbol}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return instrument.Record{}, false, nil
	}
	if err != nil {
		return instrument.Record{}, false, err
	}
	return doc.toRecord(), true, nil
}

func (c *client) FindSymbols(ctx context.Context, symbols []string) (map[string]instrument.Record, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	cur, err := c.coll.Find(ctx, bson.M{"symbol": bson.M{"$in": symbols}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]instrument.Record, len(symbols))
	for cur.Next(ctx) {
		var doc instrumentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out[doc.Symbol] = doc.toRecord()
	}
	return out, cur.Err()
}

func (c *client) Upsert(ctx context.Context, r instrument.Record) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	doc := fromRecord(r)
	filter := bson.M{"symbol": r.Symbol}
	update := bson.M{"$set": doc}
	_, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}
