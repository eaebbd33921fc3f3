// Package mongo hosts the MongoDB client used by the job store.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/xecure-ai/alex-sub000/internal/job"
)

const (
	defaultJobsCollection = "jobs"
	defaultOpTimeout      = 5 * time.Second
)

// Client exposes Mongo-backed operations for job records. It is the layer
// that owns the actual document shape and the single-document transactions
// job.Store requires; job.mongo.Store (in store.go) adapts it to the
// job.Store interface.
type Client interface {
	Ping(ctx context.Context) error

	InsertJob(ctx context.Context, doc jobDoc) error
	FindJob(ctx context.Context, jobID string) (jobDoc, error)
	UpdateStatus(ctx context.Context, jobID string, from []job.Status, to job.Status, errMsg string, now time.Time) (bool, error)
	MergeChartsSlot(ctx context.Context, jobID string, charts map[string]job.Chart, now time.Time) error
	SetSlot(ctx context.Context, jobID string, field string, value any, now time.Time) error
}

// Options configures the Mongo job client.
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

// New returns a Client backed by MongoDB, ensuring the jobs collection has a
// unique index on job_id before returning.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultJobsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "job_id", Value: 1}},
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

func (c *client) InsertJob(ctx context.Context, doc jobDoc) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.coll.InsertOne(ctx, doc)
	return err
}

func (c *client) FindJob(ctx context.Context, jobID string) (jobDoc, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc jobDoc
	err := c.coll.FindOne(ctx, bson.M{"job_id": jobID}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return jobDoc{}, job.ErrNotFound
	}
	if err != nil {
		return jobDoc{}, err
	}
	return doc, nil
}

// UpdateStatus performs a single findOneAndUpdate guarded by the job's
// current status being one of 'from', so a terminal job can never be
// reopened by a racing caller. Returns ok=false when the guard did not
// match (the job is already in a different/terminal status), which the
// store layer maps to job.ErrInvalidTransition.
func (c *client) UpdateStatus(ctx context.Context, jobID string, from []job.Status, to job.Status, errMsg string, now time.Time) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	fromVals := make([]string, len(from))
	for i, s := range from {
		fromVals[i] = string(s)
	}

	set := bson.M{
		"status":     string(to),
		"updated_at": now,
	}
	switch to {
	case job.StatusRunning:
		set["started_at"] = now
	case job.StatusCompleted, job.StatusFailed:
		set["completed_at"] = now
		if to == job.StatusFailed {
			set["error"] = errMsg
		}
	}

	filter := bson.M{"job_id": jobID, "status": bson.M{"$in": fromVals}}
	res := c.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set})
	if err := res.Err(); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetSlot replaces field wholesale via $set, stamping updated_at. The filter
// skips a document whose field already equals value, so repeating an
// identical write leaves the document, updated_at included, unchanged.
func (c *client) SetSlot(ctx context.Context, jobID string, field string, value any, now time.Time) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"job_id": jobID, field: bson.M{"$ne": value}}
	update := bson.M{"$set": bson.M{
		field:        value,
		"updated_at": now,
	}}
	_, err := c.coll.UpdateOne(ctx, filter, update)
	return err
}

// MergeChartsSlot merges the provided chart keys into the existing
// slots.charts map using dotted-path $set operators so concurrent merges
// from distinct keys never clobber one another at the document level.
func (c *client) MergeChartsSlot(ctx context.Context, jobID string, charts map[string]job.Chart, now time.Time) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if len(charts) == 0 {
		return nil
	}
	set := bson.M{"updated_at": now}
	changed := make(bson.A, 0, len(charts))
	for key, chart := range charts {
		set["slots.charts."+key] = chart
		changed = append(changed, bson.M{"slots.charts." + key: bson.M{"$ne": chart}})
	}
	// Match only when at least one key differs, so an identical merge leaves
	// updated_at untouched.
	filter := bson.M{"job_id": jobID, "$or": changed}
	_, err := c.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	return err
}
