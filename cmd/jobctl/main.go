// Command jobctl is a local development and smoke-testing stand-in for the
// out-of-scope HTTP ingress/status edge (§6): it submits a job directly
// against the job store and queue, and polls job status. It is never a
// substitute for the real edge.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xecure-ai/alex-sub000/internal/config"
	"github.com/xecure-ai/alex-sub000/internal/job"
	jobmongo "github.com/xecure-ai/alex-sub000/internal/job/mongo"
	sqsqueue "github.com/xecure-ai/alex-sub000/internal/queue/sqs"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "status":
		err = runStatus(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jobctl create -user <ref> -kind <portfolio_analysis|retirement_only> -request <file.json>")
	fmt.Fprintln(os.Stderr, "       jobctl status -job <job-id> [-watch]")
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	userRef := fs.String("user", "", "user reference the job is created for")
	kind := fs.String("kind", string(job.KindPortfolioAnalysis), "job kind")
	requestPath := fs.String("request", "", "path to a JSON file holding {accounts, goals}, per job.RequestPayload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userRef == "" || *requestPath == "" {
		return fmt.Errorf("create: -user and -request are required")
	}

	raw, err := os.ReadFile(*requestPath)
	if err != nil {
		return fmt.Errorf("create: read request file: %w", err)
	}
	var payload job.RequestPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("create: decode request file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	jobStore, closeStore, err := dialJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	jobID, err := jobStore.CreateJob(ctx, *userRef, job.Kind(*kind), payload)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	producer, err := dialQueueProducer(ctx, cfg)
	if err != nil {
		return err
	}
	if err := producer.Send(ctx, jobID); err != nil {
		return fmt.Errorf("create: enqueue job message: %w", err)
	}

	fmt.Println(jobID)
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jobID := fs.String("job", "", "job id to inspect")
	watch := fs.Bool("watch", false, "poll until the job reaches a terminal state")
	interval := fs.Duration("interval", 2*time.Second, "poll interval when -watch is set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" {
		return fmt.Errorf("status: -job is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobStore, closeStore, err := dialJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	for {
		rec, err := jobStore.GetJob(ctx, *jobID)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		if err := printRecord(rec); err != nil {
			return err
		}
		if !*watch || rec.Status.Terminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(*interval):
		}
	}
}

func printRecord(rec job.Record) error {
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("status: encode record: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func dialJobStore(ctx context.Context, cfg config.Config) (job.Store, func(), error) {
	mongoClient, err := mongodriver.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	store, err := jobmongo.NewStoreFromMongo(jobmongo.Options{Client: mongoClient, Database: cfg.MongoDatabase})
	if err != nil {
		return nil, nil, fmt.Errorf("build job store: %w", err)
	}
	return store, func() { _ = mongoClient.Disconnect(ctx) }, nil
}

func dialQueueProducer(ctx context.Context, cfg config.Config) (*sqsqueue.Consumer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	producer, err := sqsqueue.New(sqs.NewFromConfig(awsCfg), cfg.QueueURL)
	if err != nil {
		return nil, fmt.Errorf("build queue client: %w", err)
	}
	return producer, nil
}
