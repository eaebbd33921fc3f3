// Command consumer is the long-running worker process: it pulls job
// messages from the queue, drives the orchestrator for each one, and owns
// every collaborator the orchestrator needs (stores, model client, tool
// registry, observability sinks), per §1's process topology.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/xecure-ai/alex-sub000/internal/config"
	"github.com/xecure-ai/alex-sub000/internal/instrument"
	instrumentmongo "github.com/xecure-ai/alex-sub000/internal/instrument/mongo"
	"github.com/xecure-ai/alex-sub000/internal/job"
	jobmongo "github.com/xecure-ai/alex-sub000/internal/job/mongo"
	"github.com/xecure-ai/alex-sub000/internal/knowledge"
	knowledgehttp "github.com/xecure-ai/alex-sub000/internal/knowledge/http"
	"github.com/xecure-ai/alex-sub000/internal/model"
	"github.com/xecure-ai/alex-sub000/internal/model/anthropic"
	"github.com/xecure-ai/alex-sub000/internal/orchestrator"
	"github.com/xecure-ai/alex-sub000/internal/queue"
	sqsqueue "github.com/xecure-ai/alex-sub000/internal/queue/sqs"
	"github.com/xecure-ai/alex-sub000/internal/telemetry"
	telemetryotel "github.com/xecure-ai/alex-sub000/internal/telemetry/otel"
	telemetryzap "github.com/xecure-ai/alex-sub000/internal/telemetry/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("consumer: build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongodriver.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("consumer: connect mongo: %w", err)
	}
	defer func() { _ = mongoClient.Disconnect(ctx) }()

	jobStore, err := jobmongo.NewStoreFromMongo(jobmongo.Options{Client: mongoClient, Database: cfg.MongoDatabase})
	if err != nil {
		return fmt.Errorf("consumer: build job store: %w", err)
	}
	instrumentStore, err := instrumentmongo.NewStoreFromMongo(instrumentmongo.Options{Client: mongoClient, Database: cfg.MongoDatabase})
	if err != nil {
		return fmt.Errorf("consumer: build instrument store: %w", err)
	}

	var lookup knowledge.Lookup
	if cfg.KnowledgeBaseURL != "" {
		lookup, err = knowledgehttp.New(knowledgehttp.Options{BaseURL: cfg.KnowledgeBaseURL, APIKey: cfg.KnowledgeAPIKey})
		if err != nil {
			return fmt.Errorf("consumer: build knowledge client: %w", err)
		}
	} else {
		logger.Warn("knowledge base url not configured; narrative worker will run without supporting material")
	}

	anthropicClient, err := anthropic.NewFromAPIKey(cfg.AnthropicAPIKey, anthropic.Options{
		Model:     cfg.AnthropicModel,
		MaxTokens: cfg.AnthropicMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("consumer: build model client: %w", err)
	}

	hooks, shutdownTelemetry, err := buildHooks(logger)
	if err != nil {
		return fmt.Errorf("consumer: build telemetry hooks: %w", err)
	}
	defer shutdownTelemetry()

	// The raw provider client is passed in unwrapped: WithRetryTelemetry
	// takes a jobID/worker pair and so is applied per worker inside
	// Orchestrator.clientFor, with WithBackoff wrapped around it there so
	// the telemetry wrapper observes every retried attempt rather than
	// only the backoff loop's final result.
	var modelClient model.Client = anthropicClient

	orch := orchestrator.New(jobStore, instrumentStore, lookup, modelClient, hooks, orchestrator.Config{
		ClassifierParallelism: cfg.ClassifierParallelism,
		WorkerBudget:          cfg.WorkerBudget,
		JobBudget:             cfg.JobBudget,
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fmt.Errorf("consumer: load aws config: %w", err)
	}
	consumer, err := sqsqueue.New(sqs.NewFromConfig(awsCfg), cfg.QueueURL)
	if err != nil {
		return fmt.Errorf("consumer: build queue consumer: %w", err)
	}

	logger.Info("consumer starting", zap.Int("concurrency", cfg.ConsumerConcurrency), zap.String("queue_url", cfg.QueueURL))

	var wg sync.WaitGroup
	for i := 0; i < cfg.ConsumerConcurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			pollLoop(ctx, logger.With(zap.Int("slot", slot)), consumer, orch, cfg)
		}(i)
	}
	wg.Wait()
	logger.Info("consumer stopped")
	return nil
}

// pollLoop runs one Receive+orchestrator-invoke loop until ctx is canceled,
// per §4.8's "N concurrent loops per process" clause.
func pollLoop(ctx context.Context, logger *zap.Logger, consumer queue.Consumer, orch *orchestrator.Orchestrator, cfg config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Receive(ctx, cfg.QueueMaxMessages)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("receive failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range msgs {
			processOne(ctx, logger, consumer, orch, msg)
		}
	}
}

func processOne(ctx context.Context, logger *zap.Logger, consumer queue.Consumer, orch *orchestrator.Orchestrator, msg queue.Message) {
	if err := orch.Run(ctx, msg.JobID); err != nil && !errors.Is(err, job.ErrNotFound) {
		logger.Error("orchestrator run failed", zap.String("job_id", msg.JobID), zap.Error(err))
		// Do not Ack: let the queue's own visibility timeout and redrive
		// policy decide whether to retry or dead-letter this delivery.
		return
	}
	if err := consumer.Ack(ctx, msg); err != nil {
		logger.Warn("ack failed", zap.String("job_id", msg.JobID), zap.Error(err))
	}
}

func buildHooks(logger *zap.Logger) (telemetry.Hooks, func(), error) {
	zapHooks := telemetryzap.New(logger)
	meter := otel.GetMeterProvider().Meter("alex.consumer")
	otelHooks, err := telemetryotel.New(meter)
	if err != nil {
		return nil, nil, err
	}
	return telemetry.Multi{zapHooks, otelHooks}, func() {}, nil
}
