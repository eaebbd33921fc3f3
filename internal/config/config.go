// Package config loads the process-wide configuration cmd/consumer and
// cmd/jobctl need from the environment, with fixed fallbacks matching the
// defaults named throughout the component design (classifier parallelism
// of 4, a 180s worker budget, a 300s job budget, and so on).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is every knob a process reads once at startup. Nothing here is
// reloaded; a config change requires a process restart.
type Config struct {
	// AnthropicAPIKey authenticates internal/model/anthropic.
	AnthropicAPIKey string
	// AnthropicModel is the Claude model identifier used for every request.
	AnthropicModel string
	// AnthropicMaxTokens caps completion length.
	AnthropicMaxTokens int

	// MongoURI and MongoDatabase locate the job and instrument stores.
	MongoURI      string
	MongoDatabase string

	// KnowledgeBaseURL is the remote search endpoint for internal/knowledge/http.
	KnowledgeBaseURL string
	// KnowledgeAPIKey, when set, is sent as a bearer token.
	KnowledgeAPIKey string

	// QueueURL is the SQS queue cmd/consumer polls.
	QueueURL string
	// QueueVisibilityTimeout is loaded from the environment but is not read
	// by cmd/consumer or cmd/jobctl (SQS's is configured on the queue itself).
	QueueVisibilityTimeout time.Duration
	// QueueMaxReceiveCount is loaded from the environment but is not read by
	// cmd/consumer or cmd/jobctl (SQS redrive is configured on the queue).
	QueueMaxReceiveCount int
	// QueueMaxMessages bounds a single Receive call.
	QueueMaxMessages int

	// ConsumerConcurrency is how many concurrent Receive+orchestrator loops
	// cmd/consumer runs.
	ConsumerConcurrency int

	// ClassifierParallelism bounds concurrent classification calls during
	// pre-processing.
	ClassifierParallelism int
	// WorkerBudget bounds a single specialist worker's wall-clock time.
	WorkerBudget time.Duration
	// JobBudget bounds an entire orchestrator pass.
	JobBudget time.Duration
	// WorkerMaxTurns is loaded from the environment but is not read by any
	// worker: narrative, chart and retirement each use their own fixed turn
	// cap, and the classifier is schema-mode and has none.
	WorkerMaxTurns int

	// AWSRegion, when non-empty, is the region the SQS client uses; it takes
	// precedence over AWS_REGION/AWS_DEFAULT_REGION. When empty, the SDK's
	// own default chain picks the region.
	AWSRegion string
}

const (
	defaultAnthropicModel      = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens  = 4096
	defaultMongoDatabase       = "alex"
	defaultQueueVisibility     = 30 * time.Second
	defaultQueueMaxReceives    = 3
	defaultQueueMaxMessages    = 10
	defaultConsumerConcurrency = 1
	defaultClassifierParallel = 4
	defaultWorkerBudget        = 180 * time.Second
	defaultJobBudget           = 300 * time.Second
	defaultWorkerMaxTurns      = 10
)

// Load reads Config from the environment. Required variables missing a
// fallback return an error naming every one that is unset, so a
// misconfigured deploy fails fast with a single readable message.
func Load() (Config, error) {
	cfg := Config{
		AnthropicAPIKey:        os.Getenv("ALEX_ANTHROPIC_API_KEY"),
		AnthropicModel:         getenvDefault("ALEX_ANTHROPIC_MODEL", defaultAnthropicModel),
		MongoURI:               os.Getenv("ALEX_MONGO_URI"),
		MongoDatabase:          getenvDefault("ALEX_MONGO_DATABASE", defaultMongoDatabase),
		KnowledgeBaseURL:       os.Getenv("ALEX_KNOWLEDGE_BASE_URL"),
		KnowledgeAPIKey:        os.Getenv("ALEX_KNOWLEDGE_API_KEY"),
		QueueURL:               os.Getenv("ALEX_QUEUE_URL"),
		AWSRegion:              os.Getenv("ALEX_AWS_REGION"),
		QueueVisibilityTimeout: defaultQueueVisibility,
		QueueMaxReceiveCount:   defaultQueueMaxReceives,
		QueueMaxMessages:       defaultQueueMaxMessages,
		ConsumerConcurrency:    defaultConsumerConcurrency,
		ClassifierParallelism:  defaultClassifierParallel,
		WorkerBudget:           defaultWorkerBudget,
		JobBudget:              defaultJobBudget,
		WorkerMaxTurns:         defaultWorkerMaxTurns,
		AnthropicMaxTokens:     defaultAnthropicMaxTokens,
	}

	var err error
	if cfg.AnthropicMaxTokens, err = getenvIntDefault("ALEX_ANTHROPIC_MAX_TOKENS", defaultAnthropicMaxTokens); err != nil {
		return Config{}, err
	}
	if cfg.QueueVisibilityTimeout, err = getenvDurationDefault("ALEX_QUEUE_VISIBILITY_TIMEOUT", defaultQueueVisibility); err != nil {
		return Config{}, err
	}
	if cfg.QueueMaxReceiveCount, err = getenvIntDefault("ALEX_QUEUE_MAX_RECEIVE_COUNT", defaultQueueMaxReceives); err != nil {
		return Config{}, err
	}
	if cfg.QueueMaxMessages, err = getenvIntDefault("ALEX_QUEUE_MAX_MESSAGES", defaultQueueMaxMessages); err != nil {
		return Config{}, err
	}
	if cfg.ConsumerConcurrency, err = getenvIntDefault("ALEX_CONSUMER_CONCURRENCY", defaultConsumerConcurrency); err != nil {
		return Config{}, err
	}
	if cfg.ClassifierParallelism, err = getenvIntDefault("ALEX_CLASSIFIER_PARALLELISM", defaultClassifierParallel); err != nil {
		return Config{}, err
	}
	if cfg.WorkerBudget, err = getenvDurationDefault("ALEX_WORKER_BUDGET", defaultWorkerBudget); err != nil {
		return Config{}, err
	}
	if cfg.JobBudget, err = getenvDurationDefault("ALEX_JOB_BUDGET", defaultJobBudget); err != nil {
		return Config{}, err
	}
	if cfg.WorkerMaxTurns, err = getenvIntDefault("ALEX_WORKER_MAX_TURNS", defaultWorkerMaxTurns); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.AnthropicAPIKey == "" {
		missing = append(missing, "ALEX_ANTHROPIC_API_KEY")
	}
	if c.MongoURI == "" {
		missing = append(missing, "ALEX_MONGO_URI")
	}
	if c.QueueURL == "" {
		missing = append(missing, "ALEX_QUEUE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %v", missing)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, errors.Join(errBadInt, err))
	}
	return n, nil
}

func getenvDurationDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, errors.Join(errBadDuration, err))
	}
	return d, nil
}

var errBadInt = errors.New("expected an integer")
var errBadDuration = errors.New("expected a Go duration string (e.g. \"30s\")")
