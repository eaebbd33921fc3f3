package config

import "testing"

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
	fn()
}

func TestLoadAppliesDefaults(t *testing.T) {
	withEnv(t, map[string]string{
		"ALEX_ANTHROPIC_API_KEY": "sk-test",
		"ALEX_MONGO_URI":         "mongodb://localhost:27017",
		"ALEX_QUEUE_URL":         "https://sqs.example/q",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.AnthropicModel != defaultAnthropicModel {
			t.Errorf("AnthropicModel = %q, want default", cfg.AnthropicModel)
		}
		if cfg.ClassifierParallelism != defaultClassifierParallel {
			t.Errorf("ClassifierParallelism = %d, want %d", cfg.ClassifierParallelism, defaultClassifierParallel)
		}
		if cfg.WorkerBudget != defaultWorkerBudget {
			t.Errorf("WorkerBudget = %v, want %v", cfg.WorkerBudget, defaultWorkerBudget)
		}
		if cfg.JobBudget != defaultJobBudget {
			t.Errorf("JobBudget = %v, want %v", cfg.JobBudget, defaultJobBudget)
		}
	})
}

func TestLoadReturnsErrorForMissingRequiredVars(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error when required vars are unset")
	}
}

func TestLoadRejectsMalformedOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"ALEX_ANTHROPIC_API_KEY":      "sk-test",
		"ALEX_MONGO_URI":              "mongodb://localhost:27017",
		"ALEX_QUEUE_URL":              "https://sqs.example/q",
		"ALEX_CLASSIFIER_PARALLELISM": "not-a-number",
	}, func() {
		if _, err := Load(); err == nil {
			t.Fatal("Load() error = nil, want error for malformed integer override")
		}
	})
}

func TestLoadHonorsDurationOverride(t *testing.T) {
	withEnv(t, map[string]string{
		"ALEX_ANTHROPIC_API_KEY": "sk-test",
		"ALEX_MONGO_URI":         "mongodb://localhost:27017",
		"ALEX_QUEUE_URL":         "https://sqs.example/q",
		"ALEX_WORKER_BUDGET":     "45s",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.WorkerBudget.String() != "45s" {
			t.Errorf("WorkerBudget = %v, want 45s", cfg.WorkerBudget)
		}
	})
}
