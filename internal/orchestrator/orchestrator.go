// Package orchestrator drives one job through the full pipeline of §4.7:
// load, hydrate, pre-classify unknown instruments, fan out the three
// specialist workers in parallel, join, and finalize. It is the one
// component that touches every other package in this module.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/xecure-ai/alex-sub000/internal/instrument"
	"github.com/xecure-ai/alex-sub000/internal/job"
	"github.com/xecure-ai/alex-sub000/internal/knowledge"
	"github.com/xecure-ai/alex-sub000/internal/model"
	"github.com/xecure-ai/alex-sub000/internal/model/middleware"
	"github.com/xecure-ai/alex-sub000/internal/telemetry"
	"github.com/xecure-ai/alex-sub000/internal/worker"
	"github.com/xecure-ai/alex-sub000/internal/worker/chart"
	"github.com/xecure-ai/alex-sub000/internal/worker/classifier"
	"github.com/xecure-ai/alex-sub000/internal/worker/narrative"
	"github.com/xecure-ai/alex-sub000/internal/worker/retirement"
)

const (
	defaultClassifierParallelism = 4
	defaultWorkerBudget          = 180 * time.Second
	defaultJobBudget             = 300 * time.Second
)

// Config parameterizes one Orchestrator. Zero values fall back to the
// defaults named in §5 (classifier parallelism 4, worker budget 180s, job
// budget 300s).
type Config struct {
	ClassifierParallelism int
	WorkerBudget          time.Duration
	JobBudget             time.Duration
}

// Orchestrator wires together every collaborator named in §1/§6: the job
// and instrument stores, the raw model client (clientFor wraps it with
// backoff and retry telemetry for each worker run), the knowledge lookup,
// and the observability hooks.
type Orchestrator struct {
	JobStore        job.Store
	InstrumentStore instrument.Store
	Knowledge       knowledge.Lookup
	Client          model.Client
	Hooks           telemetry.Hooks
	Runtime         *worker.Runtime

	cfg Config
}

// New builds an Orchestrator. hooks may be nil (treated as telemetry.NoOp).
func New(jobStore job.Store, instrumentStore instrument.Store, lookup knowledge.Lookup, client model.Client, hooks telemetry.Hooks, cfg Config) *Orchestrator {
	if hooks == nil {
		hooks = telemetry.NoOp{}
	}
	if cfg.ClassifierParallelism <= 0 {
		cfg.ClassifierParallelism = defaultClassifierParallelism
	}
	if cfg.WorkerBudget <= 0 {
		cfg.WorkerBudget = defaultWorkerBudget
	}
	if cfg.JobBudget <= 0 {
		cfg.JobBudget = defaultJobBudget
	}
	return &Orchestrator{
		JobStore:        jobStore,
		InstrumentStore: instrumentStore,
		Knowledge:       lookup,
		Client:          client,
		Hooks:           hooks,
		Runtime:         worker.NewRuntime(),
		cfg:             cfg,
	}
}

// ErrAllSpecialistsFailed is the aggregated error recorded on the job when
// narrative, chart, and retirement all fail (§7 "Fatal (orchestrator-level)").
var ErrAllSpecialistsFailed = errors.New("orchestrator: all specialists failed")

// Run implements the seven-step state machine of §4.7 for jobID. A nil
// return means the job reached a terminal state (completed or failed) or
// was correctly ignored as a duplicate delivery; callers (the queue
// consumer) ack the message in both cases. A non-nil return means the
// orchestrator itself could not make progress (e.g. the job store is
// unavailable) and the message should not be acknowledged so redelivery can
// retry.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.JobBudget)
	defer cancel()

	// Step 1: load + the pending-only guard (the lease of §5).
	rec, err := o.JobStore.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("orchestrator: load job %s: %w", jobID, err)
	}
	if rec.Status != job.StatusPending {
		o.Hooks.DuplicateDeliveryIgnored(jobID)
		return nil
	}
	if err := o.JobStore.UpdateStatus(ctx, jobID, job.StatusRunning, ""); err != nil {
		if errors.Is(err, job.ErrInvalidTransition) {
			// Lost the race to another delivery of the same job.
			o.Hooks.DuplicateDeliveryIgnored(jobID)
			return nil
		}
		return fmt.Errorf("orchestrator: claim job %s: %w", jobID, err)
	}
	o.Hooks.JobStarted(jobID, rec.UserRef, string(rec.Kind))
	start := time.Now()

	// Step 2: hydrate. The portfolio snapshot is derived entirely from the
	// request payload already on the record (§3: "not persisted
	// separately"); there is no separate portfolio fetch.
	portfolio := rec.Request

	// Step 3: pre-classify.
	o.preClassify(ctx, jobID, portfolio)

	// Rehydrate instrument data (now including anything just classified)
	// for the prompt context injected into every specialist.
	instruments := o.loadInstruments(ctx, uniqueSymbols(portfolio))
	promptContext := formatPortfolioContext(rec, portfolio, instruments)

	// Step 4 + 5: fan-out and join.
	statuses := o.runSpecialists(ctx, jobID, rec, promptContext)

	// Step 6: finalize.
	return o.finalize(ctx, jobID, start, statuses)
}

// preClassify runs the classifier worker for every symbol the instrument
// store reports missing, bounded at o.cfg.ClassifierParallelism concurrent
// runs. Individual classifier failures are recorded and never abort the
// pass; the orchestrator proceeds with whatever allocations it has.
func (o *Orchestrator) preClassify(ctx context.Context, jobID string, portfolio job.RequestPayload) {
	symbols := uniqueSymbols(portfolio)
	if len(symbols) == 0 {
		return
	}
	missing, err := o.InstrumentStore.ListMissing(ctx, symbols)
	if err != nil || len(missing) == 0 {
		return
	}

	o.Hooks.ClassificationStarted(jobID, len(missing))
	start := time.Now()

	sem := semaphore.NewWeighted(int64(o.cfg.ClassifierParallelism))
	var g errgroup.Group
	var classified atomic.Int64
	for _, symbol := range missing {
		symbol := symbol
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if o.classifyOne(ctx, jobID, symbol) {
				classified.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	o.Hooks.ClassificationCompleted(jobID, int(classified.Load()), time.Since(start))
}

func (o *Orchestrator) classifyOne(ctx context.Context, jobID, symbol string) bool {
	existing, found, _ := o.InstrumentStore.Get(ctx, symbol)
	displayName := symbol
	kind := instrument.KindStock
	if found {
		if existing.DisplayName != "" {
			displayName = existing.DisplayName
		}
		if existing.Kind != "" {
			kind = existing.Kind
		}
	}

	rec, err := classifier.Classify(ctx, o.Client, symbol, displayName, kind)
	if err != nil {
		o.Hooks.ClassificationFailed(jobID, symbol, err)
		return false
	}
	if err := o.InstrumentStore.Upsert(ctx, rec); err != nil {
		o.Hooks.ClassificationFailed(jobID, symbol, err)
		return false
	}
	return true
}

func (o *Orchestrator) loadInstruments(ctx context.Context, symbols []string) map[string]instrument.Record {
	out := make(map[string]instrument.Record, len(symbols))
	for _, s := range symbols {
		if rec, ok, err := o.InstrumentStore.Get(ctx, s); err == nil && ok {
			out[s] = rec
		}
	}
	return out
}

// runSpecialists launches the narrative, chart, and retirement workers
// concurrently and waits for all three to settle (§4.7 step 5). They run
// over a plain errgroup.Group (not errgroup.WithContext) because one
// worker's failure must never cancel its peers — only slot-disjointness,
// not success, is required of them.
func (o *Orchestrator) runSpecialists(ctx context.Context, jobID string, rec job.Record, promptContext string) []job.WorkerStatus {
	workerCtx, cancel := context.WithTimeout(ctx, o.cfg.WorkerBudget)
	defer cancel()

	statuses := make([]job.WorkerStatus, 3)
	var g errgroup.Group

	g.Go(func() error {
		statuses[0] = o.runOne(workerCtx, "narrative", func(ctx context.Context) error {
			_, err := narrative.Run(ctx, o.Runtime, o.clientFor(jobID, "narrative"), o.JobStore, o.Knowledge, o.Hooks, jobID, promptContext)
			return err
		})
		return nil
	})
	g.Go(func() error {
		statuses[1] = o.runOne(workerCtx, "chart", func(ctx context.Context) error {
			_, err := chart.Run(ctx, o.Runtime, o.clientFor(jobID, "chart"), o.JobStore, o.Hooks, jobID, promptContext)
			return err
		})
		return nil
	})
	g.Go(func() error {
		assumptions := deriveAssumptions(rec)
		projection := retirement.Project(assumptions)
		statuses[2] = o.runOne(workerCtx, "retirement", func(ctx context.Context) error {
			_, err := retirement.Run(ctx, o.Runtime, o.clientFor(jobID, "retirement"), o.JobStore, o.Hooks, jobID, promptContext, projection)
			return err
		})
		return nil
	})

	_ = g.Wait()
	return statuses
}

// clientFor scopes o.Client with the model_retry telemetry wrapper for one
// worker's run, so a retried call is reported against the worker and job
// that triggered it rather than a blank label. WithBackoff must sit outside
// WithRetryTelemetry: the backoff loop retries by calling its wrapped
// client repeatedly, so the telemetry wrapper has to be on the inside to
// observe each individual attempt rather than only the loop's final
// outcome.
func (o *Orchestrator) clientFor(jobID, worker string) model.Client {
	return middleware.WithBackoff(middleware.WithRetryTelemetry(o.Client, o.Hooks, jobID, worker))
}

func (o *Orchestrator) runOne(ctx context.Context, name string, fn func(context.Context) error) job.WorkerStatus {
	start := time.Now()
	err := fn(ctx)
	status := job.WorkerStatus{Name: name, OK: err == nil, Duration: time.Since(start)}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

func (o *Orchestrator) finalize(ctx context.Context, jobID string, jobStart time.Time, statuses []job.WorkerStatus) error {
	summary := job.Summary{Workers: statuses}
	if err := o.JobStore.SetSlot(ctx, jobID, job.SlotSummary, summary); err != nil {
		return fmt.Errorf("orchestrator: write summary for job %s: %w", jobID, err)
	}

	allFailed := true
	for _, s := range statuses {
		if s.OK {
			allFailed = false
			break
		}
	}

	status := job.StatusCompleted
	errMsg := ""
	if allFailed {
		status = job.StatusFailed
		errMsg = ErrAllSpecialistsFailed.Error()
	}
	if err := o.JobStore.UpdateStatus(ctx, jobID, status, errMsg); err != nil {
		return fmt.Errorf("orchestrator: finalize job %s: %w", jobID, err)
	}
	o.Hooks.JobFinalized(jobID, string(status), time.Since(jobStart))
	return nil
}

func uniqueSymbols(portfolio job.RequestPayload) []string {
	seen := make(map[string]bool)
	var out []string
	for _, acct := range portfolio.Accounts {
		for _, pos := range acct.Positions {
			if !seen[pos.Symbol] {
				seen[pos.Symbol] = true
				out = append(out, pos.Symbol)
			}
		}
	}
	return out
}

// deriveAssumptions builds the retirement Monte Carlo's inputs from the
// portfolio snapshot. There is no price feed in this core's data model
// (§3: a Position carries only a symbol and a quantity), so the simulated
// starting balance is the sum of position quantities only; idle cash is not
// itself an investable, growth-bearing asset for this projection. A
// cash-only portfolio with no positions therefore starts the simulation
// with zero investable assets, exercising §8's boundary behavior directly.
func deriveAssumptions(rec job.Record) retirement.Assumptions {
	var balance float64
	for _, acct := range rec.Request.Accounts {
		for _, pos := range acct.Positions {
			balance += pos.Quantity
		}
	}

	a := retirement.Assumptions{
		StartingBalance: balance,
		Years:           30,
		ExpectedReturn:  0.06,
		Volatility:      0.12,
	}
	for _, g := range rec.Request.Goals {
		switch g.Kind {
		case "annual_contribution":
			if v, err := strconv.ParseFloat(g.Value, 64); err == nil {
				a.AnnualContribution = v
			}
		case "annual_withdrawal":
			if v, err := strconv.ParseFloat(g.Value, 64); err == nil {
				a.AnnualWithdrawal = v
			}
		case "retirement_years":
			if v, err := strconv.Atoi(g.Value); err == nil && v > 0 {
				a.Years = v
			}
		}
	}
	return a
}

// formatPortfolioContext renders the portfolio snapshot, including any
// instrument allocations resolved so far, into the plain-text prompt
// context every specialist worker's first user message carries (§4.6: "the
// portfolio snapshot injected into the prompt context, not fetched through
// tools").
func formatPortfolioContext(rec job.Record, portfolio job.RequestPayload, instruments map[string]instrument.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client portfolio for job %s (kind=%s):\n", rec.ID, rec.Kind)
	for _, acct := range portfolio.Accounts {
		fmt.Fprintf(&b, "- Account %q: cash=%.2f (apy=%.2f%%)\n", acct.Name, acct.CashBalance, acct.CashRateAPY*100)
		for _, pos := range acct.Positions {
			line := fmt.Sprintf("  - %s x%.4f", pos.Symbol, pos.Quantity)
			if inst, ok := instruments[pos.Symbol]; ok {
				line += fmt.Sprintf(" (%s, %s)", inst.DisplayName, inst.Kind)
			}
			b.WriteString(line + "\n")
		}
	}
	for _, g := range portfolio.Goals {
		fmt.Fprintf(&b, "Goal: %s = %s\n", g.Kind, g.Value)
	}
	return b.String()
}
