// Package job defines the durable job record at the heart of the analysis
// pipeline and the transactional store that owns it. A job moves through a
// small monotonic state machine (pending -> running -> completed|failed)
// while independent workers write to disjoint payload slots of the same
// record without coordinating with one another.
package job

import (
	"errors"
	"time"
)

// Status is the job lifecycle state.
type Status string

const (
	// StatusPending is the initial state after ingress, before the
	// orchestrator has claimed the job.
	StatusPending Status = "pending"

	// StatusRunning is set once the orchestrator claims the job and begins
	// hydrating the portfolio and fanning out workers.
	StatusRunning Status = "running"

	// StatusCompleted is a terminal state. Reached even when some
	// specialists failed, as long as at least one succeeded.
	StatusCompleted Status = "completed"

	// StatusFailed is a terminal state, reached when all specialists failed
	// or the orchestrator could not finalize the job.
	StatusFailed Status = "failed"
)

// Terminal reports whether s is one of the two terminal states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Slot names one of the payload fields a specialist worker owns. Each slot
// has exactly one owning worker; no worker ever writes a slot it does not
// own (§4.10 of the design).
type Slot string

const (
	// SlotReport holds the narrative worker's markdown analysis.
	SlotReport Slot = "report"

	// SlotCharts holds the chart builder's chart-key -> descriptor mapping.
	// Unlike the other slots, writes to this slot are merges, not full
	// replacements.
	SlotCharts Slot = "charts"

	// SlotRetirement holds the retirement projector's structured projection.
	SlotRetirement Slot = "retirement"

	// SlotSummary holds the orchestrator's own per-worker status summary,
	// written strictly after all specialists have settled.
	SlotSummary Slot = "summary"
)

// Kind enumerates the supported analysis request kinds.
type Kind string

const (
	// KindPortfolioAnalysis runs the full narrative/chart/retirement fan-out.
	KindPortfolioAnalysis Kind = "portfolio_analysis"

	// KindRetirementOnly is accepted and recorded on the job. The
	// orchestrator does not branch on Kind, so a retirement_only job runs
	// the same narrative/chart/retirement fan-out as portfolio_analysis.
	KindRetirementOnly Kind = "retirement_only"
)

// RequestPayload is the structured input snapshot captured at ingress.
// Accounts is constructed explicitly by callers; CreateJob never relies on a
// nil-slice zero value standing in for "no accounts" (the mutable-default
// pitfall the design notes call out).
type RequestPayload struct {
	Accounts []Account `json:"accounts"`
	Goals    []Goal    `json:"goals,omitempty"`
}

// Account is one investment or cash account in a request snapshot.
type Account struct {
	Name          string     `json:"name"`
	CashBalance   float64    `json:"cash_balance"`
	CashRateAPY   float64    `json:"cash_rate_apy"`
	Positions     []Position `json:"positions"`
}

// Position is a holding of a given instrument within an account.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}

// Goal is a free-form planning goal supplied by the requesting user (e.g. a
// target retirement age or a target withdrawal rate). The orchestrator and
// workers treat goal content as opaque prompt context.
type Goal struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// WorkerStatus records one specialist's outcome for the summary slot.
type WorkerStatus struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Summary is the orchestrator-produced content of SlotSummary.
type Summary struct {
	Workers []WorkerStatus `json:"workers"`
}

// Record is one job row. Fields for slots that have not yet been written are
// nil; GetJob never synthesizes placeholder content for an empty slot.
type Record struct {
	ID      string `json:"id"`
	UserRef string `json:"user_ref"`
	Kind    Kind   `json:"kind"`
	Status  Status `json:"status"`

	Request RequestPayload `json:"request"`

	Report     *string          `json:"report,omitempty"`
	Charts     map[string]Chart `json:"charts,omitempty"`
	Retirement *Retirement      `json:"retirement,omitempty"`
	Summary    *Summary         `json:"summary,omitempty"`

	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Chart is the persisted shape of one chart the chart builder committed.
// ChartType is a closed enum validated by the chart worker's tool, not by
// the store (the store treats chart content as opaque once validated).
type Chart struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ChartType   string      `json:"chart_type"`
	Data        []ChartItem `json:"data"`
}

// ChartItem is one wedge/bar of a chart.
type ChartItem struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
}

// Retirement is the persisted shape of the retirement projector's output.
type Retirement struct {
	Markdown      string  `json:"markdown"`
	SuccessProb   float64 `json:"success_probability"`
	P10           []float64 `json:"p10_balances"`
	P50           []float64 `json:"p50_balances"`
	P90           []float64 `json:"p90_balances"`
	YearsDeplete  int     `json:"years_to_depletion,omitempty"`
}

// Sentinel errors surfaced by Store implementations. Callers classify
// failures with errors.Is; implementations must wrap these rather than
// returning ad hoc strings.
var (
	// ErrNotFound indicates no job exists with the given id.
	ErrNotFound = errors.New("job: not found")

	// ErrInvalidTransition indicates an attempt to move a job out of a
	// terminal state, or to set status without following the
	// pending->running->(completed|failed) order.
	ErrInvalidTransition = errors.New("job: invalid status transition")

	// ErrBackendUnavailable indicates a transient store failure; callers may
	// retry.
	ErrBackendUnavailable = errors.New("job: backend unavailable")
)

// CanTransition reports whether moving from 'from' to 'to' is a legal step
// in the job status state machine (§3 invariants: monotonic, strict subset
// of pending->running, running->completed, running->failed).
func CanTransition(from, to Status) bool {
	switch {
	case from == StatusPending && to == StatusRunning:
		return true
	case from == StatusRunning && to == StatusCompleted:
		return true
	case from == StatusRunning && to == StatusFailed:
		return true
	default:
		return false
	}
}
