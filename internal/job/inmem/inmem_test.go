package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xecure-ai/alex-sub000/internal/job"
)

func TestCreateAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, err := store.CreateJob(ctx, "user-1", job.KindPortfolioAnalysis, job.RequestPayload{
		Accounts: []job.Account{{Name: "401k", CashBalance: 5000}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	r, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	require.Equal(t, job.StatusPending, r.Status)
	require.Equal(t, "user-1", r.UserRef)
	require.Nil(t, r.Report)
}

func TestGetJobNotFound(t *testing.T) {
	store := New()
	_, err := store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, job.ErrNotFound)
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	store := New()
	ctx := context.Background()
	id, err := store.CreateJob(ctx, "user-1", job.KindPortfolioAnalysis, job.RequestPayload{})
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(ctx, id, job.StatusRunning, ""))
	require.NoError(t, store.UpdateStatus(ctx, id, job.StatusCompleted, ""))

	err = store.UpdateStatus(ctx, id, job.StatusRunning, "")
	require.ErrorIs(t, err, job.ErrInvalidTransition, "terminal jobs must never be reopened")

	r, _ := store.GetJob(ctx, id)
	require.NotNil(t, r.StartedAt)
	require.NotNil(t, r.CompletedAt)
}

func TestSetSlotReportIsFullReplacement(t *testing.T) {
	store := New()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "user-1", job.KindPortfolioAnalysis, job.RequestPayload{})

	require.NoError(t, store.SetSlot(ctx, id, job.SlotReport, "first draft"))
	require.NoError(t, store.SetSlot(ctx, id, job.SlotReport, "final draft"))

	r, _ := store.GetJob(ctx, id)
	require.Equal(t, "final draft", *r.Report)
}

func TestSetSlotChartsMergesByKey(t *testing.T) {
	store := New()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "user-1", job.KindPortfolioAnalysis, job.RequestPayload{})

	require.NoError(t, store.SetSlot(ctx, id, job.SlotCharts, map[string]job.Chart{
		"asset_class": {Title: "Asset class", ChartType: "pie"},
	}))
	require.NoError(t, store.SetSlot(ctx, id, job.SlotCharts, map[string]job.Chart{
		"region": {Title: "Region", ChartType: "donut"},
	}))

	r, _ := store.GetJob(ctx, id)
	require.Len(t, r.Charts, 2)
	require.Equal(t, "pie", r.Charts["asset_class"].ChartType)
	require.Equal(t, "donut", r.Charts["region"].ChartType)
}

func TestSetSlotIsIdempotentForIdenticalValue(t *testing.T) {
	store := New()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "user-1", job.KindPortfolioAnalysis, job.RequestPayload{})

	require.NoError(t, store.SetSlot(ctx, id, job.SlotReport, "same"))
	before, _ := store.GetJob(ctx, id)

	require.NoError(t, store.SetSlot(ctx, id, job.SlotReport, "same"))
	after, _ := store.GetJob(ctx, id)

	require.Equal(t, before.UpdatedAt, after.UpdatedAt, "repeating an identical SetSlot must not bump UpdatedAt")
}

func TestConcurrentSlotWritesDoNotInterfere(t *testing.T) {
	store := New()
	ctx := context.Background()
	id, _ := store.CreateJob(ctx, "user-1", job.KindPortfolioAnalysis, job.RequestPayload{})

	done := make(chan struct{}, 3)
	go func() { _ = store.SetSlot(ctx, id, job.SlotReport, "narrative"); done <- struct{}{} }()
	go func() {
		_ = store.SetSlot(ctx, id, job.SlotCharts, map[string]job.Chart{"a": {Title: "A"}})
		done <- struct{}{}
	}()
	go func() {
		_ = store.SetSlot(ctx, id, job.SlotRetirement, job.Retirement{SuccessProb: 0.9})
		done <- struct{}{}
	}()
	for i := 0; i < 3; i++ {
		<-done
	}

	r, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "narrative", *r.Report)
	require.Contains(t, r.Charts, "a")
	require.NotNil(t, r.Retirement)
	require.Equal(t, 0.9, r.Retirement.SuccessProb)
}
