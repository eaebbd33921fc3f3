package retirement

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// simPaths is the default number of simulated annual-return paths, per
// §4.6.4's "default 2,000."
const simPaths = 2000

// Assumptions parameterizes one Monte Carlo retirement projection. All
// fields are derived from the portfolio snapshot and any goals the job
// request carried; Project itself is pure, deterministic numeric code and
// never suspends (§5: CPU-bound work does not suspend).
type Assumptions struct {
	// StartingBalance is the investable balance the simulation starts from.
	// The orchestrator sums position quantities for it; cash balances are
	// not included.
	StartingBalance float64

	// AnnualContribution is added to the balance once per simulated year
	// before the year's return is applied; negative values model ongoing
	// withdrawals.
	AnnualContribution float64

	// AnnualWithdrawal is subtracted from the balance once per simulated
	// year, after the year's return is applied (the retirement-phase draw).
	AnnualWithdrawal float64

	// Years is the simulation horizon.
	Years int

	// ExpectedReturn and Volatility parameterize the lognormal annual
	// return distribution (e.g. 0.06 and 0.15 for a typical 60/40 blend).
	ExpectedReturn float64
	Volatility     float64

	// Paths overrides the default simulation path count; zero uses simPaths.
	Paths int
}

// Projection is the deterministic result of one Monte Carlo run, ready for
// injection into the retirement worker's prompt context and, on commit,
// the job record's retirement slot.
type Projection struct {
	SuccessProbability float64
	// P10, P50, P90 are percentile balance trajectories, one entry per
	// decade boundary (years 10, 20, 30, ...) up to Years.
	P10, P50, P90 []float64
	// YearsToDepletion is the median depletion year among the worst decile
	// of simulated paths. Zero when fewer than 10% of paths deplete within
	// the horizon.
	YearsToDepletion int
}

// Project runs simPaths (or a.Paths) independent simulated balance
// trajectories over a.Years years of lognormal annual returns and
// summarizes them. A zero StartingBalance with a non-negative
// AnnualContribution still produces a meaningful projection (the
// cash-only/empty-portfolio boundary case of §8).
func Project(a Assumptions) Projection {
	paths := a.Paths
	if paths <= 0 {
		paths = simPaths
	}
	years := a.Years
	if years <= 0 {
		years = 1
	}

	// Lognormal annual growth factor parameterized so that
	// E[growth factor] ≈ 1 + ExpectedReturn (first-order moment match);
	// this is a planning aid, not a pricing model, so the approximation is
	// deliberate.
	mean := 1 + a.ExpectedReturn
	sigma := a.Volatility
	if sigma <= 0 {
		sigma = 1e-6
	}
	dist := distuv.LogNormal{Mu: math.Log(mean) - sigma*sigma/2, Sigma: sigma}

	balances := make([][]float64, paths)
	successes := 0
	depletionYears := make([]int, 0, paths)

	for p := 0; p < paths; p++ {
		trajectory := make([]float64, years+1)
		balance := a.StartingBalance
		trajectory[0] = balance
		depleted := false
		depletedAt := 0
		for y := 1; y <= years; y++ {
			balance += a.AnnualContribution
			balance *= dist.Rand()
			balance -= a.AnnualWithdrawal
			if balance < 0 {
				balance = 0
			}
			if balance == 0 && !depleted {
				depleted = true
				depletedAt = y
			}
			trajectory[y] = balance
		}
		balances[p] = trajectory
		if !depleted {
			successes++
		} else {
			depletionYears = append(depletionYears, depletedAt)
		}
	}

	return Projection{
		SuccessProbability: float64(successes) / float64(paths) * 100,
		P10:                percentileSeries(balances, years, 10),
		P50:                percentileSeries(balances, years, 50),
		P90:                percentileSeries(balances, years, 90),
		YearsToDepletion:   worstDecileDepletion(depletionYears, paths),
	}
}

// percentileSeries returns the pth percentile balance at each decade
// boundary (year 10, 20, ... up to years), or a single final-year entry
// when the horizon is shorter than a decade.
func percentileSeries(balances [][]float64, years, p int) []float64 {
	var out []float64
	for y := 10; y <= years; y += 10 {
		out = append(out, percentileAt(balances, y, p))
	}
	if len(out) == 0 && years > 0 {
		out = append(out, percentileAt(balances, years, p))
	}
	return out
}

func percentileAt(balances [][]float64, year, p int) float64 {
	vals := make([]float64, len(balances))
	for i, b := range balances {
		vals[i] = b[year]
	}
	sort.Float64s(vals)
	idx := p * (len(vals) - 1) / 100
	if idx < 0 {
		idx = 0
	}
	if idx >= len(vals) {
		idx = len(vals) - 1
	}
	return vals[idx]
}

// worstDecileDepletion reports the median depletion year among the worst
// 10% of paths, or zero if fewer than 10% of paths depleted at all.
func worstDecileDepletion(depletionYears []int, totalPaths int) int {
	threshold := totalPaths / 10
	if threshold == 0 || len(depletionYears) < threshold {
		return 0
	}
	sort.Ints(depletionYears)
	worst := depletionYears[:threshold]
	return worst[len(worst)/2]
}
