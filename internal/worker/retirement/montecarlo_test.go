package retirement

import "testing"

func TestProjectSuccessProbabilityIsWithinPercentRange(t *testing.T) {
	p := Project(Assumptions{
		StartingBalance:    500000,
		AnnualContribution: 10000,
		AnnualWithdrawal:   0,
		Years:              30,
		ExpectedReturn:     0.06,
		Volatility:         0.12,
		Paths:              200,
	})
	if p.SuccessProbability < 0 || p.SuccessProbability > 100 {
		t.Fatalf("SuccessProbability = %v, want in [0, 100]", p.SuccessProbability)
	}
	if len(p.P10) == 0 || len(p.P50) == 0 || len(p.P90) == 0 {
		t.Fatalf("expected non-empty percentile series, got p10=%v p50=%v p90=%v", p.P10, p.P50, p.P90)
	}
}

func TestProjectPercentilesAreOrdered(t *testing.T) {
	p := Project(Assumptions{
		StartingBalance: 1_000_000,
		Years:           20,
		ExpectedReturn:  0.07,
		Volatility:      0.15,
		Paths:           300,
	})
	for i := range p.P50 {
		if p.P10[i] > p.P50[i] || p.P50[i] > p.P90[i] {
			t.Fatalf("percentiles out of order at index %d: p10=%v p50=%v p90=%v", i, p.P10[i], p.P50[i], p.P90[i])
		}
	}
}

func TestProjectZeroBalanceCashOnlyStillProjects(t *testing.T) {
	// The empty-portfolio boundary case (§8): zero investable assets, no
	// contributions, a withdrawal schedule. Every path depletes at year 1.
	p := Project(Assumptions{
		StartingBalance:  0,
		AnnualWithdrawal: 1000,
		Years:            10,
		ExpectedReturn:   0.05,
		Volatility:       0.1,
		Paths:            100,
	})
	if p.SuccessProbability != 0 {
		t.Fatalf("SuccessProbability = %v, want 0 (zero balance, nonzero withdrawal)", p.SuccessProbability)
	}
	if p.YearsToDepletion != 1 {
		t.Fatalf("YearsToDepletion = %d, want 1", p.YearsToDepletion)
	}
}

func TestProjectDefaultsPathsWhenUnset(t *testing.T) {
	p := Project(Assumptions{StartingBalance: 100000, Years: 5, ExpectedReturn: 0.05, Volatility: 0.1})
	if len(p.P50) == 0 {
		t.Fatal("expected a non-empty projection with default path count")
	}
}
