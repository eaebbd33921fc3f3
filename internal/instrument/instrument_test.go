package instrument

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func validRecord() Record {
	return Record{
		Symbol:      "VTI",
		DisplayName: "Vanguard Total Stock Market ETF",
		Kind:        KindETF,
		AssetClassAllocation: map[AssetClass]float64{
			AssetClassEquity: 100,
		},
		RegionAllocation: map[Region]float64{
			RegionNorthAmerica: 60,
			RegionGlobal:       40,
		},
		SectorAllocation: map[Sector]float64{
			SectorTechnology: 30,
			SectorFinancials: 20,
			SectorDiversified: 50,
		},
		UpdatedAt: time.Now().UTC(),
	}
}

func TestValidateAcceptsWellFormedRecord(t *testing.T) {
	if err := Validate(validRecord()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsMissingSymbol(t *testing.T) {
	r := validRecord()
	r.Symbol = ""
	err := Validate(r)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() = %v, want ErrValidation", err)
	}
}

func TestValidateAllowsAbsentAllocationMaps(t *testing.T) {
	r := Record{Symbol: "CASH"}
	if err := Validate(r); err != nil {
		t.Fatalf("Validate() = %v, want nil for a not-yet-classified record", err)
	}
	if r.HasAllAllocations() {
		t.Fatal("HasAllAllocations() = true, want false")
	}
}

func TestValidateRejectsSumOutsideTolerance(t *testing.T) {
	r := validRecord()
	r.AssetClassAllocation = map[AssetClass]float64{AssetClassEquity: 99}
	err := Validate(r)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() = %v, want ErrValidation", err)
	}
}

func TestValidateAcceptsSumWithinTolerance(t *testing.T) {
	r := validRecord()
	r.AssetClassAllocation = map[AssetClass]float64{AssetClassEquity: 100.009}
	if err := Validate(r); err != nil {
		t.Fatalf("Validate() = %v, want nil (within tolerance)", err)
	}
}

func TestValidateRejectsUnknownVocabularyKey(t *testing.T) {
	r := validRecord()
	r.SectorAllocation = map[Sector]float64{Sector("crypto"): 100}
	err := Validate(r)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() = %v, want ErrValidation", err)
	}
}

func TestHasAllAllocationsRequiresAllThreeMaps(t *testing.T) {
	r := validRecord()
	r.SectorAllocation = nil
	if r.HasAllAllocations() {
		t.Fatal("HasAllAllocations() = true, want false when one map is empty")
	}
}

// allocationCase is a generated allocation over a fixed closed vocabulary,
// with weights normalized to sum to exactly 100.
type allocationCase struct {
	weights []float64
}

func (c allocationCase) assetClassAllocation() map[AssetClass]float64 {
	keys := []AssetClass{
		AssetClassEquity, AssetClassFixedIncome, AssetClassCash,
		AssetClassRealEstate, AssetClassCommodity, AssetClassAlternative,
	}
	return normalizeAssetClass(keys, c.weights)
}

func normalizeAssetClass(keys []AssetClass, weights []float64) map[AssetClass]float64 {
	n := len(keys)
	var total float64
	picked := make([]float64, n)
	for i := range picked {
		picked[i] = weights[i%len(weights)] + 1
		total += picked[i]
	}
	out := make(map[AssetClass]float64, n)
	for i, k := range keys {
		out[k] = picked[i] / total * 100
	}
	return out
}

// genAllocationCase produces slices of positive weights; prop.ForAll checks
// that any normalized allocation over the closed asset-class vocabulary
// satisfies Validate's sum-to-100 invariant.
func genAllocationCase() gopter.Gen {
	return gen.SliceOfN(6, gen.Float64Range(0, 1000)).Map(func(w []float64) allocationCase {
		return allocationCase{weights: w}
	})
}

func TestNormalizedAssetClassAllocationAlwaysSumsToHundredProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("any normalized allocation over the closed asset-class vocabulary validates", prop.ForAll(
		func(c allocationCase) bool {
			r := Record{
				Symbol:               "PROP",
				AssetClassAllocation: c.assetClassAllocation(),
			}
			return Validate(r) == nil
		},
		genAllocationCase(),
	))

	properties.TestingRun(t)
}

func TestUnknownAssetClassNeverValidatesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("an allocation containing a non-vocabulary key never validates", prop.ForAll(
		func(bogus string) bool {
			if validAssetClasses[AssetClass(bogus)] {
				return true // generated a real vocabulary entry by chance, skip
			}
			r := Record{
				Symbol: "PROP",
				AssetClassAllocation: map[AssetClass]float64{
					AssetClass(bogus): 100,
				},
			}
			return errors.Is(Validate(r), ErrValidation)
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
