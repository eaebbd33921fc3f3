// Package instrument holds reference data for tradable financial
// instruments, including the three closed-vocabulary allocation maps the
// classifier worker fills in for symbols the store has not seen before.
package instrument

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind enumerates the supported instrument types.
type Kind string

const (
	KindETF         Kind = "etf"
	KindStock       Kind = "stock"
	KindMutualFund  Kind = "mutual_fund"
	KindBond        Kind = "bond"
	KindCash        Kind = "cash"
)

// AssetClass is one entry in the closed asset-class vocabulary.
type AssetClass string

// Region is one entry in the closed region vocabulary.
type Region string

// Sector is one entry in the closed sector vocabulary.
type Sector string

// Closed vocabularies. An allocation map may only use these keys; Validate
// rejects any other key with ErrValidation.
const (
	AssetClassEquity      AssetClass = "equity"
	AssetClassFixedIncome AssetClass = "fixed_income"
	AssetClassCash        AssetClass = "cash"
	AssetClassRealEstate  AssetClass = "real_estate"
	AssetClassCommodity   AssetClass = "commodity"
	AssetClassAlternative AssetClass = "alternative"
)

const (
	RegionNorthAmerica    Region = "north_america"
	RegionEurope          Region = "europe"
	RegionAsiaPacific     Region = "asia_pacific"
	RegionEmergingMarkets Region = "emerging_markets"
	RegionGlobal          Region = "global"
)

const (
	SectorTechnology    Sector = "technology"
	SectorFinancials    Sector = "financials"
	SectorHealthcare    Sector = "healthcare"
	SectorEnergy        Sector = "energy"
	SectorIndustrials   Sector = "industrials"
	SectorConsumer      Sector = "consumer"
	SectorUtilities     Sector = "utilities"
	SectorMaterials     Sector = "materials"
	SectorCommunication Sector = "communication"
	SectorDiversified   Sector = "diversified"
)

var (
	validAssetClasses = map[AssetClass]bool{
		AssetClassEquity: true, AssetClassFixedIncome: true, AssetClassCash: true,
		AssetClassRealEstate: true, AssetClassCommodity: true, AssetClassAlternative: true,
	}
	validRegions = map[Region]bool{
		RegionNorthAmerica: true, RegionEurope: true, RegionAsiaPacific: true,
		RegionEmergingMarkets: true, RegionGlobal: true,
	}
	validSectors = map[Sector]bool{
		SectorTechnology: true, SectorFinancials: true, SectorHealthcare: true,
		SectorEnergy: true, SectorIndustrials: true, SectorConsumer: true,
		SectorUtilities: true, SectorMaterials: true, SectorCommunication: true,
		SectorDiversified: true,
	}
)

// sumTolerance is the allowed deviation from 100 for an allocation map, per
// the spec's "100 ± 0.01" invariant.
const sumTolerance = 0.01

// Record is one instrument row.
type Record struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
	Kind        Kind   `json:"kind"`

	AssetClassAllocation map[AssetClass]float64 `json:"asset_class_allocation,omitempty"`
	RegionAllocation     map[Region]float64     `json:"region_allocation,omitempty"`
	SectorAllocation     map[Sector]float64     `json:"sector_allocation,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// HasAllAllocations reports whether every one of the three allocation maps
// is present and non-empty. A record missing any of them is "missing" per
// the instrument store's ListMissing contract.
func (r Record) HasAllAllocations() bool {
	return len(r.AssetClassAllocation) > 0 && len(r.RegionAllocation) > 0 && len(r.SectorAllocation) > 0
}

// ErrValidation indicates an instrument write failed the closed-vocabulary
// or sum-to-100 invariant.
var ErrValidation = errors.New("instrument: validation error")

// Validate checks r's three allocation maps against the closed vocabularies
// and the sum-to-100±0.01 invariant. It is invoked by every Store.Upsert
// implementation so the invariant holds regardless of backend.
func Validate(r Record) error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrValidation)
	}
	if err := validateSum("asset_class_allocation", len(r.AssetClassAllocation), sumFloats(r.AssetClassAllocation)); err != nil {
		return err
	}
	if err := validateSum("region_allocation", len(r.RegionAllocation), sumFloats(r.RegionAllocation)); err != nil {
		return err
	}
	if err := validateSum("sector_allocation", len(r.SectorAllocation), sumFloats(r.SectorAllocation)); err != nil {
		return err
	}
	for k := range r.AssetClassAllocation {
		if !validAssetClasses[k] {
			return fmt.Errorf("%w: unknown asset class %q", ErrValidation, k)
		}
	}
	for k := range r.RegionAllocation {
		if !validRegions[k] {
			return fmt.Errorf("%w: unknown region %q", ErrValidation, k)
		}
	}
	for k := range r.SectorAllocation {
		if !validSectors[k] {
			return fmt.Errorf("%w: unknown sector %q", ErrValidation, k)
		}
	}
	return nil
}

func validateSum(field string, n int, sum float64) error {
	if n == 0 {
		// Allocation maps may be entirely absent on a not-yet-classified
		// record; absence is handled by ListMissing, not rejected here.
		return nil
	}
	if math.Abs(sum-100) > sumTolerance {
		return fmt.Errorf("%w: %s sums to %.4f, want 100±%.2f", ErrValidation, field, sum, sumTolerance)
	}
	return nil
}

func sumFloats[K comparable](m map[K]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}
