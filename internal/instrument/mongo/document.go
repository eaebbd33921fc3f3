package mongo

import (
	"time"

	"github.com/xecure-ai/alex-sub000/internal/instrument"
)

type instrumentDoc struct {
	Symbol      string `bson:"symbol"`
	DisplayName string `bson:"display_name"`
	Kind        string `bson:"kind"`

	AssetClassAllocation map[string]float64 `bson:"asset_class_allocation,omitempty"`
	RegionAllocation     map[string]float64 `bson:"region_allocation,omitempty"`
	SectorAllocation     map[string]float64 `bson:"sector_allocation,omitempty"`

	UpdatedAt time.Time `bson:"updated_at"`
}

func fromRecord(r instrument.Record) instrumentDoc {
	doc := instrumentDoc{
		Symbol:      r.Symbol,
		DisplayName: r.DisplayName,
		Kind:        string(r.Kind),
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.AssetClassAllocation) > 0 {
		doc.AssetClassAllocation = make(map[string]float64, len(r.AssetClassAllocation))
		for k, v := range r.AssetClassAllocation {
			doc.AssetClassAllocation[string(k)] = v
		}
	}
	if len(r.RegionAllocation) > 0 {
		doc.RegionAllocation = make(map[string]float64, len(r.RegionAllocation))
		for k, v := range r.RegionAllocation {
			doc.RegionAllocation[string(k)] = v
		}
	}
	if len(r.SectorAllocation) > 0 {
		doc.SectorAllocation = make(map[string]float64, len(r.SectorAllocation))
		for k, v := range r.SectorAllocation {
			doc.SectorAllocation[string(k)] = v
		}
	}
	return doc
}

func (d instrumentDoc) toRecord() instrument.Record {
	r := instrument.Record{
		Symbol:      d.Symbol,
		DisplayName: d.DisplayName,
		Kind:        instrument.Kind(d.Kind),
		UpdatedAt:   d.UpdatedAt,
	}
	if len(d.AssetClassAllocation) > 0 {
		r.AssetClassAllocation = make(map[instrument.AssetClass]float64, len(d.AssetClassAllocation))
		for k, v := range d.AssetClassAllocation {
			r.AssetClassAllocation[instrument.AssetClass(k)] = v
		}
	}
	if len(d.RegionAllocation) > 0 {
		r.RegionAllocation = make(map[instrument.Region]float64, len(d.RegionAllocation))
		for k, v := range d.RegionAllocation {
			r.RegionAllocation[instrument.Region(k)] = v
		}
	}
	if len(d.SectorAllocation) > 0 {
		r.SectorAllocation = make(map[instrument.Sector]float64, len(d.SectorAllocation))
		for k, v := range d.SectorAllocation {
			r.SectorAllocation[instrument.Sector(k)] = v
		}
	}
	return r
}
