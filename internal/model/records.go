// Package model defines the tabular records consumed by the assembly
// pipeline and the unified features it produces.
package model

import "github.com/suqdata/market-cli/internal/region"

// TimeSeriesRecord is one region/month observation from the price panel.
// Price fields are pointers: absent means "no observation", not zero.
type TimeSeriesRecord struct {
	Region            string   `json:"region"`
	Month             string   `json:"month"`
	Commodity         string   `json:"commodity,omitempty"`
	AvgUSDPrice       *float64 `json:"avgUsdPrice,omitempty"`
	Price             *float64 `json:"price,omitempty"`
	ConflictIntensity *float64 `json:"conflict_intensity,omitempty"`
}

// EffectivePrice returns avgUsdPrice when present, else price.
func (r TimeSeriesRecord) EffectivePrice() *float64 {
	if r.AvgUSDPrice != nil {
		return r.AvgUSDPrice
	}
	return r.Price
}

// FlowRecord is one market-pair flow observation.
type FlowRecord struct {
	Source               string   `json:"source"`
	Target               string   `json:"target"`
	TotalFlow            float64  `json:"total_flow"`
	FlowWeight           *float64 `json:"flow_weight,omitempty"`
	AvgPriceDifferential float64  `json:"avg_price_differential"`
	FlowCount            int      `json:"flow_count"`
	Period               string   `json:"period,omitempty"`
}

// Weight returns flow_weight when present, else total_flow.
func (r FlowRecord) Weight() float64 {
	if r.FlowWeight != nil {
		return *r.FlowWeight
	}
	return r.TotalFlow
}

// ClusterRecord groups connected markets around a main market.
type ClusterRecord struct {
	ClusterID        int      `json:"cluster_id"`
	MainMarket       string   `json:"main_market"`
	ConnectedMarkets []string `json:"connected_markets"`
	MarketCount      int      `json:"market_count"`
}

// Markets returns the main market followed by connected markets,
// deduplicated in order.
func (c ClusterRecord) Markets() []string {
	seen := make(map[string]bool, len(c.ConnectedMarkets)+1)
	out := make([]string, 0, len(c.ConnectedMarkets)+1)
	for _, m := range append([]string{c.MainMarket}, c.ConnectedMarkets...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Feature is one region's entry in the unified output collection.
// Nullable analytics fields serialize as explicit nulls so "no data"
// stays distinguishable from zero.
type Feature struct {
	RegionID   region.ID         `json:"region_id"`
	ClusterID  int               `json:"cluster_id"`
	MainMarket bool              `json:"main_market"`
	Lon        float64           `json:"lon"`
	Lat        float64           `json:"lat"`
	Properties FeatureProperties `json:"properties"`
}

// FeatureProperties carries the attributes joined onto a feature.
type FeatureProperties struct {
	Commodity         string   `json:"commodity"`
	Period            string   `json:"period"`
	DisplayName       string   `json:"display_name,omitempty"`
	AvgUSDPrice       *float64 `json:"avg_usd_price"`
	ConflictIntensity *float64 `json:"conflict_intensity"`
	Population        *int64   `json:"population"`
}

// Float64 returns a pointer to v; convenience for optional fields.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v; convenience for optional fields.
func Int64(v int64) *int64 { return &v }
