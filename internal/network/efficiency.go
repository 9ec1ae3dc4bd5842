package network

import (
	"math"
	"strings"

	"github.com/suqdata/market-cli/internal/model"
	"github.com/suqdata/market-cli/internal/region"
)

// Component weights for the composite cluster efficiency score.
const (
	connectivityWeight = 0.3
	convergenceWeight  = 0.3
	stabilityWeight    = 0.2
	coverageWeight     = 0.2
)

// ClusterMetrics is the efficiency breakdown for one market cluster. Every
// component and the composite Efficiency are in [0,1].
type ClusterMetrics struct {
	ClusterID            int       `json:"cluster_id"`
	MainMarket           region.ID `json:"main_market"`
	MarketCount          int       `json:"market_count"`
	InternalEdges        int       `json:"internal_edges"`
	InternalConnectivity float64   `json:"internal_connectivity"`
	PriceConvergence     float64   `json:"price_convergence"`
	Stability            float64   `json:"stability"`
	Coverage             float64   `json:"coverage"`
	Efficiency           float64   `json:"efficiency"`
}

// ClusterEfficiency scores one cluster from its member markets and the flow
// records whose endpoints both fall inside it. Market ids and flow endpoints
// must share the same canonical namespace. totalKnown is the size of the
// reference region set and anchors the coverage term.
func ClusterEfficiency(clusterID int, mainMarket region.ID, markets []region.ID, flows []model.FlowRecord, totalKnown int) ClusterMetrics {
	m := ClusterMetrics{ClusterID: clusterID, MainMarket: mainMarket}

	members := make(map[region.ID]bool, len(markets))
	for _, id := range markets {
		if id != "" {
			members[id] = true
		}
	}
	m.MarketCount = len(members)

	// Deduplicate internal flows on canonical pair order, mirroring the
	// graph build; reverse duplicates keep the record with more observations.
	type internalFlow struct {
		priceDiff float64
		flowCount int
	}
	internal := make(map[string]internalFlow)
	for _, f := range flows {
		a := region.ID(strings.TrimSpace(f.Source))
		b := region.ID(strings.TrimSpace(f.Target))
		if a == "" || b == "" || a == b || !members[a] || !members[b] {
			continue
		}
		if b < a {
			a, b = b, a
		}
		key := string(a) + "|" + string(b)
		if cur, ok := internal[key]; !ok || f.FlowCount > cur.flowCount {
			internal[key] = internalFlow{
				priceDiff: math.Abs(f.AvgPriceDifferential),
				flowCount: f.FlowCount,
			}
		}
	}
	m.InternalEdges = len(internal)

	if maxPairs := m.MarketCount * (m.MarketCount - 1) / 2; maxPairs > 0 {
		m.InternalConnectivity = float64(m.InternalEdges) / float64(maxPairs)
	}

	if len(internal) > 0 {
		var diffSum float64
		var countSum, countMax int
		for _, f := range internal {
			diffSum += f.priceDiff
			countSum += f.flowCount
			if f.flowCount > countMax {
				countMax = f.flowCount
			}
		}
		avgDiff := diffSum / float64(len(internal))
		m.PriceConvergence = math.Max(0, 1-avgDiff/2)
		if countMax > 0 {
			m.Stability = float64(countSum) / float64(len(internal)) / float64(countMax)
		}
	}

	if totalKnown > 0 {
		m.Coverage = math.Min(1, float64(m.MarketCount)/float64(totalKnown))
	}

	m.Efficiency = connectivityWeight*m.InternalConnectivity +
		convergenceWeight*m.PriceConvergence +
		stabilityWeight*m.Stability +
		coverageWeight*m.Coverage

	return m
}
