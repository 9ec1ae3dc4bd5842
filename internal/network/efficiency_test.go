package network

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/suqdata/market-cli/internal/model"
	"github.com/suqdata/market-cli/internal/region"
)

func clusterFlow(src, dst string, priceDiff float64, count int) model.FlowRecord {
	return model.FlowRecord{
		Source:               src,
		Target:               dst,
		TotalFlow:            1,
		AvgPriceDifferential: priceDiff,
		FlowCount:            count,
	}
}

func assertMetricsInUnitRange(t *testing.T, m ClusterMetrics) {
	t.Helper()
	for name, v := range map[string]float64{
		"internal_connectivity": m.InternalConnectivity,
		"price_convergence":     m.PriceConvergence,
		"stability":             m.Stability,
		"coverage":              m.Coverage,
		"efficiency":            m.Efficiency,
	} {
		assert.GreaterOrEqual(t, v, 0.0, "%s below range", name)
		assert.LessOrEqual(t, v, 1.0, "%s above range", name)
	}
}

func TestClusterEfficiencyFullyConnected(t *testing.T) {
	markets := []region.ID{"aden", "lahj", "taizz"}
	flows := []model.FlowRecord{
		clusterFlow("aden", "lahj", 0, 4),
		clusterFlow("lahj", "taizz", 0, 4),
		clusterFlow("aden", "taizz", 0, 4),
	}

	m := ClusterEfficiency(1, "aden", markets, flows, 22)

	assert.Equal(t, 3, m.MarketCount)
	assert.Equal(t, 3, m.InternalEdges)
	assert.InDelta(t, 1.0, m.InternalConnectivity, 1e-9)
	assert.InDelta(t, 1.0, m.PriceConvergence, 1e-9)
	assert.InDelta(t, 1.0, m.Stability, 1e-9)
	assert.InDelta(t, 3.0/22.0, m.Coverage, 1e-9)
	assert.InDelta(t, 0.3+0.3+0.2+0.2*3.0/22.0, m.Efficiency, 1e-9)
	assertMetricsInUnitRange(t, m)
}

func TestClusterEfficiencyNoInternalFlows(t *testing.T) {
	markets := []region.ID{"aden", "lahj"}
	flows := []model.FlowRecord{
		clusterFlow("aden", "ibb", 0.2, 3), // external endpoint, ignored
	}

	m := ClusterEfficiency(2, "aden", markets, flows, 22)

	assert.Equal(t, 0, m.InternalEdges)
	assert.Zero(t, m.InternalConnectivity)
	assert.Zero(t, m.PriceConvergence)
	assert.Zero(t, m.Stability)
	assert.InDelta(t, 2.0/22.0, m.Coverage, 1e-9)
	assert.InDelta(t, 0.2*2.0/22.0, m.Efficiency, 1e-9)
}

func TestClusterEfficiencyPriceConvergence(t *testing.T) {
	tests := []struct {
		name string
		diff float64
		want float64
	}{
		{"zero differential", 0, 1},
		{"moderate differential", 0.5, 0.75},
		{"negative differential uses magnitude", -0.5, 0.75},
		{"extreme differential floors at zero", 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markets := []region.ID{"aden", "lahj"}
			flows := []model.FlowRecord{clusterFlow("aden", "lahj", tt.diff, 1)}

			m := ClusterEfficiency(1, "aden", markets, flows, 22)
			assert.InDelta(t, tt.want, m.PriceConvergence, 1e-9)
			assertMetricsInUnitRange(t, m)
		})
	}
}

func TestClusterEfficiencyReverseDuplicateCollapses(t *testing.T) {
	markets := []region.ID{"aden", "lahj"}
	flows := []model.FlowRecord{
		clusterFlow("aden", "lahj", 1.0, 2),
		clusterFlow("lahj", "aden", 0.4, 6),
	}

	m := ClusterEfficiency(1, "aden", markets, flows, 22)

	assert.Equal(t, 1, m.InternalEdges)
	assert.InDelta(t, 1.0, m.InternalConnectivity, 1e-9)
	// The record with more observations wins the pair.
	assert.InDelta(t, 0.8, m.PriceConvergence, 1e-9)
	assert.InDelta(t, 1.0, m.Stability, 1e-9)
}

func TestClusterEfficiencyStabilityAveragesCounts(t *testing.T) {
	markets := []region.ID{"aden", "lahj", "taizz"}
	flows := []model.FlowRecord{
		clusterFlow("aden", "lahj", 0, 2),
		clusterFlow("lahj", "taizz", 0, 4),
	}

	m := ClusterEfficiency(1, "aden", markets, flows, 22)

	assert.Equal(t, 2, m.InternalEdges)
	assert.InDelta(t, 2.0/3.0, m.InternalConnectivity, 1e-9)
	assert.InDelta(t, 0.75, m.Stability, 1e-9, "avg count 3 over max count 4")
}

func TestClusterEfficiencySingleMarket(t *testing.T) {
	m := ClusterEfficiency(1, "aden", []region.ID{"aden"}, nil, 22)

	assert.Equal(t, 1, m.MarketCount)
	assert.Zero(t, m.InternalConnectivity)
	assert.Zero(t, m.PriceConvergence)
	assert.Zero(t, m.Stability)
	assert.InDelta(t, 1.0/22.0, m.Coverage, 1e-9)
	assert.InDelta(t, 0.2/22.0, m.Efficiency, 1e-9)
}

func TestClusterEfficiencyDedupesMarketList(t *testing.T) {
	m := ClusterEfficiency(1, "aden", []region.ID{"aden", "aden", ""}, nil, 22)
	assert.Equal(t, 1, m.MarketCount)
}

func TestClusterEfficiencyIgnoresSelfLoops(t *testing.T) {
	markets := []region.ID{"aden", "lahj"}
	flows := []model.FlowRecord{clusterFlow("aden", "aden", 0, 9)}

	m := ClusterEfficiency(1, "aden", markets, flows, 22)
	assert.Equal(t, 0, m.InternalEdges)
}

func TestClusterEfficiencyCoverageClamped(t *testing.T) {
	m := ClusterEfficiency(1, "a", []region.ID{"a", "b", "c"}, nil, 2)
	assert.InDelta(t, 1.0, m.Coverage, 1e-9)

	m = ClusterEfficiency(1, "a", []region.ID{"a"}, nil, 0)
	assert.Zero(t, m.Coverage, "unknown reference set yields zero coverage")
}
