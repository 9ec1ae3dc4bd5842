package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suqdata/market-cli/internal/model"
	"github.com/suqdata/market-cli/internal/region"
)

func assertUnitRange(t *testing.T, scores map[region.ID]float64) {
	t.Helper()
	for id, v := range scores {
		assert.GreaterOrEqual(t, v, 0.0, "score for %s below range", id)
		assert.LessOrEqual(t, v, 1.0, "score for %s above range", id)
	}
}

func TestComputeEmptyGraph(t *testing.T) {
	e := NewEngine()

	scores := e.Compute(nil)
	assert.NotNil(t, scores)
	assert.Empty(t, scores)

	scores = e.Compute(BuildGraph(nil))
	assert.NotNil(t, scores)
	assert.Empty(t, scores)
}

func TestComputeTwoNodeGraph(t *testing.T) {
	g := BuildGraph([]model.FlowRecord{flow("taizz", "ibb", 120)})
	scores := NewEngine().Compute(g)

	require.Len(t, scores, 2)
	assert.InDelta(t, 1.0, scores["taizz"], 1e-9, "equally central nodes keep a non-zero rank")
	assert.InDelta(t, 1.0, scores["ibb"], 1e-9)
}

func TestComputeStarGraphRanksHubHighest(t *testing.T) {
	g := BuildGraph([]model.FlowRecord{
		flow("hub", "a", 1),
		flow("hub", "b", 1),
		flow("hub", "c", 1),
	})
	scores := NewEngine().Compute(g)

	require.Len(t, scores, 4)
	assert.InDelta(t, 1.0, scores["hub"], 1e-9)
	assert.InDelta(t, 0.0, scores["a"], 0.02)
	assert.InDelta(t, 0.0, scores["b"], 0.02)
	assert.InDelta(t, 0.0, scores["c"], 0.02)
	assertUnitRange(t, scores)
}

func TestComputePathGraphRanksMiddleHighest(t *testing.T) {
	g := BuildGraph([]model.FlowRecord{
		flow("aden", "lahj", 1),
		flow("lahj", "taizz", 1),
	})
	scores := NewEngine().Compute(g)

	require.Len(t, scores, 3)
	assert.InDelta(t, 1.0, scores["lahj"], 1e-9)
	assert.Less(t, scores["aden"], scores["lahj"])
	assert.Less(t, scores["taizz"], scores["lahj"])
	assertUnitRange(t, scores)
}

func TestComputeWeightedTriangleUsesWeights(t *testing.T) {
	g := BuildGraph([]model.FlowRecord{
		flow("a", "b", 2),
		flow("b", "c", 1),
		flow("a", "c", 1),
	})
	scores := NewEngine().Compute(g)

	require.Len(t, scores, 3)
	// The heavy a-b edge lifts both ends above c; an unweighted walk would
	// score all three identically.
	assert.InDelta(t, 1.0, scores["a"], 0.01)
	assert.InDelta(t, 1.0, scores["b"], 0.01)
	assert.InDelta(t, 0.0, scores["c"], 0.01)
}

func TestComputeDisconnectedGraphFallsBackToDegree(t *testing.T) {
	g := BuildGraph([]model.FlowRecord{
		flow("a", "b", 1),
		flow("c", "d", 5),
	})
	require.Equal(t, 2, g.Components())

	scores := NewEngine().Compute(g)

	require.Len(t, scores, 4)
	assert.InDelta(t, 1.0, scores["c"], 1e-9)
	assert.InDelta(t, 1.0, scores["d"], 1e-9)
	assert.InDelta(t, 0.0, scores["a"], 1e-9)
	assert.InDelta(t, 0.0, scores["b"], 1e-9)
}

func TestComputeNonConvergedEigenvectorFallsBack(t *testing.T) {
	g := BuildGraph([]model.FlowRecord{
		flow("aden", "lahj", 1),
		flow("lahj", "taizz", 1),
	})
	scores := NewEngine(WithMaxIterations(1)).Compute(g)

	require.Len(t, scores, 3)
	assert.InDelta(t, 1.0, scores["lahj"], 1e-9)
	assert.InDelta(t, 0.0, scores["aden"], 1e-9)
	assert.InDelta(t, 0.0, scores["taizz"], 1e-9)
}

func TestEngineOptionsIgnoreInvalidValues(t *testing.T) {
	e := NewEngine(WithMaxIterations(0), WithTolerance(-1))

	eig, ok := e.strategies[0].(*eigenvectorStrategy)
	require.True(t, ok)
	assert.Equal(t, DefaultMaxIterations, eig.maxIterations)
	assert.Equal(t, DefaultTolerance, eig.tolerance)
}

func TestNormalizeScores(t *testing.T) {
	tests := []struct {
		name string
		in   map[region.ID]float64
		want map[region.ID]float64
	}{
		{
			name: "spread values hit both endpoints",
			in:   map[region.ID]float64{"a": 2, "b": 4, "c": 6},
			want: map[region.ID]float64{"a": 0, "b": 0.5, "c": 1},
		},
		{
			name: "equal values all map to one",
			in:   map[region.ID]float64{"a": 3, "b": 3},
			want: map[region.ID]float64{"a": 1, "b": 1},
		},
		{
			name: "single zero value maps to one",
			in:   map[region.ID]float64{"a": 0},
			want: map[region.ID]float64{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeScores(tt.in)
			require.Len(t, got, len(tt.want))
			for id, want := range tt.want {
				assert.InDelta(t, want, got[id], 1e-9, "id %s", id)
			}
		})
	}
}
