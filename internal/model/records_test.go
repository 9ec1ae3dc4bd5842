package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSeriesRecord_EffectivePrice(t *testing.T) {
	avg := 1.25
	fallback := 2.50

	r := TimeSeriesRecord{AvgUSDPrice: &avg, Price: &fallback}
	require.NotNil(t, r.EffectivePrice())
	assert.InDelta(t, 1.25, *r.EffectivePrice(), 1e-9)

	r = TimeSeriesRecord{Price: &fallback}
	require.NotNil(t, r.EffectivePrice())
	assert.InDelta(t, 2.50, *r.EffectivePrice(), 1e-9)

	r = TimeSeriesRecord{}
	assert.Nil(t, r.EffectivePrice())
}

func TestFlowRecord_Weight(t *testing.T) {
	r := FlowRecord{TotalFlow: 120}
	assert.InDelta(t, 120.0, r.Weight(), 1e-9)

	r.FlowWeight = Float64(0.85)
	assert.InDelta(t, 0.85, r.Weight(), 1e-9)
}

func TestClusterRecord_Markets(t *testing.T) {
	c := ClusterRecord{
		MainMarket:       "sana'a",
		ConnectedMarkets: []string{"dhamar", "sana'a", "amran", ""},
	}
	assert.Equal(t, []string{"sana'a", "dhamar", "amran"}, c.Markets())
}

func TestFeature_NullPropertiesSerializeExplicitly(t *testing.T) {
	f := Feature{
		RegionID: "taizz",
		Lon:      44.02,
		Lat:      13.58,
		Properties: FeatureProperties{
			Commodity: "wheat",
			Period:    "2020-01",
		},
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)

	// Missing observations must appear as explicit nulls, not be omitted.
	assert.Contains(t, string(data), `"avg_usd_price":null`)
	assert.Contains(t, string(data), `"conflict_intensity":null`)
	assert.Contains(t, string(data), `"population":null`)
}
