package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/suqdata/market-cli/internal/artifact"
	"github.com/suqdata/market-cli/internal/config"
	"github.com/suqdata/market-cli/internal/geometry"
	"github.com/suqdata/market-cli/internal/pipeline"
	"github.com/suqdata/market-cli/internal/region"
)

func writeTestTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"geometry.json": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"shapeName":"Taizz"},"geometry":{"type":"Point","coordinates":[44.02,13.58]}},
			{"type":"Feature","properties":{"shapeName":"Ibb"},"geometry":{"type":"Point","coordinates":[44.18,13.97]}}
		]}`,
		"time_series/wheat/2020-01.json": `[
			{"region":"Taizz","month":"2020-01","commodity":"wheat","avgUsdPrice":250.0}
		]`,
		"flows/wheat/2020-01.json": `[
			{"source":"Taizz","target":"Ibb","total_flow":120,"avg_price_differential":0.2,"flow_count":4,"period":"2020-01"}
		]`,
		"clusters/wheat.json": `[
			{"cluster_id":1,"main_market":"Taizz","connected_markets":["Ibb"],"market_count":2}
		]`,
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newTestServer(t *testing.T, dir string) *Server {
	t.Helper()
	gaz, err := region.LoadGazetteer()
	require.NoError(t, err)
	normalizer := region.NewNormalizer(gaz)
	validator := geometry.NewValidator(geometry.RefTableFromGazetteer(gaz))
	loader := artifact.NewLoader(artifact.NewCache(10, time.Hour), artifact.NewFileSource(dir))
	return New(pipeline.New(loader, normalizer, validator), config.ServerConfig{})
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	rr := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Analysis(t *testing.T) {
	s := newTestServer(t, writeTestTree(t))

	rr := get(t, s, "/api/analysis/wheat/2020-01")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))

	var resp struct {
		Commodity  string             `json:"commodity"`
		Period     string             `json:"period"`
		Collection json.RawMessage    `json:"feature_collection"`
		Centrality map[string]float64 `json:"centrality"`
		Clusters   []json.RawMessage  `json:"clusters"`
		Graph      struct {
			Nodes int `json:"nodes"`
			Edges int `json:"edges"`
		} `json:"graph"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "wheat", resp.Commodity)
	assert.Equal(t, "2020-01", resp.Period)

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(resp.Collection, &fc))
	assert.Len(t, fc.Features, 2)

	assert.Len(t, resp.Centrality, 2)
	assert.InDelta(t, 1.0, resp.Centrality["taizz"], 1e-9)
	assert.Len(t, resp.Clusters, 1)
	assert.Equal(t, 2, resp.Graph.Nodes)
	assert.Equal(t, 1, resp.Graph.Edges)

	// A second request is served entirely from cache.
	rr = get(t, s, "/api/analysis/wheat/2020-01")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))
}

func TestServer_Centrality(t *testing.T) {
	s := newTestServer(t, writeTestTree(t))

	rr := get(t, s, "/api/centrality/wheat/2020-01")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp centralityResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Centrality, 2)
	assert.Equal(t, 1, resp.Graph.Components)
}

func TestServer_Diagnostics(t *testing.T) {
	s := newTestServer(t, writeTestTree(t))

	rr := get(t, s, "/api/diagnostics/wheat/2020-01")
	require.Equal(t, http.StatusOK, rr.Code)

	// Clean inputs: both diagnostic lists present but empty, never null.
	assert.Contains(t, rr.Body.String(), `"unmatched":[]`)
	assert.Contains(t, rr.Body.String(), `"invalid_links":[]`)
}

func TestServer_AnalysisFailure(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	rr := get(t, s, "/api/analysis/wheat/2020-01")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "analysis failed")
}

func TestServer_Regions(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	rr := get(t, s, "/api/regions")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp regionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, resp.Count, len(resp.Regions))
	assert.NotEmpty(t, resp.Regions)

	ids := make(map[region.ID]bool, len(resp.Regions))
	for _, reg := range resp.Regions {
		ids[reg.ID] = true
	}
	assert.True(t, ids[region.ID("sana'a")])
}

func TestServer_Resolve(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	rr := get(t, s, "/api/regions/resolve?name=San_a%27_Governorate")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp resolveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, region.ID("sana'a"), resp.Match.ID)
	assert.True(t, resp.Known)
}

func TestServer_ResolveMissingName(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	rr := get(t, s, "/api/regions/resolve")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_CacheStatsAndClear(t *testing.T) {
	s := newTestServer(t, writeTestTree(t))

	rr := get(t, s, "/api/analysis/wheat/2020-01")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = get(t, s, "/api/cache/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var snap pipeline.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, 4, snap.Cache.Entries)
	assert.Equal(t, int64(1), snap.Runs)

	req := httptest.NewRequest(http.MethodDelete, "/api/cache", nil)
	del := httptest.NewRecorder()
	s.Handler().ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)

	require.NoError(t, json.Unmarshal(del.Body.Bytes(), &snap))
	assert.Equal(t, 0, snap.Cache.Entries)
}
