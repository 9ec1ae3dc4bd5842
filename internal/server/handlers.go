package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/suqdata/market-cli/internal/assemble"
	"github.com/suqdata/market-cli/internal/model"
	"github.com/suqdata/market-cli/internal/network"
	"github.com/suqdata/market-cli/internal/pipeline"
	"github.com/suqdata/market-cli/internal/region"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runAnalysis executes the pipeline for the route's commodity/period and
// sets the X-Cache header. A nil return means the error response was
// already written.
func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request) *pipeline.AnalysisResult {
	commodity := chi.URLParam(r, "commodity")
	period := chi.URLParam(r, "period")

	result, err := s.analyzer.Run(r.Context(), commodity, period)
	if err != nil {
		zap.L().Error("server: analysis failed",
			zap.String("commodity", commodity),
			zap.String("period", period),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "analysis failed")
		return nil
	}

	if result.FromCache() {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	return result
}

type analysisResponse struct {
	Commodity   string                     `json:"commodity"`
	Period      string                     `json:"period"`
	Collection  *geojson.FeatureCollection `json:"feature_collection"`
	Clusters    []network.ClusterMetrics   `json:"clusters"`
	Centrality  map[region.ID]float64      `json:"centrality"`
	Graph       pipeline.GraphSummary      `json:"graph"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	result := s.runAnalysis(w, r)
	if result == nil {
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{
		Commodity:   result.Commodity,
		Period:      result.Period,
		Collection:  result.Assembly.FeatureCollection(),
		Clusters:    result.Clusters,
		Centrality:  result.Centrality,
		Graph:       result.Graph,
		GeneratedAt: result.GeneratedAt,
	})
}

type centralityResponse struct {
	Commodity  string                `json:"commodity"`
	Period     string                `json:"period"`
	Centrality map[region.ID]float64 `json:"centrality"`
	Graph      pipeline.GraphSummary `json:"graph"`
}

func (s *Server) handleCentrality(w http.ResponseWriter, r *http.Request) {
	result := s.runAnalysis(w, r)
	if result == nil {
		return
	}
	writeJSON(w, http.StatusOK, centralityResponse{
		Commodity:  result.Commodity,
		Period:     result.Period,
		Centrality: result.Centrality,
		Graph:      result.Graph,
	})
}

type diagnosticsResponse struct {
	Commodity    string               `json:"commodity"`
	Period       string               `json:"period"`
	Unmatched    []assemble.Unmatched `json:"unmatched"`
	InvalidLinks []model.FlowRecord   `json:"invalid_links"`
	Components   int                  `json:"components"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	result := s.runAnalysis(w, r)
	if result == nil {
		return
	}
	resp := diagnosticsResponse{
		Commodity:    result.Commodity,
		Period:       result.Period,
		Unmatched:    result.Assembly.Unmatched,
		InvalidLinks: result.Assembly.InvalidLinks,
		Components:   result.Graph.Components,
	}
	if resp.Unmatched == nil {
		resp.Unmatched = []assemble.Unmatched{}
	}
	if resp.InvalidLinks == nil {
		resp.InvalidLinks = []model.FlowRecord{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type regionsResponse struct {
	Regions   []region.Region `json:"regions"`
	Ambiguous []string        `json:"ambiguous,omitempty"`
	Count     int             `json:"count"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	gaz := s.analyzer.Regions()
	writeJSON(w, http.StatusOK, regionsResponse{
		Regions:   gaz.All(),
		Ambiguous: gaz.AmbiguousNames(),
		Count:     gaz.Len(),
	})
}

type resolveResponse struct {
	Input string       `json:"input"`
	Match region.Match `json:"match"`
	Known bool         `json:"known"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}
	match := s.analyzer.Resolve(name)
	writeJSON(w, http.StatusOK, resolveResponse{
		Input: name,
		Match: match,
		Known: match.Known(),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.Snapshot())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.analyzer.Loader().Cache().Clear()
	zap.L().Info("server: cache cleared")
	writeJSON(w, http.StatusOK, s.analyzer.Snapshot())
}
