// Package pipeline composes artifact loading, record decoding, spatial
// assembly, and network analysis into one run per commodity/period.
package pipeline

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suqdata/market-cli/internal/artifact"
	"github.com/suqdata/market-cli/internal/assemble"
	"github.com/suqdata/market-cli/internal/geometry"
	"github.com/suqdata/market-cli/internal/model"
	"github.com/suqdata/market-cli/internal/network"
	"github.com/suqdata/market-cli/internal/region"
)

// Analyzer orchestrates a full market-integration analysis: load the four
// artifact kinds, assemble the unified feature set, then compute centrality
// and cluster efficiency over the canonicalized flows.
type Analyzer struct {
	loader     *artifact.Loader
	normalizer *region.Normalizer
	assembler  *assemble.Assembler
	engine     *network.Engine
	graphOpts  []network.GraphOption

	runs     atomic.Int64
	failures atomic.Int64
	lastRun  atomic.Int64 // unix nanos of the last completed run
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithEngine replaces the default centrality engine.
func WithEngine(e *network.Engine) Option {
	return func(a *Analyzer) { a.engine = e }
}

// WithGraphOptions sets options applied when building the flow graph.
func WithGraphOptions(opts ...network.GraphOption) Option {
	return func(a *Analyzer) { a.graphOpts = opts }
}

// New creates an Analyzer with all dependencies.
func New(loader *artifact.Loader, normalizer *region.Normalizer, validator *geometry.Validator, opts ...Option) *Analyzer {
	a := &Analyzer{
		loader:     loader,
		normalizer: normalizer,
		assembler:  assemble.New(normalizer, validator),
		engine:     network.NewEngine(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GraphSummary describes the flow graph an analysis ran over.
type GraphSummary struct {
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	Components int     `json:"components"`
	Density    float64 `json:"density"`
}

// AnalysisResult is the complete output of one analysis run.
type AnalysisResult struct {
	Commodity   string                   `json:"commodity"`
	Period      string                   `json:"period"`
	Assembly    *assemble.Result         `json:"assembly"`
	Centrality  map[region.ID]float64    `json:"centrality"`
	Clusters    []network.ClusterMetrics `json:"clusters"`
	Graph       GraphSummary             `json:"graph"`
	Sources     map[artifact.Kind]string `json:"sources"`
	ElapsedMS   int64                    `json:"elapsed_ms"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// FromCache reports whether every artifact was served without a fresh fetch.
func (r *AnalysisResult) FromCache() bool {
	for _, src := range r.Sources {
		if src == artifact.FromFetch {
			return false
		}
	}
	return len(r.Sources) > 0
}

// Run executes the full analysis for one commodity/period.
func (a *Analyzer) Run(ctx context.Context, commodity, period string) (*AnalysisResult, error) {
	log := zap.L().With(zap.String("commodity", commodity), zap.String("period", period))
	log.Info("pipeline: starting analysis")
	start := time.Now()
	a.runs.Add(1)

	var (
		rawGeometry []geometry.RawFeature
		series      []model.TimeSeriesRecord
		flows       []model.FlowRecord
		clusters    []model.ClusterRecord

		mu      sync.Mutex
		sources = make(map[artifact.Kind]string, 4)
	)

	load := func(ctx context.Context, req artifact.Request) ([]byte, error) {
		res, err := a.loader.Load(ctx, req)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		sources[req.Kind] = res.Source
		mu.Unlock()
		return res.Data, nil
	}

	// Collect all four artifacts in parallel; any load or decode failure
	// fails the run since every later stage needs them.
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, err := load(gCtx, artifact.Request{Kind: artifact.KindGeometry})
		if err != nil {
			return err
		}
		rawGeometry, err = geometry.LoadGeometry(data)
		return eris.Wrap(err, "pipeline: parse geometry")
	})

	g.Go(func() error {
		data, err := load(gCtx, artifact.Request{Kind: artifact.KindTimeSeries, Commodity: commodity, Period: period})
		if err != nil {
			return err
		}
		series, err = model.DecodeTimeSeries(bytes.NewReader(data))
		return eris.Wrap(err, "pipeline: parse time series")
	})

	g.Go(func() error {
		data, err := load(gCtx, artifact.Request{Kind: artifact.KindFlows, Commodity: commodity, Period: period})
		if err != nil {
			return err
		}
		flows, err = model.DecodeFlows(bytes.NewReader(data))
		return eris.Wrap(err, "pipeline: parse flows")
	})

	g.Go(func() error {
		data, err := load(gCtx, artifact.Request{Kind: artifact.KindClusters, Commodity: commodity})
		if err != nil {
			return err
		}
		clusters, err = model.DecodeClusters(bytes.NewReader(data))
		return eris.Wrap(err, "pipeline: parse clusters")
	})

	if err := g.Wait(); err != nil {
		a.failures.Add(1)
		return nil, eris.Wrap(err, "pipeline: collect artifacts")
	}

	log.Debug("pipeline: artifacts collected",
		zap.Int("geometry", len(rawGeometry)),
		zap.Int("time_series", len(series)),
		zap.Int("flows", len(flows)),
		zap.Int("clusters", len(clusters)),
	)

	asm, err := a.assembler.Assemble(ctx, assemble.Inputs{
		Geometry:   rawGeometry,
		TimeSeries: series,
		Flows:      flows,
		Clusters:   clusters,
		Commodity:  commodity,
		Period:     period,
	})
	if err != nil {
		a.failures.Add(1)
		return nil, err
	}

	graph := network.BuildGraph(asm.Flows, a.graphOpts...)
	centrality := a.engine.Compute(graph)

	totalKnown := a.normalizer.Gazetteer().Len()
	metrics := make([]network.ClusterMetrics, 0, len(asm.Clusters))
	for _, rc := range asm.Clusters {
		metrics = append(metrics, network.ClusterEfficiency(rc.ClusterID, rc.MainMarket, rc.Markets, asm.Flows, totalKnown))
	}

	result := &AnalysisResult{
		Commodity:  commodity,
		Period:     period,
		Assembly:   asm,
		Centrality: centrality,
		Clusters:   metrics,
		Graph: GraphSummary{
			Nodes:      graph.Order(),
			Edges:      graph.Size(),
			Components: graph.Components(),
			Density:    graph.Density(),
		},
		Sources:     sources,
		ElapsedMS:   time.Since(start).Milliseconds(),
		GeneratedAt: time.Now().UTC(),
	}
	a.lastRun.Store(time.Now().UnixNano())

	log.Info("pipeline: analysis complete",
		zap.Int("features", len(asm.Features)),
		zap.Int("clusters", len(metrics)),
		zap.Int("graph_nodes", result.Graph.Nodes),
		zap.Int("graph_edges", result.Graph.Edges),
		zap.Int64("elapsed_ms", result.ElapsedMS),
	)
	return result, nil
}

// Snapshot holds a point-in-time view of analyzer health.
type Snapshot struct {
	Cache       artifact.CacheStats `json:"cache"`
	Runs        int64               `json:"runs"`
	Failures    int64               `json:"failures"`
	LastRunAt   time.Time           `json:"last_run_at"`
	CollectedAt time.Time           `json:"collected_at"`
}

// Snapshot gathers current cache statistics and run counters.
func (a *Analyzer) Snapshot() Snapshot {
	snap := Snapshot{
		Cache:       a.loader.Cache().Stats(),
		Runs:        a.runs.Load(),
		Failures:    a.failures.Load(),
		CollectedAt: time.Now().UTC(),
	}
	if n := a.lastRun.Load(); n > 0 {
		snap.LastRunAt = time.Unix(0, n).UTC()
	}
	return snap
}

// Loader exposes the artifact loader for cache management surfaces.
func (a *Analyzer) Loader() *artifact.Loader { return a.loader }

// Regions exposes the gazetteer backing name resolution.
func (a *Analyzer) Regions() *region.Gazetteer { return a.normalizer.Gazetteer() }

// Resolve normalizes one raw region name.
func (a *Analyzer) Resolve(raw string) region.Match { return a.normalizer.Resolve(raw) }
