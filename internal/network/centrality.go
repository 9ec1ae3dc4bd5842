package network

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/mat"

	"github.com/suqdata/market-cli/internal/region"
)

// Power-iteration defaults, tunable via EngineOption.
const (
	DefaultMaxIterations = 10000
	DefaultTolerance     = 1e-4
)

// strategy computes one flavor of centrality over a built graph. A nil error
// with a non-empty map is a usable result; anything else advances the chain.
type strategy interface {
	Name() string
	Compute(g *Graph) (map[region.ID]float64, error)
}

// Engine ranks regions by running an ordered chain of centrality strategies
// (eigenvector, then betweenness, then weighted degree) and min-max
// normalizing whichever result lands first.
type Engine struct {
	strategies []strategy
}

type engineConfig struct {
	maxIterations int
	tolerance     float64
}

// EngineOption adjusts engine numerics.
type EngineOption func(*engineConfig)

// WithMaxIterations caps the power-iteration loop.
func WithMaxIterations(n int) EngineOption {
	return func(c *engineConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithTolerance sets the power-iteration convergence tolerance.
func WithTolerance(tol float64) EngineOption {
	return func(c *engineConfig) {
		if tol > 0 {
			c.tolerance = tol
		}
	}
}

// NewEngine returns an engine with the default strategy chain.
func NewEngine(opts ...EngineOption) *Engine {
	cfg := engineConfig{
		maxIterations: DefaultMaxIterations,
		tolerance:     DefaultTolerance,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		strategies: []strategy{
			&eigenvectorStrategy{maxIterations: cfg.maxIterations, tolerance: cfg.tolerance},
			betweennessStrategy{},
			degreeStrategy{},
		},
	}
}

// Compute returns centrality scores in [0,1] keyed by region id. An empty
// graph yields an empty map, never an error. Strategies are tried in order;
// a failure or an empty result advances to the next one.
func (e *Engine) Compute(g *Graph) map[region.ID]float64 {
	if g == nil || g.Order() == 0 {
		return map[region.ID]float64{}
	}

	zap.L().Debug("network: computing centrality",
		zap.Int("nodes", g.Order()),
		zap.Int("edges", g.Size()),
		zap.Int("components", g.Components()),
	)

	for _, s := range e.strategies {
		scores, err := s.Compute(g)
		if err != nil {
			zap.L().Warn("network: centrality strategy failed",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}
		if len(scores) == 0 {
			zap.L().Warn("network: centrality strategy returned no scores",
				zap.String("strategy", s.Name()),
			)
			continue
		}
		zap.L().Debug("network: centrality computed",
			zap.String("strategy", s.Name()),
			zap.Int("regions", len(scores)),
		)
		return normalizeScores(scores)
	}
	return map[region.ID]float64{}
}

type eigenvectorStrategy struct {
	maxIterations int
	tolerance     float64
}

func (s *eigenvectorStrategy) Name() string { return "eigenvector" }

// Compute runs shifted power iteration (A+I) over the symmetric weighted
// adjacency matrix. The identity shift keeps bipartite graphs from
// oscillating between the two dominant eigenvalues. Disconnected graphs are
// rejected up front since the dominant eigenvector of one component carries
// no signal for the others.
func (s *eigenvectorStrategy) Compute(g *Graph) (map[region.ID]float64, error) {
	n := g.Order()
	if n < 2 {
		return nil, eris.New("network: graph too small for eigenvector centrality")
	}
	if c := g.Components(); c > 1 {
		return nil, eris.Errorf("network: graph split into %d components", c)
	}

	order := g.nodeOrder()
	adj := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w, ok := g.weightBetween(order[i], order[j]); ok {
				adj.SetSym(i, j, w)
			}
		}
	}

	x := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x.SetVec(i, 1/float64(n))
	}
	next := mat.NewVecDense(n, nil)

	for iter := 0; iter < s.maxIterations; iter++ {
		next.MulVec(adj, x)
		next.AddVec(next, x)
		norm := mat.Norm(next, 2)
		if norm < 1e-12 {
			return nil, eris.New("network: eigenvector iteration collapsed to zero")
		}
		next.ScaleVec(1/norm, next)

		var delta float64
		for i := 0; i < n; i++ {
			delta += math.Abs(next.AtVec(i) - x.AtVec(i))
		}
		x.CopyVec(next)
		if delta < s.tolerance {
			scores := make(map[region.ID]float64, n)
			for i, u := range order {
				scores[g.ids[u]] = math.Abs(x.AtVec(i))
			}
			return scores, nil
		}
	}
	return nil, eris.Errorf("network: eigenvector centrality did not converge in %d iterations", s.maxIterations)
}

type betweennessStrategy struct{}

func (betweennessStrategy) Name() string { return "betweenness" }

// Compute wraps gonum's betweenness. The library only reports nodes with
// non-zero scores, so an empty raw result means every node scored zero and
// the chain should move on; otherwise absent nodes are filled in at zero.
func (betweennessStrategy) Compute(g *Graph) (map[region.ID]float64, error) {
	raw := network.Betweenness(g.g)
	if len(raw) == 0 {
		return nil, nil
	}
	scores := make(map[region.ID]float64, g.Order())
	for _, n := range g.nodeOrder() {
		scores[g.ids[n]] = raw[n]
	}
	return scores, nil
}

type degreeStrategy struct{}

func (degreeStrategy) Name() string { return "degree" }

func (degreeStrategy) Compute(g *Graph) (map[region.ID]float64, error) {
	scores := make(map[region.ID]float64, g.Order())
	for _, n := range g.nodeOrder() {
		scores[g.ids[n]] = g.weightedDegreeOf(n)
	}
	return scores, nil
}

// normalizeScores min-max scales values into [0,1]. A zero-range input maps
// every node to 1.0 so equally central nodes keep a non-zero rank.
func normalizeScores(scores map[region.ID]float64) map[region.ID]float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range scores {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make(map[region.ID]float64, len(scores))
	span := hi - lo
	if span < 1e-12 {
		for id := range scores {
			out[id] = 1.0
		}
		return out
	}
	for id, v := range scores {
		out[id] = (v - lo) / span
	}
	return out
}
