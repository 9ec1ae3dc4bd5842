package network

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/suqdata/market-cli/internal/model"
	"github.com/suqdata/market-cli/internal/region"
)

// DefaultFlowThreshold is the minimum edge weight for a flow record to enter
// the graph.
const DefaultFlowThreshold = 0.1

// Graph is a weighted undirected market network. Nodes are canonical region
// ids mapped onto dense int64 ids for the underlying gonum graph.
type Graph struct {
	g     *simple.WeightedUndirectedGraph
	ids   map[int64]region.ID
	index map[region.ID]int64
	edges int
}

type graphConfig struct {
	threshold float64
}

// GraphOption adjusts graph construction.
type GraphOption func(*graphConfig)

// WithFlowThreshold sets the minimum weight below which flows are dropped.
func WithFlowThreshold(threshold float64) GraphOption {
	return func(c *graphConfig) { c.threshold = threshold }
}

// BuildGraph assembles a deduplicated weighted undirected graph from flow
// records. Pair order is canonicalized so a->b and b->a collapse into one
// edge carrying the larger weight. Self-loops and flows below the threshold
// are skipped, so nodes only enter the graph with at least one live edge and
// isolated nodes never appear.
func BuildGraph(flows []model.FlowRecord, opts ...GraphOption) *Graph {
	cfg := graphConfig{threshold: DefaultFlowThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}

	type edge struct {
		a, b   region.ID
		weight float64
	}
	best := make(map[string]edge)
	skipped := 0
	for _, f := range flows {
		a := region.ID(strings.TrimSpace(f.Source))
		b := region.ID(strings.TrimSpace(f.Target))
		if a == "" || b == "" || a == b {
			skipped++
			continue
		}
		w := f.Weight()
		if w < cfg.threshold {
			skipped++
			continue
		}
		if b < a {
			a, b = b, a
		}
		key := string(a) + "|" + string(b)
		if cur, ok := best[key]; !ok || w > cur.weight {
			best[key] = edge{a: a, b: b, weight: w}
		}
	}

	gr := &Graph{
		g:     simple.NewWeightedUndirectedGraph(0, 0),
		ids:   make(map[int64]region.ID),
		index: make(map[region.ID]int64),
	}

	// Insert in sorted key order so node ids are deterministic across runs.
	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := best[k]
		gr.g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(gr.nodeID(e.a)),
			T: simple.Node(gr.nodeID(e.b)),
			W: e.weight,
		})
	}
	gr.edges = len(best)

	if skipped > 0 {
		zap.L().Debug("network: flows dropped during graph build",
			zap.Int("dropped", skipped),
			zap.Int("edges", gr.edges),
		)
	}
	return gr
}

func (g *Graph) nodeID(id region.ID) int64 {
	if n, ok := g.index[id]; ok {
		return n
	}
	n := int64(len(g.index))
	g.index[id] = n
	g.ids[n] = id
	g.g.AddNode(simple.Node(n))
	return n
}

// Order returns the number of nodes.
func (g *Graph) Order() int { return len(g.ids) }

// Size returns the number of edges.
func (g *Graph) Size() int { return g.edges }

// Has reports whether the region participates in the network.
func (g *Graph) Has(id region.ID) bool {
	_, ok := g.index[id]
	return ok
}

// Regions returns the participating region ids in sorted order.
func (g *Graph) Regions() []region.ID {
	out := make([]region.ID, 0, len(g.index))
	for id := range g.index {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Weight returns the edge weight between two regions, if the edge exists.
func (g *Graph) Weight(a, b region.ID) (float64, bool) {
	u, ok := g.index[a]
	if !ok {
		return 0, false
	}
	v, ok := g.index[b]
	if !ok {
		return 0, false
	}
	return g.weightBetween(u, v)
}

// WeightedDegree returns the sum of edge weights incident to the region.
func (g *Graph) WeightedDegree(id region.ID) float64 {
	n, ok := g.index[id]
	if !ok {
		return 0
	}
	return g.weightedDegreeOf(n)
}

// Components returns the number of connected components.
func (g *Graph) Components() int {
	if g.Order() == 0 {
		return 0
	}
	return len(topo.ConnectedComponents(g.g))
}

// Density returns the ratio of actual edges to possible node pairs.
func (g *Graph) Density() float64 {
	n := g.Order()
	if n < 2 {
		return 0
	}
	return 2 * float64(g.edges) / float64(n*(n-1))
}

func (g *Graph) nodeOrder() []int64 {
	order := make([]int64, 0, len(g.ids))
	for n := range g.ids {
		order = append(order, n)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order
}

func (g *Graph) weightBetween(u, v int64) (float64, bool) {
	if u == v || !g.g.HasEdgeBetween(u, v) {
		return 0, false
	}
	return g.g.WeightedEdge(u, v).Weight(), true
}

func (g *Graph) weightedDegreeOf(n int64) float64 {
	var sum float64
	neighbors := g.g.From(n)
	for neighbors.Next() {
		if w, ok := g.weightBetween(n, neighbors.Node().ID()); ok {
			sum += w
		}
	}
	return sum
}
