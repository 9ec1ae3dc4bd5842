// Package artifact loads the precomputed analysis payloads (boundary
// geometry, price panels, flow matrices, cluster assignments) through a
// deduplicated, tiered cache: in-memory TTL+LRU in front, optional sqlite
// behind it, a rate-limited fetch at the back.
package artifact

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind identifies one artifact family.
type Kind string

const (
	KindGeometry   Kind = "geometry"
	KindTimeSeries Kind = "time_series"
	KindFlows      Kind = "flows"
	KindClusters   Kind = "clusters"
)

// Priority orders cache eviction; higher priorities are evicted last. It
// never affects TTL expiry. The zero value defers to the kind's default.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unset"
	}
}

// DefaultPriority maps each kind to its eviction tier. Geometry is reused
// across every commodity/period selection, so it survives the longest;
// per-period tables sit in the middle; cluster assignments are cheap to
// refetch.
func DefaultPriority(k Kind) Priority {
	switch k {
	case KindGeometry:
		return PriorityHigh
	case KindTimeSeries, KindFlows:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Request identifies one artifact load.
type Request struct {
	Kind      Kind
	Commodity string
	Period    string
	Priority  Priority // zero value defers to the kind default
}

// Key is the cache and dedup key for the request.
func (r Request) Key() string {
	parts := []string{string(r.Kind)}
	if r.Commodity != "" {
		parts = append(parts, r.Commodity)
	}
	if r.Period != "" {
		parts = append(parts, r.Period)
	}
	return strings.Join(parts, "/")
}

// Path is the relative artifact path under a source root.
func (r Request) Path() string {
	return r.Key() + ".json"
}

func (r Request) priority() Priority {
	if r.Priority != 0 {
		return r.Priority
	}
	return DefaultPriority(r.Kind)
}

// Validate rejects requests that cannot form a key.
func (r Request) Validate() error {
	if r.Kind == "" {
		return eris.New("artifact: request kind is required")
	}
	return nil
}
