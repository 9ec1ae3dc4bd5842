package region

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultFuzzyThreshold is the minimum blended similarity for a
	// fuzzy match to be accepted as canonical.
	DefaultFuzzyThreshold = 0.7

	// DefaultMaxCandidates caps the ranked suggestions attached to a
	// resolution for diagnostics.
	DefaultMaxCandidates = 3
)

// Candidate is a ranked fuzzy-match suggestion.
type Candidate struct {
	ID    ID      `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Match describes the outcome of resolving one raw region name.
// When neither an exact nor a confident fuzzy match exists, ID carries
// the cleaned raw string so unmapped data stays detectable downstream.
type Match struct {
	ID         ID          `json:"id"`
	Exact      bool        `json:"exact"`
	Fuzzy      bool        `json:"fuzzy"`
	Score      float64     `json:"score,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Known reports whether the match resolved to a canonical identifier.
func (m Match) Known() bool {
	return m.Exact || m.Fuzzy
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithThreshold overrides the fuzzy acceptance threshold.
func WithThreshold(t float64) Option {
	return func(n *Normalizer) {
		if t > 0 {
			n.threshold = t
		}
	}
}

// WithMaxCandidates overrides the diagnostic candidate cap.
func WithMaxCandidates(c int) Option {
	return func(n *Normalizer) {
		if c > 0 {
			n.maxCandidates = c
		}
	}
}

// Normalizer resolves raw region names against a Gazetteer, caching
// results per cleaned input. Safe for concurrent use.
type Normalizer struct {
	gaz           *Gazetteer
	threshold     float64
	maxCandidates int

	mu    sync.RWMutex
	cache map[string]Match
}

// NewNormalizer creates a Normalizer over the given gazetteer.
func NewNormalizer(gaz *Gazetteer, opts ...Option) *Normalizer {
	n := &Normalizer{
		gaz:           gaz,
		threshold:     DefaultFuzzyThreshold,
		maxCandidates: DefaultMaxCandidates,
		cache:         make(map[string]Match),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize canonicalizes a raw region name. Empty input yields the
// empty identifier; an unresolvable name yields its cleaned form.
// Never fails.
func (n *Normalizer) Normalize(raw string) ID {
	return n.Resolve(raw).ID
}

// Resolve canonicalizes a raw region name and reports how the match
// was made, including ranked candidates when no exact match exists.
func (n *Normalizer) Resolve(raw string) Match {
	cleaned := Clean(raw)
	if cleaned == "" {
		return Match{}
	}

	n.mu.RLock()
	m, ok := n.cache[cleaned]
	n.mu.RUnlock()
	if ok {
		return m
	}

	m = n.resolve(cleaned)

	n.mu.Lock()
	n.cache[cleaned] = m
	n.mu.Unlock()
	return m
}

func (n *Normalizer) resolve(cleaned string) Match {
	if id, ok := n.gaz.index[cleaned]; ok {
		return Match{ID: id, Exact: true, Score: 1}
	}

	candidates := n.rank(cleaned)
	if len(candidates) > 0 && candidates[0].Score >= n.threshold {
		best := candidates[0]
		zap.L().Debug("region: fuzzy match accepted",
			zap.String("name", cleaned),
			zap.String("id", string(best.ID)),
			zap.Float64("score", best.Score))
		return Match{ID: best.ID, Fuzzy: true, Score: best.Score, Candidates: candidates}
	}

	zap.L().Warn("region: unmapped name",
		zap.String("name", cleaned),
		zap.Int("candidates", len(candidates)))
	return Match{ID: ID(cleaned), Candidates: candidates}
}

// rank scores cleaned against every indexed name, deduplicates by
// canonical id keeping the best score, and returns the top candidates.
func (n *Normalizer) rank(cleaned string) []Candidate {
	best := make(map[ID]float64)
	for _, entry := range n.gaz.names {
		score := Similarity(cleaned, entry.key)
		if score > best[entry.id] {
			best[entry.id] = score
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for id, score := range best {
		r := n.gaz.byID[id]
		candidates = append(candidates, Candidate{ID: id, Name: r.Name, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > n.maxCandidates {
		candidates = candidates[:n.maxCandidates]
	}
	return candidates
}

// Known reports whether id is a canonical gazetteer identifier.
func (n *Normalizer) Known(id ID) bool {
	return n.gaz.Known(id)
}

// Gazetteer returns the backing gazetteer.
func (n *Normalizer) Gazetteer() *Gazetteer {
	return n.gaz
}
