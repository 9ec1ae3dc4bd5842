// Package region canonicalizes free-text Yemen market region names to a
// fixed identifier set backed by an embedded governorate gazetteer.
package region

import (
	_ "embed"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var gazetteerYAML []byte

// ID is a canonical region identifier. It is stable across input
// spelling variants; unresolved names carry their cleaned raw form.
type ID string

// Region is a canonical governorate/market entry from the gazetteer.
type Region struct {
	ID         ID       `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	Lon        float64  `yaml:"lon" json:"lon"`
	Lat        float64  `yaml:"lat" json:"lat"`
	Population int64    `yaml:"population" json:"population,omitempty"`
	Aliases    []string `yaml:"aliases" json:"-"`
}

type gazetteerDoc struct {
	Regions   []Region `yaml:"regions"`
	Ambiguous []string `yaml:"ambiguous"`
}

type indexedName struct {
	key string
	id  ID
}

// Gazetteer holds the canonical region set plus a lookup index over
// cleaned ids, display names, and known alternate spellings.
type Gazetteer struct {
	regions   []Region
	byID      map[ID]Region
	index     map[string]ID
	names     []indexedName
	ambiguous []string
}

// LoadGazetteer parses the embedded governorate dataset.
func LoadGazetteer() (*Gazetteer, error) {
	return ParseGazetteer(gazetteerYAML)
}

// ParseGazetteer builds a Gazetteer from YAML. Conflicting index
// entries keep the first mapping and log a warning.
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var doc gazetteerDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "region: parse gazetteer")
	}
	if len(doc.Regions) == 0 {
		return nil, eris.New("region: gazetteer has no regions")
	}

	g := &Gazetteer{
		regions: doc.Regions,
		byID:    make(map[ID]Region, len(doc.Regions)),
		index:   make(map[string]ID),
	}
	for _, r := range doc.Regions {
		if _, dup := g.byID[r.ID]; dup {
			return nil, eris.Errorf("region: duplicate gazetteer id %q", r.ID)
		}
		g.byID[r.ID] = r

		g.addIndex(Clean(string(r.ID)), r.ID)
		g.addIndex(Clean(r.Name), r.ID)
		for _, a := range r.Aliases {
			g.addIndex(Clean(a), r.ID)
		}
	}
	for _, a := range doc.Ambiguous {
		g.ambiguous = append(g.ambiguous, Clean(a))
	}
	sort.Strings(g.ambiguous)

	return g, nil
}

func (g *Gazetteer) addIndex(key string, id ID) {
	if key == "" {
		return
	}
	if existing, ok := g.index[key]; ok {
		if existing != id {
			zap.L().Warn("region: conflicting gazetteer entry",
				zap.String("key", key),
				zap.String("kept", string(existing)),
				zap.String("ignored", string(id)))
		}
		return
	}
	g.index[key] = id
	g.names = append(g.names, indexedName{key: key, id: id})
}

// Lookup returns the Region for a canonical id.
func (g *Gazetteer) Lookup(id ID) (Region, bool) {
	r, ok := g.byID[id]
	return r, ok
}

// Known reports whether id is a canonical gazetteer identifier.
func (g *Gazetteer) Known(id ID) bool {
	_, ok := g.byID[id]
	return ok
}

// All returns the canonical regions ordered by id.
func (g *Gazetteer) All() []Region {
	out := make([]Region, len(g.regions))
	copy(out, g.regions)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of canonical regions.
func (g *Gazetteer) Len() int {
	return len(g.regions)
}

// AmbiguousNames returns cleaned raw names whose upstream mappings
// diverged historically; flagged for manual review, not errors.
func (g *Gazetteer) AmbiguousNames() []string {
	out := make([]string, len(g.ambiguous))
	copy(out, g.ambiguous)
	return out
}
