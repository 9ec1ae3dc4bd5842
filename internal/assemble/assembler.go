// Package assemble joins normalized region names, repaired geometry, and
// tabular records into the unified feature set consumed by rendering and
// network analysis.
package assemble

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/suqdata/market-cli/internal/geometry"
	"github.com/suqdata/market-cli/internal/model"
	"github.com/suqdata/market-cli/internal/region"
)

// Inputs is everything one assembly pass consumes.
type Inputs struct {
	Geometry   []geometry.RawFeature
	TimeSeries []model.TimeSeriesRecord
	Flows      []model.FlowRecord
	Clusters   []model.ClusterRecord
	Commodity  string
	Period     string
}

// Assembler resolves raw market names through the injected normalizer and
// places them through the injected validator. Both collaborators carry their
// own caches, so one assembler can serve many commodity/period passes.
type Assembler struct {
	normalizer *region.Normalizer
	validator  *geometry.Validator
}

// New returns an assembler using the given normalizer and validator.
func New(n *region.Normalizer, v *geometry.Validator) *Assembler {
	return &Assembler{normalizer: n, validator: v}
}

type seriesEntry struct {
	rec        model.TimeSeriesRecord
	rawName    string
	candidates []region.Candidate
}

// Assemble builds the unified feature set for one commodity/period pass.
// Every cluster market resolves through the normalizer and places through
// the validator cache; markets that place but have no time-series record for
// the period still emit a feature with null-valued analytics properties.
// Raw records that cannot be placed accumulate into Result.Unmatched, and
// flows with unusable endpoints into Result.InvalidLinks.
func (a *Assembler) Assemble(ctx context.Context, in Inputs) (*Result, error) {
	if a.normalizer == nil || a.validator == nil {
		return nil, eris.New("assemble: normalizer and validator are required")
	}

	res := &Result{Commodity: in.Commodity, Period: in.Period}
	diag := newDiagnostics()

	rawGeom := a.indexGeometry(in.Geometry)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "assemble: canceled")
	}

	series := a.indexTimeSeries(in)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "assemble: canceled")
	}

	a.buildFeatures(in, rawGeom, series, res, diag)
	a.canonicalizeFlows(in, rawGeom, res, diag)

	// Period records whose region never placed are reported, not dropped.
	seriesIDs := make([]region.ID, 0, len(series))
	for id := range series {
		seriesIDs = append(seriesIDs, id)
	}
	sort.Slice(seriesIDs, func(i, j int) bool { return seriesIDs[i] < seriesIDs[j] })
	for _, id := range seriesIDs {
		if a.locate(id, rawGeom) == nil {
			entry := series[id]
			diag.add(Unmatched{
				RawName:    entry.rawName,
				RegionID:   id,
				Source:     SourceTimeSeries,
				Reason:     ReasonNoGeometry,
				Candidates: entry.candidates,
			})
		}
	}
	res.Unmatched = diag.list

	zap.L().Info("assemble: unified features built",
		zap.String("commodity", in.Commodity),
		zap.String("period", in.Period),
		zap.Int("features", len(res.Features)),
		zap.Int("clusters", len(res.Clusters)),
		zap.Int("flows", len(res.Flows)),
		zap.Int("unmatched", len(res.Unmatched)),
		zap.Int("invalid_links", len(res.InvalidLinks)),
	)
	return res, nil
}

// indexGeometry resolves raw feature names to canonical ids. The first
// geometry seen for an id wins; later duplicates are redundant because the
// validator caches per id anyway.
func (a *Assembler) indexGeometry(features []geometry.RawFeature) map[region.ID]geom.T {
	idx := make(map[region.ID]geom.T, len(features))
	for _, f := range features {
		match := a.normalizer.Resolve(f.Name)
		if match.ID == "" {
			continue
		}
		if _, ok := idx[match.ID]; !ok {
			idx[match.ID] = f.Geometry
		}
	}
	return idx
}

// indexTimeSeries keeps the period/commodity rows keyed by canonical region.
// The last row wins when a region repeats within the slice.
func (a *Assembler) indexTimeSeries(in Inputs) map[region.ID]seriesEntry {
	idx := make(map[region.ID]seriesEntry)
	for _, r := range in.TimeSeries {
		if !periodMatches(r.Month, in.Period) || !commodityMatches(r.Commodity, in.Commodity) {
			continue
		}
		match := a.normalizer.Resolve(r.Region)
		if match.ID == "" {
			continue
		}
		entry := seriesEntry{rec: r, rawName: r.Region}
		if !match.Known() {
			entry.candidates = match.Candidates
		}
		idx[match.ID] = entry
	}
	return idx
}

func (a *Assembler) buildFeatures(in Inputs, rawGeom map[region.ID]geom.T, series map[region.ID]seriesEntry, res *Result, diag *diagnostics) {
	for _, c := range in.Clusters {
		mainID := a.normalizer.Resolve(c.MainMarket).ID
		rc := ResolvedCluster{ClusterID: c.ClusterID, MainMarket: mainID}

		seen := make(map[region.ID]bool)
		for _, name := range c.Markets() {
			match := a.normalizer.Resolve(name)
			if match.ID == "" || seen[match.ID] {
				continue
			}
			seen[match.ID] = true

			coord := a.locate(match.ID, rawGeom)
			if coord == nil {
				diag.add(Unmatched{
					RawName:    name,
					RegionID:   match.ID,
					Source:     SourceCluster,
					Reason:     ReasonNoGeometry,
					Candidates: openCandidates(match),
				})
				continue
			}

			rc.Markets = append(rc.Markets, match.ID)
			res.Features = append(res.Features, model.Feature{
				RegionID:   match.ID,
				ClusterID:  c.ClusterID,
				MainMarket: match.ID == mainID,
				Lon:        coord.Lon,
				Lat:        coord.Lat,
				Properties: a.properties(match.ID, series, in),
			})
		}
		res.Clusters = append(res.Clusters, rc)
	}
}

// canonicalizeFlows rewrites flow endpoints to canonical ids. Flows for
// other periods are skipped outright; flows whose endpoints collapse,
// vanish, or never place are kept aside as invalid links.
func (a *Assembler) canonicalizeFlows(in Inputs, rawGeom map[region.ID]geom.T, res *Result, diag *diagnostics) {
	for _, f := range in.Flows {
		if !periodMatches(f.Period, in.Period) {
			continue
		}
		src := a.normalizer.Resolve(f.Source)
		dst := a.normalizer.Resolve(f.Target)
		if src.ID == "" || dst.ID == "" || src.ID == dst.ID {
			res.InvalidLinks = append(res.InvalidLinks, f)
			continue
		}

		valid := true
		for _, end := range []struct {
			raw   string
			match region.Match
		}{{f.Source, src}, {f.Target, dst}} {
			if a.locate(end.match.ID, rawGeom) == nil {
				diag.add(Unmatched{
					RawName:    end.raw,
					RegionID:   end.match.ID,
					Source:     SourceFlow,
					Reason:     ReasonNoGeometry,
					Candidates: openCandidates(end.match),
				})
				valid = false
			}
		}
		if !valid {
			res.InvalidLinks = append(res.InvalidLinks, f)
			continue
		}

		cf := f
		cf.Source = string(src.ID)
		cf.Target = string(dst.ID)
		res.Flows = append(res.Flows, cf)
	}
}

// locate funnels every placement through the validator so its per-id cache
// stays the single source of truth.
func (a *Assembler) locate(id region.ID, rawGeom map[region.ID]geom.T) *geometry.Coordinate {
	return a.validator.NormalizeCoordinates(rawGeom[id], id)
}

func (a *Assembler) properties(id region.ID, series map[region.ID]seriesEntry, in Inputs) model.FeatureProperties {
	props := model.FeatureProperties{Commodity: in.Commodity, Period: in.Period}
	if reg, ok := a.normalizer.Gazetteer().Lookup(id); ok {
		props.DisplayName = reg.Name
		if reg.Population > 0 {
			props.Population = model.Int64(reg.Population)
		}
	}
	if entry, ok := series[id]; ok {
		props.AvgUSDPrice = entry.rec.EffectivePrice()
		props.ConflictIntensity = entry.rec.ConflictIntensity
	}
	return props
}

func openCandidates(m region.Match) []region.Candidate {
	if m.Known() {
		return nil
	}
	return m.Candidates
}

// periodMatches treats an empty requested or record period as a wildcard so
// pre-sliced single-period artifacts join without redundant tagging.
func periodMatches(month, period string) bool {
	if period == "" || month == "" {
		return true
	}
	return month == period
}

func commodityMatches(recorded, requested string) bool {
	if requested == "" || recorded == "" {
		return true
	}
	return strings.EqualFold(recorded, requested)
}
