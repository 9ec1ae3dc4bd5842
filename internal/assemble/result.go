package assemble

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/suqdata/market-cli/internal/model"
	"github.com/suqdata/market-cli/internal/region"
)

// Sources and reasons attached to unmatched diagnostics.
const (
	SourceCluster    = "cluster"
	SourceTimeSeries = "time_series"
	SourceFlow       = "flow"

	ReasonNoGeometry = "no_geometry"
)

// ResolvedCluster is a cluster with market names mapped to canonical ids.
// Markets holds only the members that placed on the map.
type ResolvedCluster struct {
	ClusterID  int         `json:"cluster_id"`
	MainMarket region.ID   `json:"main_market"`
	Markets    []region.ID `json:"markets"`
}

// Unmatched flags one raw name that could not be placed on the map.
type Unmatched struct {
	RawName    string             `json:"raw_name"`
	RegionID   region.ID          `json:"region_id"`
	Source     string             `json:"source"`
	Reason     string             `json:"reason"`
	Candidates []region.Candidate `json:"candidates,omitempty"`
}

// Result is the unified output of one assembly pass.
type Result struct {
	Commodity    string             `json:"commodity"`
	Period       string             `json:"period"`
	Features     []model.Feature    `json:"features"`
	Clusters     []ResolvedCluster  `json:"clusters"`
	Flows        []model.FlowRecord `json:"flows"`
	Unmatched    []Unmatched        `json:"unmatched,omitempty"`
	InvalidLinks []model.FlowRecord `json:"invalid_links,omitempty"`
}

// diagnostics is an insertion-ordered set of unmatched records.
type diagnostics struct {
	seen map[string]bool
	list []Unmatched
}

func newDiagnostics() *diagnostics {
	return &diagnostics{seen: make(map[string]bool)}
}

func (d *diagnostics) add(u Unmatched) {
	key := u.Source + "|" + u.RawName + "|" + u.Reason
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	d.list = append(d.list, u)
}

// FeatureCollection renders the assembled features as GeoJSON points.
// Nullable analytics fields come through as explicit JSON nulls so "no
// data" never reads as zero.
func (r *Result) FeatureCollection() *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(r.Features))}
	for i := range r.Features {
		fc.Features = append(fc.Features, featureToGeoJSON(&r.Features[i]))
	}
	return fc
}

func featureToGeoJSON(f *model.Feature) *geojson.Feature {
	props := map[string]interface{}{
		"region_id":          string(f.RegionID),
		"cluster_id":         f.ClusterID,
		"main_market":        f.MainMarket,
		"commodity":          f.Properties.Commodity,
		"period":             f.Properties.Period,
		"display_name":       f.Properties.DisplayName,
		"avg_usd_price":      nullableFloat(f.Properties.AvgUSDPrice),
		"conflict_intensity": nullableFloat(f.Properties.ConflictIntensity),
		"population":         nullableInt(f.Properties.Population),
	}
	return &geojson.Feature{
		Geometry:   geom.NewPointFlat(geom.XY, []float64{f.Lon, f.Lat}),
		Properties: props,
	}
}

// nullableFloat lifts the pointer into an untyped nil so map consumers and
// JSON encoding both see a plain null.
func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
