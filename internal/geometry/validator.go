package geometry

import (
	"sync"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/suqdata/market-cli/internal/region"
)

// Coordinate is a validated lon/lat pair.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Option configures a Validator.
type Option func(*Validator)

// WithBBox overrides the validation bounding box.
func WithBBox(b BBox) Option {
	return func(v *Validator) { v.bbox = b }
}

// WithEpsilon overrides the centroid degeneracy threshold.
func WithEpsilon(e float64) Option {
	return func(v *Validator) {
		if e > 0 {
			v.epsilon = e
		}
	}
}

// Validator repairs and validates coordinates against a bounding box.
// A reference coordinate table takes precedence over derived geometry;
// results are cached per region identifier. Safe for concurrent use.
type Validator struct {
	bbox    BBox
	epsilon float64
	refs    map[region.ID]Coordinate

	mu    sync.RWMutex
	cache map[region.ID]*Coordinate
}

// NewValidator creates a Validator with the given reference table.
// refs may be nil when no ground-truth coordinates are available.
func NewValidator(refs map[region.ID]Coordinate, opts ...Option) *Validator {
	v := &Validator{
		bbox:    YemenBBox(),
		epsilon: DefaultCentroidEpsilon,
		refs:    refs,
		cache:   make(map[region.ID]*Coordinate),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RefTableFromGazetteer builds a reference coordinate table from the
// canonical gazetteer entries.
func RefTableFromGazetteer(gaz *region.Gazetteer) map[region.ID]Coordinate {
	refs := make(map[region.ID]Coordinate, gaz.Len())
	for _, r := range gaz.All() {
		refs[r.ID] = Coordinate{Lon: r.Lon, Lat: r.Lat}
	}
	return refs
}

// BBox returns the validation bounding box.
func (v *Validator) BBox() BBox {
	return v.bbox
}

// NormalizeCoordinates derives a validated lon/lat for a region. Rules
// apply in order: reference-table override, normalized-range rescale,
// axis swap, polygon centroid, bounding-box rejection. Returns nil for
// anything that cannot be repaired into the box; never panics.
// Results are cached by identifier when one is provided.
func (v *Validator) NormalizeCoordinates(g geom.T, id region.ID) *Coordinate {
	if id != "" {
		v.mu.RLock()
		cached, ok := v.cache[id]
		v.mu.RUnlock()
		if ok {
			if cached == nil {
				return nil
			}
			out := *cached
			return &out
		}
	}

	result := v.compute(g, id)

	if id != "" {
		v.mu.Lock()
		v.cache[id] = result
		v.mu.Unlock()
	}
	if result == nil {
		return nil
	}
	out := *result
	return &out
}

func (v *Validator) compute(g geom.T, id region.ID) *Coordinate {
	// Ground truth beats derived geometry.
	if id != "" {
		if ref, ok := v.refs[id]; ok {
			return v.finish(ref.Lon, ref.Lat, id)
		}
	}
	if g == nil {
		return nil
	}

	switch t := g.(type) {
	case *geom.Point:
		flat := t.FlatCoords()
		if len(flat) < 2 {
			return nil
		}
		return v.finish(flat[0], flat[1], id)

	case *geom.MultiPoint:
		mx, my, ok := vertexMean(t.FlatCoords(), t.Stride())
		if !ok {
			return nil
		}
		return v.finish(mx, my, id)

	case *geom.Polygon:
		c, ok := PolygonCentroid(t, v.epsilon)
		if !ok {
			return nil
		}
		return v.finish(c.Lon, c.Lat, id)

	case *geom.MultiPolygon:
		c, ok := MultiPolygonCentroid(t, v.epsilon)
		if !ok {
			return nil
		}
		return v.finish(c.Lon, c.Lat, id)

	default:
		zap.L().Debug("geometry: unsupported type",
			zap.String("region", string(id)))
		return nil
	}
}

// finish applies the repair rules to a candidate point and rejects
// anything still outside the bounding box.
func (v *Validator) finish(lon, lat float64, id region.ID) *Coordinate {
	if LooksNormalized(lon, lat) {
		lon, lat = v.Rescale(lon, lat)
	} else if v.LooksSwapped(lon, lat) {
		lon, lat = lat, lon
	}

	if !v.bbox.Contains(lon, lat) {
		zap.L().Warn("geometry: coordinates outside bounding box",
			zap.String("region", string(id)),
			zap.Float64("lon", lon),
			zap.Float64("lat", lat))
		return nil
	}
	return &Coordinate{Lon: lon, Lat: lat}
}

// LooksNormalized reports whether both values sit in the unit range,
// indicating coordinates scaled to 0-1 rather than degrees.
func LooksNormalized(lon, lat float64) bool {
	return lon >= 0 && lon <= 1 && lat >= 0 && lat <= 1
}

// LooksSwapped reports whether a point lands in the bounding box only
// with its axes exchanged.
func (v *Validator) LooksSwapped(lon, lat float64) bool {
	return !v.bbox.Contains(lon, lat) && v.bbox.Contains(lat, lon)
}

// Rescale maps unit-range values into the bounding box.
func (v *Validator) Rescale(lon, lat float64) (float64, float64) {
	return v.bbox.MinLon + lon*v.bbox.Width(), v.bbox.MinLat + lat*v.bbox.Height()
}
