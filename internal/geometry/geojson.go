package geometry

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// RawFeature pairs a raw region name with its source geometry before
// normalization.
type RawFeature struct {
	Name     string
	Geometry geom.T
}

// nameKeys lists the property keys checked, in order, for a feature's
// region name.
var nameKeys = []string{"normalizedName", "shapeName", "region", "name"}

// LoadGeometry parses either a standard GeoJSON FeatureCollection or
// the legacy {points: [...], polygons: [...]} payload.
func LoadGeometry(data []byte) ([]RawFeature, error) {
	if bytes.Contains(data, []byte(`"FeatureCollection"`)) {
		return LoadFeatureCollection(data)
	}
	return loadLegacyPayload(data)
}

// LoadFeatureCollection extracts named features from GeoJSON. Features
// without a usable name property are skipped with a warning.
func LoadFeatureCollection(data []byte) ([]RawFeature, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "geometry: parse feature collection")
	}

	out := make([]RawFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		name := featureName(f.Properties)
		if name == "" {
			zap.L().Warn("geometry: feature without region name", zap.Int("index", i))
			continue
		}
		if f.Geometry == nil {
			zap.L().Warn("geometry: feature without geometry", zap.String("name", name))
			continue
		}
		out = append(out, RawFeature{Name: name, Geometry: f.Geometry})
	}
	return out, nil
}

func featureName(props map[string]interface{}) string {
	for _, key := range nameKeys {
		if v, ok := props[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

type legacyPoint struct {
	Name        string    `json:"name"`
	Region      string    `json:"region"`
	Coordinates []float64 `json:"coordinates"`
}

type legacyPolygon struct {
	Name        string        `json:"name"`
	Region      string        `json:"region"`
	Coordinates [][][]float64 `json:"coordinates"`
}

type legacyPayload struct {
	Points   []legacyPoint   `json:"points"`
	Polygons []legacyPolygon `json:"polygons"`
}

// loadLegacyPayload handles the pre-GeoJSON artifact shape. Malformed
// entries are skipped, not fatal.
func loadLegacyPayload(data []byte) ([]RawFeature, error) {
	var payload legacyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, eris.Wrap(err, "geometry: parse legacy payload")
	}

	out := make([]RawFeature, 0, len(payload.Points)+len(payload.Polygons))
	for _, p := range payload.Points {
		name := p.Name
		if name == "" {
			name = p.Region
		}
		if name == "" || len(p.Coordinates) < 2 {
			zap.L().Warn("geometry: skipping malformed legacy point", zap.String("name", name))
			continue
		}
		pt := geom.NewPointFlat(geom.XY, []float64{p.Coordinates[0], p.Coordinates[1]})
		out = append(out, RawFeature{Name: name, Geometry: pt})
	}
	for _, p := range payload.Polygons {
		name := p.Name
		if name == "" {
			name = p.Region
		}
		poly := ringsToPolygon(p.Coordinates)
		if name == "" || poly == nil {
			zap.L().Warn("geometry: skipping malformed legacy polygon", zap.String("name", name))
			continue
		}
		out = append(out, RawFeature{Name: name, Geometry: poly})
	}
	return out, nil
}

// ringsToPolygon builds a polygon from nested coordinate rings.
func ringsToPolygon(rings [][][]float64) *geom.Polygon {
	if len(rings) == 0 {
		return nil
	}

	poly := geom.NewPolygon(geom.XY)
	for i, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		flat := make([]float64, 0, len(ring)*2)
		for _, pt := range ring {
			if len(pt) < 2 {
				continue
			}
			flat = append(flat, pt[0], pt[1])
		}
		if len(flat) < 6 {
			continue
		}
		lr := geom.NewLinearRingFlat(geom.XY, flat)
		if err := poly.Push(lr); err != nil {
			zap.L().Debug("geometry: skipping malformed ring", zap.Int("ring", i), zap.Error(err))
			continue
		}
	}
	if poly.NumLinearRings() == 0 {
		return nil
	}
	return poly
}
