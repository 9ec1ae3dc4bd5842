package geometry

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ImportShapefile reads region boundaries from an ESRI shapefile,
// taking each record's name from the nameField attribute. Records with
// a missing name or unusable shape are skipped with a warning.
func ImportShapefile(path, nameField string) ([]RawFeature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, nameField)
	if nameIdx < 0 {
		return nil, eris.Errorf("geometry: shapefile field %q not found", nameField)
	}

	log := zap.L().With(zap.String("component", "geometry.shapefile"))

	var out []RawFeature
	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			continue
		}

		name := strings.TrimSpace(reader.Attribute(nameIdx))
		if name == "" {
			log.Warn("shapefile record without name attribute")
			continue
		}

		g := shapeGeom(shape)
		if g == nil {
			log.Warn("shapefile record with unusable shape", zap.String("name", name))
			continue
		}
		out = append(out, RawFeature{Name: name, Geometry: g})
	}

	log.Info("shapefile loaded", zap.String("path", path), zap.Int("records", len(out)))
	return out, nil
}

// shapeGeom converts a go-shp shape to go-geom. Returns nil for
// unsupported or empty shapes.
func shapeGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geometry: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geometry: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// fieldIndex finds a DBF field by name, case-insensitive.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
