package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// DefaultCentroidEpsilon is the signed-area magnitude below which the
// shoelace centroid is considered numerically degenerate.
const DefaultCentroidEpsilon = 1e-8

// ringCentroid computes the shoelace signed area and area-weighted
// centroid of a flat XY ring. The ring need not repeat its first
// vertex; indices wrap.
func ringCentroid(flat []float64, stride int) (cx, cy, area float64) {
	n := len(flat) / stride
	if n < 3 {
		return 0, 0, 0
	}

	var a, sx, sy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]
		cross := xi*yj - xj*yi
		a += cross
		sx += (xi + xj) * cross
		sy += (yi + yj) * cross
	}
	a /= 2
	if a == 0 {
		return 0, 0, 0
	}
	return sx / (6 * a), sy / (6 * a), a
}

// vertexMean returns the arithmetic mean of ring vertices, skipping a
// duplicated closing vertex so it is not counted twice.
func vertexMean(flat []float64, stride int) (float64, float64, bool) {
	n := len(flat) / stride
	if n == 0 {
		return 0, 0, false
	}
	if n > 1 && flat[0] == flat[(n-1)*stride] && flat[1] == flat[(n-1)*stride+1] {
		n--
	}

	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += flat[i*stride]
		sy += flat[i*stride+1]
	}
	return sx / float64(n), sy / float64(n), true
}

// PolygonCentroid computes the area-weighted centroid of a polygon's
// exterior ring, falling back to the arithmetic mean of vertices when
// the signed area magnitude is below epsilon.
func PolygonCentroid(p *geom.Polygon, epsilon float64) (Coordinate, bool) {
	if p == nil || p.NumLinearRings() == 0 {
		return Coordinate{}, false
	}
	ring := p.LinearRing(0)
	flat := ring.FlatCoords()
	stride := ring.Stride()
	if len(flat) < stride {
		return Coordinate{}, false
	}

	cx, cy, area := ringCentroid(flat, stride)
	if math.Abs(area) < epsilon {
		mx, my, ok := vertexMean(flat, stride)
		if !ok {
			return Coordinate{}, false
		}
		return Coordinate{Lon: mx, Lat: my}, true
	}
	return Coordinate{Lon: cx, Lat: cy}, true
}

// MultiPolygonCentroid computes the |area|-weighted centroid across all
// member polygons, falling back to the arithmetic mean of every vertex
// when the total area is degenerate.
func MultiPolygonCentroid(mp *geom.MultiPolygon, epsilon float64) (Coordinate, bool) {
	if mp == nil || mp.NumPolygons() == 0 {
		return Coordinate{}, false
	}

	var sx, sy, total float64
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 {
			continue
		}
		ring := p.LinearRing(0)
		cx, cy, area := ringCentroid(ring.FlatCoords(), ring.Stride())
		w := math.Abs(area)
		sx += cx * w
		sy += cy * w
		total += w
	}
	if total >= epsilon && total > 0 {
		return Coordinate{Lon: sx / total, Lat: sy / total}, true
	}

	mx, my, ok := vertexMean(mp.FlatCoords(), mp.Stride())
	if !ok {
		return Coordinate{}, false
	}
	return Coordinate{Lon: mx, Lat: my}, true
}
