// Package geometry validates and repairs market region coordinates:
// reference-table overrides, normalized-range rescaling, axis-swap
// detection, and polygon centroid derivation.
package geometry

// BBox is a geographic bounding box in lon/lat degrees.
type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// YemenBBox is the default validation window for Yemen market data.
func YemenBBox() BBox {
	return BBox{MinLon: 41, MinLat: 12, MaxLon: 54, MaxLat: 19}
}

// Contains reports whether the point lies inside the box (inclusive).
func (b BBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// Width returns the longitudinal extent in degrees.
func (b BBox) Width() float64 {
	return b.MaxLon - b.MinLon
}

// Height returns the latitudinal extent in degrees.
func (b BBox) Height() float64 {
	return b.MaxLat - b.MinLat
}
