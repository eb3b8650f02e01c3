package domain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// GeoRegion is a country boundary and its bounding box. Values are shared
// between callers and must not be mutated.
type GeoRegion struct {
	Code     string
	Boundary orb.MultiPolygon
	Bounds   BoundingBox

	// parts holds the bound of each member polygon, in Boundary order.
	parts []orb.Bound
}

// NewGeoRegion builds a region from a boundary, deriving its bounding box and
// the bound of every member polygon.
func NewGeoRegion(code string, boundary orb.MultiPolygon) GeoRegion {
	parts := make([]orb.Bound, len(boundary))
	for i, p := range boundary {
		parts[i] = p.Bound()
	}
	b := boundary.Bound()
	return GeoRegion{
		Code:     code,
		Boundary: boundary,
		Bounds: BoundingBox{
			MinLon: b.Min.Lon(),
			MinLat: b.Min.Lat(),
			MaxLon: b.Max.Lon(),
			MaxLat: b.Max.Lat(),
		},
		parts: parts,
	}
}

// Contains reports whether o falls inside the exact boundary. Holes are
// respected. Member polygons whose bound excludes o are not tested.
func (r GeoRegion) Contains(o Observation) bool {
	pt := orb.Point{o.Lon, o.Lat}
	if len(r.parts) != len(r.Boundary) {
		return planar.MultiPolygonContains(r.Boundary, pt)
	}
	for i, p := range r.Boundary {
		if r.parts[i].Contains(pt) && planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}
