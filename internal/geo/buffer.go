package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/otp-analysis/pkg/otp/models"
)

// DefaultBufferDegrees is the radius used to inflate destination points.
const DefaultBufferDegrees = 0.00001

const bufferSegments = 16

// Buffer is a point inflated by a small radius (in degrees) so that
// containment tests against catchments do not hinge on a zero-area point
// landing exactly on a boundary.
type Buffer struct {
	ID     string
	Center orb.Point
	Radius float64
}

// NewBuffers inflates every location of ps by radius.
func NewBuffers(ps models.PointSet, radius float64) []Buffer {
	out := make([]Buffer, len(ps.Locations))
	for i, loc := range ps.Locations {
		out[i] = Buffer{ID: loc.ID, Center: loc.Point, Radius: radius}
	}
	return out
}

// Polygon approximates the buffer with a regular polygon.
func (b Buffer) Polygon() orb.Polygon {
	ring := make(orb.Ring, 0, bufferSegments+1)
	for i := 0; i < bufferSegments; i++ {
		a := 2 * math.Pi * float64(i) / bufferSegments
		ring = append(ring, orb.Point{
			b.Center.X() + b.Radius*math.Cos(a),
			b.Center.Y() + b.Radius*math.Sin(a),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// Intersects reports whether the buffer overlaps any polygon of mp.
func (b Buffer) Intersects(mp orb.MultiPolygon) bool {
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		if planar.PolygonContains(poly, b.Center) {
			return true
		}
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				if planar.DistanceFromSegment(ring[i-1], ring[i], b.Center) <= b.Radius {
					return true
				}
			}
		}
	}
	return false
}

// IntersectingIDs returns the identifiers of the buffers that overlap at
// least one of the catchments.
func IntersectingIDs(buffers []Buffer, catchments []models.Catchment) map[string]bool {
	ids := make(map[string]bool)
	if len(catchments) == 0 {
		return ids
	}
	bound := Bound(catchments)
	for _, b := range buffers {
		if ids[b.ID] || !bound.Pad(b.Radius).Contains(b.Center) {
			continue
		}
		for _, c := range catchments {
			if b.Intersects(c.Geometry) {
				ids[b.ID] = true
				break
			}
		}
	}
	return ids
}

// Bound returns the bounding box of all catchment geometries.
func Bound(catchments []models.Catchment) orb.Bound {
	var bound orb.Bound
	for i, c := range catchments {
		if i == 0 {
			bound = c.Geometry.Bound()
			continue
		}
		bound = bound.Union(c.Geometry.Bound())
	}
	return bound
}
