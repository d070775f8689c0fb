package catalog

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
)

// errInvalidRegion marks a record that cannot become an indexed Region.
var errInvalidRegion = eris.New("catalog: invalid region")

// PointSource records where a representative point came from.
type PointSource string

// Representative point origins.
const (
	PointInterior PointSource = "interior"
	PointCentroid PointSource = "centroid"
)

// Record is one raw feature read from a Source, before validation.
type Record struct {
	ID       string
	Geometry orb.Geometry
	// Interior is the dataset-provided interior point, if any.
	Interior *orb.Point
}

// Region is one indexed postal-code boundary.
type Region struct {
	ID          string           `json:"id"`
	Boundary    orb.MultiPolygon `json:"-"`
	Bound       orb.Bound        `json:"bound"`
	Point       orb.Point        `json:"point"`
	PointSource PointSource      `json:"point_source"`
}

// NewRegion validates rec and derives its bounding box and representative
// point. Malformed rings are dropped; a record without an identifier or
// without any remaining polygon is rejected.
func NewRegion(rec Record) (Region, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return Region{}, eris.Wrap(errInvalidRegion, "missing identifier")
	}

	boundary := cleanBoundary(rec.Geometry)
	if len(boundary) == 0 {
		return Region{}, eris.Wrapf(errInvalidRegion, "region %s has no valid polygon", id)
	}

	r := Region{ID: id, Boundary: boundary, Bound: boundary.Bound()}
	if rec.Interior != nil && finitePoint(*rec.Interior) {
		r.Point = *rec.Interior
		r.PointSource = PointInterior
	} else {
		r.Point = centroid(boundary)
		r.PointSource = PointCentroid
	}
	return r, nil
}

// cleanBoundary converts g into a multi-polygon holding only well-formed
// rings. Polygons whose outer ring is malformed are dropped entirely.
func cleanBoundary(g orb.Geometry) orb.MultiPolygon {
	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	default:
		return nil
	}

	var out orb.MultiPolygon
	for _, p := range polys {
		if len(p) == 0 || !closedRing(p[0]) {
			continue
		}
		poly := orb.Polygon{p[0]}
		for _, hole := range p[1:] {
			if closedRing(hole) {
				poly = append(poly, hole)
			}
		}
		out = append(out, poly)
	}
	return out
}

// closedRing reports whether r is a closed ring of at least four finite points.
func closedRing(r orb.Ring) bool {
	if len(r) < 4 || r[0] != r[len(r)-1] {
		return false
	}
	for _, pt := range r {
		if !finitePoint(pt) {
			return false
		}
	}
	return true
}

func finitePoint(p orb.Point) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// centroid returns the area-weighted centroid of mp. Zero-area shapes fall
// back to the mean of the outer ring vertices.
func centroid(mp orb.MultiPolygon) orb.Point {
	c, area := planar.CentroidArea(mp)
	if area != 0 && finitePoint(c) {
		return c
	}

	var sx, sy float64
	var n int
	for _, poly := range mp {
		outer := poly[0]
		// Skip the closing point.
		for _, pt := range outer[:len(outer)-1] {
			sx += pt[0]
			sy += pt[1]
			n++
		}
	}
	return orb.Point{sx / float64(n), sy / float64(n)}
}
