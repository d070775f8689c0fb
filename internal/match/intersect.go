package match

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zipmatch/internal/catalog"
)

// intersects reports whether the region boundary and the query share any
// point. The shapes intersect when an edge of one touches an edge of the
// other, or when one lies entirely inside the other.
func (m *Matcher) intersects(r *catalog.Region) (bool, error) {
	if !r.Bound.Intersects(m.bound) {
		return false, nil
	}

	for _, poly := range r.Boundary {
		for _, ring := range poly {
			hit, err := m.ringTouches(ring)
			if err != nil {
				return false, eris.Wrapf(err, "region %s", r.ID)
			}
			if hit {
				return true, nil
			}
		}
	}

	// No edges meet: either one shape contains the other or they are
	// disjoint. One vertex per ring decides which.
	for _, poly := range r.Boundary {
		if len(poly) > 0 && len(poly[0]) > 0 && m.containsPoint(poly[0][0]) {
			return true, nil
		}
	}
	for _, q := range m.query {
		if len(q) > 0 && len(q[0]) > 0 && planar.MultiPolygonContains(r.Boundary, q[0][0]) {
			return true, nil
		}
	}
	return false, nil
}

// ringTouches reports whether any edge of ring meets any query edge.
func (m *Matcher) ringTouches(ring orb.Ring) (bool, error) {
	rb := ring.Bound()
	if !rb.Intersects(m.bound) {
		return false, nil
	}

	for i := 1; i < len(ring); i++ {
		a, b := ring[i-1], ring[i]
		if !finite(a) || !finite(b) {
			return false, eris.Wrap(ErrCandidateMatch, "non-finite boundary coordinate")
		}
		sb := segmentBound(a, b)
		if !sb.Intersects(m.bound) {
			continue
		}
		for _, q := range m.rings {
			if !sb.Intersects(q.bound) {
				continue
			}
			for j := 1; j < len(q.ring); j++ {
				c, d := q.ring[j-1], q.ring[j]
				if !sb.Intersects(segmentBound(c, d)) {
					continue
				}
				if segmentsIntersect(a, b, c, d) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func segmentBound(a, b orb.Point) orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Min(a[0], b[0]), math.Min(a[1], b[1])},
		Max: orb.Point{math.Max(a[0], b[0]), math.Max(a[1], b[1])},
	}
}

// segmentsIntersect reports whether the closed segments ab and cd share at
// least one point, including collinear overlap and shared endpoints.
func segmentsIntersect(a, b, c, d orb.Point) bool {
	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}
	switch {
	case o1 == 0 && onSegment(a, b, c):
		return true
	case o2 == 0 && onSegment(a, b, d):
		return true
	case o3 == 0 && onSegment(c, d, a):
		return true
	case o4 == 0 && onSegment(c, d, b):
		return true
	}
	return false
}

// orientation returns 1 for a counter-clockwise turn a→b→c, -1 for
// clockwise and 0 for collinear points.
func orientation(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// onSegment reports whether p, known to be collinear with ab, lies within
// the segment's extent.
func onSegment(a, b, p orb.Point) bool {
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) && !math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}
