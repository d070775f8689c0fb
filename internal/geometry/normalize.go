package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/rotisserie/eris"
)

// Options tunes normalization.
type Options struct {
	// SimplifyTolerance enables Douglas-Peucker simplification of every ring
	// when positive. The value is in coordinate units (degrees).
	SimplifyTolerance float64
}

// Normalizer converts Input values into Geometry.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a Normalizer with the given options.
func NewNormalizer(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize converts in using default options.
func Normalize(in Input) (Geometry, error) {
	return NewNormalizer(Options{}).Normalize(in)
}

// Normalize validates and canonicalizes in. It returns an error wrapping
// ErrInvalid when no valid shape remains.
func (n *Normalizer) Normalize(in Input) (Geometry, error) {
	var mp orb.MultiPolygon

	switch v := in.(type) {
	case Ring:
		ring, ok := n.ring(v)
		if !ok {
			return Geometry{}, eris.Wrap(ErrInvalid, "ring needs at least 3 valid positions")
		}
		mp = orb.MultiPolygon{orb.Polygon{ring}}

	case Polygon:
		poly, ok := n.polygon(v)
		if !ok {
			return Geometry{}, eris.Wrap(ErrInvalid, "polygon outer ring is missing or invalid")
		}
		mp = orb.MultiPolygon{poly}

	case MultiPolygon:
		for _, p := range v {
			if poly, ok := n.polygon(p); ok {
				mp = append(mp, poly)
			}
		}
		if len(mp) == 0 {
			return Geometry{}, eris.Wrap(ErrInvalid, "multipolygon has no valid component")
		}

	case nil:
		return Geometry{}, eris.Wrap(ErrInvalid, "geometry is required")

	default:
		return Geometry{}, eris.Wrapf(ErrInvalid, "unsupported geometry kind %q", in.Kind())
	}

	return NewGeometry(mp), nil
}

// polygon validates the outer ring and keeps only the valid holes.
func (n *Normalizer) polygon(p Polygon) (orb.Polygon, bool) {
	if len(p) == 0 {
		return nil, false
	}
	outer, ok := n.ring(p[0])
	if !ok {
		return nil, false
	}

	poly := orb.Polygon{outer}
	for _, h := range p[1:] {
		if hole, ok := n.ring(h); ok {
			poly = append(poly, hole)
		}
	}
	return poly, true
}

func (n *Normalizer) ring(r Ring) (orb.Ring, bool) {
	ring, ok := closeRing(r)
	if !ok {
		return nil, false
	}
	if n.opts.SimplifyTolerance > 0 {
		simplified := simplify.DouglasPeucker(n.opts.SimplifyTolerance).Ring(ring.Clone())
		// Keep the original when simplification collapses the ring.
		if len(simplified) >= 4 && simplified[0] == simplified[len(simplified)-1] {
			ring = simplified
		}
	}
	return ring, true
}

// closeRing drops malformed positions and appends the first point when the
// ring is open. A ring needs three valid positions before closing and four
// after.
func closeRing(r Ring) (orb.Ring, bool) {
	ring := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		if p.valid() {
			ring = append(ring, orb.Point{p[0], p[1]})
		}
	}
	if len(ring) < 3 {
		return nil, false
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return nil, false
	}
	return ring, true
}
