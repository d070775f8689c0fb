// Package geometry validates caller-supplied query shapes and converts them
// into a single canonical multi-polygon.
//
// Callers hand in one of three input variants (Ring, Polygon, MultiPolygon).
// Normalization drops malformed positions, closes open rings and discards
// invalid holes or components; the result is a Geometry whose rings are all
// closed and carry at least four points.
package geometry

import (
	"encoding/binary"
	"math"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// ErrInvalid is returned when no valid shape can be produced from the input.
var ErrInvalid = eris.New("invalid geometry")

// Kind names an input variant.
type Kind string

// Input variants.
const (
	KindRing         Kind = "Ring"
	KindPolygon      Kind = "Polygon"
	KindMultiPolygon Kind = "MultiPolygon"
)

// Position is a raw [lon, lat] pair as supplied by the caller. Anything that
// is not exactly two finite numbers is ignored during normalization.
type Position []float64

func (p Position) valid() bool {
	if len(p) != 2 {
		return false
	}
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Input is a caller-supplied shape. It is implemented by Ring, Polygon and
// MultiPolygon only.
type Input interface {
	Kind() Kind
	isInput()
}

// Ring is a flat ordered sequence of positions forming a single outer ring.
type Ring []Position

// Polygon is an outer ring followed by zero or more hole rings.
type Polygon []Ring

// MultiPolygon is a set of polygons.
type MultiPolygon []Polygon

// Kind implements Input.
func (Ring) Kind() Kind { return KindRing }

// Kind implements Input.
func (Polygon) Kind() Kind { return KindPolygon }

// Kind implements Input.
func (MultiPolygon) Kind() Kind { return KindMultiPolygon }

func (Ring) isInput()         {}
func (Polygon) isInput()      {}
func (MultiPolygon) isInput() {}

// Geometry is a normalized query shape. Every ring is closed and holds at
// least four points. A single polygon is represented as a one-component
// multi-polygon so geometrically equal inputs share one canonical form.
type Geometry struct {
	shape orb.MultiPolygon
	bound orb.Bound
}

// NewGeometry wraps an already valid multi-polygon.
func NewGeometry(mp orb.MultiPolygon) Geometry {
	return Geometry{shape: mp, bound: mp.Bound()}
}

// MultiPolygon returns the normalized shape.
func (g Geometry) MultiPolygon() orb.MultiPolygon { return g.shape }

// Bound returns the bounding box of the shape.
func (g Geometry) Bound() orb.Bound { return g.bound }

// NumPolygons returns the number of polygon components.
func (g Geometry) NumPolygons() int { return len(g.shape) }

// Canonical returns a deterministic binary encoding of the shape, suitable as
// hash input. Two geometries with identical normalized coordinates always
// produce identical bytes.
func (g Geometry) Canonical() []byte {
	n := 4
	for _, poly := range g.shape {
		n += 4
		for _, ring := range poly {
			n += 4 + len(ring)*16
		}
	}

	buf := make([]byte, 0, n)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(g.shape)))
	for _, poly := range g.shape {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(poly)))
		for _, ring := range poly {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(ring)))
			for _, pt := range ring {
				buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(canonicalZero(pt[0])))
				buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(canonicalZero(pt[1])))
			}
		}
	}
	return buf
}

// canonicalZero folds -0 into +0 so that equal coordinates encode equally.
func canonicalZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
