package geometry

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare() Ring {
	return Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
}

func TestNormalize_ClosedRing(t *testing.T) {
	g, err := Normalize(unitSquare())
	require.NoError(t, err)

	require.Equal(t, 1, g.NumPolygons())
	ring := g.MultiPolygon()[0][0]
	assert.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[len(ring)-1])
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, g.Bound())
}

func TestNormalize_ClosesOpenRing(t *testing.T) {
	g, err := Normalize(Ring{{0, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)

	ring := g.MultiPolygon()[0][0]
	assert.Len(t, ring, 4)
	assert.Equal(t, orb.Point{0, 0}, ring[3])
}

func TestNormalize_RingProperties(t *testing.T) {
	rings := []Ring{
		{{0, 0}, {2, 0}, {1, 1}},
		{{0, 0}, {2, 0}, {1, 1}, {0, 0}},
		{{-97.7, 30.2}, {-97.6, 30.2}, {-97.6, 30.3}, {-97.7, 30.3}},
		{{10, 10}, {11, 10}, {11, 11}, {10, 11}, {10.5, 10.5}},
	}
	for _, r := range rings {
		g, err := Normalize(r)
		require.NoError(t, err)
		ring := g.MultiPolygon()[0][0]
		assert.GreaterOrEqual(t, len(ring), 4)
		assert.Equal(t, ring[0], ring[len(ring)-1])
	}
}

func TestNormalize_DropsMalformedPositions(t *testing.T) {
	ring := Ring{
		{0, 0},
		{math.NaN(), 1},
		{0, 1},
		{1, 2, 3},
		{1, 1},
		{math.Inf(1), 0},
		{1},
		{1, 0},
	}
	g, err := Normalize(ring)
	require.NoError(t, err)

	assert.Equal(t, orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}, g.MultiPolygon()[0][0])
}

func TestNormalize_InvalidRings(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"nil", nil},
		{"empty ring", Ring{}},
		{"two points", Ring{{0, 0}, {1, 1}}},
		{"three points already closed", Ring{{0, 0}, {1, 1}, {0, 0}}},
		{"too few valid", Ring{{0, 0}, {math.NaN(), 0}, {1}, {1, 1}}},
		{"empty polygon", Polygon{}},
		{"polygon bad outer", Polygon{{{0, 0}, {1, 1}}, unitSquare()}},
		{"empty multipolygon", MultiPolygon{}},
		{"multipolygon all bad", MultiPolygon{{{{0, 0}}}, {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalid))
		})
	}
}

func TestNormalize_PolygonDropsInvalidHoles(t *testing.T) {
	outer := Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	goodHole := Ring{{2, 2}, {4, 2}, {4, 4}, {2, 4}}
	badHole := Ring{{5, 5}, {6, 6}}

	g, err := Normalize(Polygon{outer, badHole, goodHole})
	require.NoError(t, err)

	poly := g.MultiPolygon()[0]
	require.Len(t, poly, 2)
	assert.Len(t, poly[1], 5)
	assert.Equal(t, orb.Point{2, 2}, poly[1][0])
}

func TestNormalize_MultiPolygonDropsInvalidComponents(t *testing.T) {
	good := Polygon{unitSquare()}
	bad := Polygon{{{0, 0}}}

	g, err := Normalize(MultiPolygon{bad, good, bad})
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumPolygons())
}

func TestNormalize_Simplify(t *testing.T) {
	// Nearly collinear midpoints collapse under a coarse tolerance.
	ring := Ring{{0, 0}, {0.5, 0.0001}, {1, 0}, {1, 1}, {0.5, 1.0001}, {0, 1}, {0, 0}}

	plain, err := Normalize(ring)
	require.NoError(t, err)
	assert.Len(t, plain.MultiPolygon()[0][0], 7)

	simplified, err := NewNormalizer(Options{SimplifyTolerance: 0.01}).Normalize(ring)
	require.NoError(t, err)
	got := simplified.MultiPolygon()[0][0]
	assert.Less(t, len(got), 7)
	assert.GreaterOrEqual(t, len(got), 4)
	assert.Equal(t, got[0], got[len(got)-1])
}

func TestNormalize_SimplifyKeepsDegenerateRing(t *testing.T) {
	// A tiny triangle would collapse below four points; the original is kept.
	ring := Ring{{0, 0}, {0.001, 0}, {0, 0.001}}

	g, err := NewNormalizer(Options{SimplifyTolerance: 1}).Normalize(ring)
	require.NoError(t, err)
	assert.Len(t, g.MultiPolygon()[0][0], 4)
}

func TestCanonical_EqualAfterNormalization(t *testing.T) {
	open, err := Normalize(Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}})
	require.NoError(t, err)
	closed, err := Normalize(unitSquare())
	require.NoError(t, err)
	poly, err := Normalize(Polygon{unitSquare()})
	require.NoError(t, err)
	multi, err := Normalize(MultiPolygon{{unitSquare()}})
	require.NoError(t, err)

	assert.Equal(t, closed.Canonical(), open.Canonical())
	assert.Equal(t, closed.Canonical(), poly.Canonical())
	assert.Equal(t, closed.Canonical(), multi.Canonical())
}

func TestCanonical_DiffersForDifferentShapes(t *testing.T) {
	a, err := Normalize(unitSquare())
	require.NoError(t, err)
	b, err := Normalize(Ring{{0, 0}, {0, 2}, {2, 2}, {2, 0}})
	require.NoError(t, err)

	assert.NotEqual(t, a.Canonical(), b.Canonical())
}

func TestCanonical_NegativeZero(t *testing.T) {
	a, err := Normalize(Ring{{0, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)
	b, err := Normalize(Ring{{math.Copysign(0, -1), 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)

	assert.Equal(t, a.Canonical(), b.Canonical())
}
