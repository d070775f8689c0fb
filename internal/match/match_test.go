package match

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zipmatch/internal/catalog"
	"github.com/sells-group/zipmatch/internal/geometry"
)

func square(minX, minY, size float64) orb.Ring {
	return orb.Ring{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}
}

func queryRing(t *testing.T, positions ...geometry.Position) geometry.Geometry {
	t.Helper()
	g, err := geometry.Normalize(geometry.Ring(positions))
	require.NoError(t, err)
	return g
}

func unitSquare(t *testing.T) geometry.Geometry {
	return queryRing(t, geometry.Position{0, 0}, geometry.Position{0, 1}, geometry.Position{1, 1}, geometry.Position{1, 0}, geometry.Position{0, 0})
}

func region(t *testing.T, id string, point *orb.Point, polys ...orb.Polygon) *catalog.Region {
	t.Helper()
	var g orb.Geometry = orb.MultiPolygon(polys)
	r, err := catalog.NewRegion(catalog.Record{ID: id, Geometry: g, Interior: point})
	require.NoError(t, err)
	return &r
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeIntersects, false},
		{"intersects", ModeIntersects, false},
		{"centroid", ModeCentroid, false},
		{"nearby", "", true},
		{"Centroid", "", true},
		{" centroid", "", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrInvalidMode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_UnitSquareBothModes(t *testing.T) {
	r := region(t, "00001", &orb.Point{0.5, 0.5}, orb.Polygon{square(0, 0, 1)})

	for _, mode := range []Mode{ModeCentroid, ModeIntersects} {
		ok, err := New(unitSquare(t), mode).Match(r)
		require.NoError(t, err)
		assert.True(t, ok, mode)
	}
}

func TestMatch_PointOutsideBoundaryOverlaps(t *testing.T) {
	// Region straddles the query's right edge; its point lies outside.
	r := region(t, "00002", &orb.Point{1.5, 0.5}, orb.Polygon{square(0.5, 0, 1.5)})

	ok, err := New(unitSquare(t), ModeCentroid).Match(r)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = New(unitSquare(t), ModeIntersects).Match(r)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatch_Intersects(t *testing.T) {
	query := unitSquare(t)
	tests := []struct {
		name  string
		polys []orb.Polygon
		point orb.Point
		want  bool
	}{
		{"disjoint", []orb.Polygon{{square(5, 5, 1)}}, orb.Point{5.5, 5.5}, false},
		{"shares edge", []orb.Polygon{{square(1, 0, 1)}}, orb.Point{1.5, 0.5}, true},
		{"shares vertex", []orb.Polygon{{square(1, 1, 1)}}, orb.Point{1.5, 1.5}, true},
		{"region contains query", []orb.Polygon{{square(-5, -5, 20)}}, orb.Point{8, 8}, true},
		{"query inside region hole", []orb.Polygon{{square(-5, -5, 20), square(-1, -1, 3)}}, orb.Point{8, 8}, false},
		{"bound overlaps but shape does not", []orb.Polygon{{orb.Ring{{0.8, 2}, {2, 0.8}, {2, 2}, {0.8, 2}}}}, orb.Point{1.8, 1.8}, false},
		{"second component overlaps", []orb.Polygon{{square(7, 7, 1)}, {square(0.9, 0.9, 0.5)}}, orb.Point{7.5, 7.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt := tt.point
			ok, err := New(query, ModeIntersects).Match(region(t, "r", &pt, tt.polys...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestMatch_QueryInsideRegion(t *testing.T) {
	small := queryRing(t, geometry.Position{2, 2}, geometry.Position{2, 2.1}, geometry.Position{2.1, 2.1}, geometry.Position{2.1, 2})
	r := region(t, "big", &orb.Point{9, 9}, orb.Polygon{square(0, 0, 10)})

	ok, err := New(small, ModeCentroid).Match(r)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = New(small, ModeIntersects).Match(r)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatch_QueryHoleExcludesCentroid(t *testing.T) {
	g, err := geometry.Normalize(geometry.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	})
	require.NoError(t, err)

	r := region(t, "hole", &orb.Point{5, 5}, orb.Polygon{square(4.5, 4.5, 1)})
	ok, err := New(g, ModeCentroid).Match(r)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = New(g, ModeIntersects).Match(r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_NonFiniteBoundaryFails(t *testing.T) {
	r := &catalog.Region{
		ID:       "bad",
		Boundary: orb.MultiPolygon{{orb.Ring{{0.2, 0.2}, {math.NaN(), 0.5}, {0.8, 0.8}, {0.2, 0.8}, {0.2, 0.2}}}},
		Bound:    orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
		Point:    orb.Point{5, 5},
	}

	ok, err := New(unitSquare(t), ModeIntersects).Match(r)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrCandidateMatch))
	assert.False(t, ok)
}

func TestMatch_EmptyBoundaryRing(t *testing.T) {
	r := &catalog.Region{
		ID:       "empty",
		Boundary: orb.MultiPolygon{{orb.Ring{}}},
		Bound:    orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
		Point:    orb.Point{5, 5},
	}

	ok, err := New(unitSquare(t), ModeIntersects).Match(r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, d orb.Point
		want       bool
	}{
		{"crossing", orb.Point{0, 0}, orb.Point{2, 2}, orb.Point{0, 2}, orb.Point{2, 0}, true},
		{"parallel", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{0, 1}, orb.Point{2, 1}, false},
		{"collinear overlap", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{3, 0}, true},
		{"collinear apart", orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{2, 0}, orb.Point{3, 0}, false},
		{"shared endpoint", orb.Point{0, 0}, orb.Point{1, 1}, orb.Point{1, 1}, orb.Point{2, 0}, true},
		{"t junction", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{1, 5}, true},
		{"near miss", orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0.001}, orb.Point{1, 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, segmentsIntersect(tt.a, tt.b, tt.c, tt.d))
			assert.Equal(t, tt.want, segmentsIntersect(tt.c, tt.d, tt.a, tt.b))
		})
	}
}

func gridRegions(t *testing.T, n int, size float64) []*catalog.Region {
	var out []*catalog.Region
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x, y := float64(i)*size, float64(j)*size
			// Offset points sit near a corner so that the modes can disagree.
			pt := orb.Point{x + size*0.9, y + size*0.9}
			out = append(out, region(t, fmt.Sprintf("%03d%03d", i, j), &pt, orb.Polygon{square(x, y, size)}))
		}
	}
	return out
}

func TestMatchAll_CentroidSubsetOfIntersects(t *testing.T) {
	candidates := gridRegions(t, 20, 0.1)
	query := queryRing(t,
		geometry.Position{0.33, 0.21}, geometry.Position{1.47, 0.52}, geometry.Position{1.12, 1.61},
		geometry.Position{0.71, 0.97}, geometry.Position{0.2, 1.3},
	)

	centroid, err := New(query, ModeCentroid).MatchAll(context.Background(), candidates, 4)
	require.NoError(t, err)
	intersects, err := New(query, ModeIntersects).MatchAll(context.Background(), candidates, 4)
	require.NoError(t, err)

	require.NotEmpty(t, centroid.IDs)
	assert.Greater(t, len(intersects.IDs), len(centroid.IDs))
	for _, id := range centroid.IDs {
		assert.Contains(t, intersects.IDs, id)
	}
	assert.IsIncreasing(t, intersects.IDs)
	assert.Zero(t, intersects.Failed)
}

func TestMatchAll_WorkerCountDoesNotChangeResult(t *testing.T) {
	candidates := gridRegions(t, 30, 0.1)
	query := queryRing(t, geometry.Position{0.5, 0.5}, geometry.Position{2.5, 0.7}, geometry.Position{1.4, 2.6})

	serial, err := New(query, ModeIntersects).MatchAll(context.Background(), candidates, 1)
	require.NoError(t, err)
	parallel, err := New(query, ModeIntersects).MatchAll(context.Background(), candidates, 8)
	require.NoError(t, err)
	assert.Equal(t, serial.IDs, parallel.IDs)
}

func TestMatchAll_DeduplicatesAndCountsFailures(t *testing.T) {
	good := region(t, "00001", &orb.Point{0.5, 0.5}, orb.Polygon{square(0, 0, 1)})
	dup := region(t, "00001", &orb.Point{0.25, 0.25}, orb.Polygon{square(0, 0, 0.5)})
	bad := &catalog.Region{
		ID:       "bad",
		Boundary: orb.MultiPolygon{{orb.Ring{{0.2, 0.2}, {math.NaN(), 0.5}, {0.8, 0.8}, {0.2, 0.2}}}},
		Bound:    orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
		Point:    orb.Point{5, 5},
	}

	out, err := New(unitSquare(t), ModeIntersects).MatchAll(context.Background(), []*catalog.Region{good, bad, dup}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"00001"}, out.IDs)
	assert.Equal(t, 1, out.Failed)
}

func TestMatchAll_Empty(t *testing.T) {
	out, err := New(unitSquare(t), ModeIntersects).MatchAll(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.NotNil(t, out.IDs)
	assert.Empty(t, out.IDs)
}

func TestMatchAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(unitSquare(t), ModeIntersects).MatchAll(ctx, gridRegions(t, 5, 0.1), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
