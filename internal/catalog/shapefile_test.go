package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Outer rings are clockwise, holes counter-clockwise.
var (
	cwOuter  = []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	ccwHole  = []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	cwIsland = []shp.Point{{X: 20, Y: 20}, {X: 20, Y: 21}, {X: 21, Y: 21}, {X: 21, Y: 20}, {X: 20, Y: 20}}
)

func shpPolygon(parts ...[]shp.Point) *shp.Polygon {
	p := shp.Polygon(*shp.NewPolyLine(parts))
	return &p
}

func TestShapeToMultiPolygon(t *testing.T) {
	mp := shapeToMultiPolygon(shpPolygon(cwOuter, ccwHole, cwIsland))

	require.Len(t, mp, 2)
	require.Len(t, mp[0], 2, "hole attaches to the preceding outer ring")
	assert.Equal(t, orb.Point{2, 2}, mp[0][1][0])
	require.Len(t, mp[1], 1)
	assert.Equal(t, orb.Point{20, 20}, mp[1][0][0])
}

func TestShapeToMultiPolygon_LeadingHole(t *testing.T) {
	mp := shapeToMultiPolygon(shpPolygon(ccwHole))
	require.Len(t, mp, 1, "a counter-clockwise ring with no outer ring becomes its own polygon")
	assert.Len(t, mp[0], 1)
}

func TestShapeToMultiPolygon_Empty(t *testing.T) {
	assert.Nil(t, shapeToMultiPolygon(&shp.Polygon{}))
	assert.Nil(t, shapeToMultiPolygon(&shp.Polygon{NumParts: 3, Parts: []int32{0}}))
}

func writeShapefile(t *testing.T, path string) {
	t.Helper()

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	w.SetFields([]shp.Field{
		shp.StringField("ZCTA5CE20", 5),
		shp.StringField("INTPTLAT20", 11),
		shp.StringField("INTPTLON20", 12),
	})

	first := w.Write(shpPolygon(cwOuter, ccwHole))
	w.WriteAttribute(int(first), 0, "78701")
	w.WriteAttribute(int(first), 1, "+05.0000000")
	w.WriteAttribute(int(first), 2, "+005.0000000")

	second := w.Write(shpPolygon(cwIsland))
	w.WriteAttribute(int(second), 0, "78702")

	w.Close()

	// go-shp's writer names the attribute table "<base>dbf" without the dot.
	base := strings.TrimSuffix(path, filepath.Ext(path))
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
}

func TestShapefileSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zcta.shp")
	writeShapefile(t, path)

	src := NewShapefileSource(path)
	assert.Equal(t, "shapefile:"+path, src.Name())

	ds, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	assert.Zero(t, ds.Skipped)

	first := ds.Records[0]
	assert.Equal(t, "78701", first.ID)
	require.NotNil(t, first.Interior)
	assert.Equal(t, orb.Point{5, 5}, *first.Interior)
	mp, ok := first.Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 1)
	assert.Len(t, mp[0], 2)

	second := ds.Records[1]
	assert.Equal(t, "78702", second.ID)
	assert.Nil(t, second.Interior)
}

func TestShapefileSource_MissingFile(t *testing.T) {
	_, err := NewShapefileSource(filepath.Join(t.TempDir(), "missing.shp")).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open shapefile")
}

func TestShapefileSource_MissingAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zcta.shp")
	writeShapefile(t, path)
	require.NoError(t, os.Remove(strings.TrimSuffix(path, ".shp")+".dbf"))

	_, err := NewShapefileSource(path).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no identifier attribute")

	cat := New(NewShapefileSource(path))
	_, err = cat.EnsureLoaded(context.Background())
	require.ErrorIs(t, err, ErrLoad)
	assert.Equal(t, StateFailed, cat.State())
}

func TestShapefileSource_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zcta.shp")
	writeShapefile(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-10))

	_, err = NewShapefileSource(path).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read shapefile")
}
