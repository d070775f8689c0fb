package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"ZCTA5CE20": "78701", "INTPTLAT20": "+30.2711286", "INTPTLON20": "-097.7436995"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    },
    {
      "type": "Feature",
      "properties": {"ZCTA5CE10": "10001"},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[2,2],[3,2],[3,3],[2,3],[2,2]]]]}
    },
    {
      "type": "Feature",
      "properties": {"ZCTA5CE20": "99999"},
      "geometry": null
    },
    {
      "type": "Feature",
      "properties": {"ZCTA5CE20": "00000"},
      "geometry": {"type": "Polygon", "coordinates": "bogus"}
    }
  ]
}`

func TestParseGeoJSON(t *testing.T) {
	ds, err := ParseGeoJSON(context.Background(), strings.NewReader(fixtureCollection))
	require.NoError(t, err)

	require.Len(t, ds.Records, 2)
	assert.Equal(t, 2, ds.Skipped)

	first := ds.Records[0]
	assert.Equal(t, "78701", first.ID)
	require.NotNil(t, first.Interior)
	assert.InDelta(t, 30.2711286, first.Interior[1], 1e-9)
	assert.InDelta(t, -97.7436995, first.Interior[0], 1e-9)
	assert.IsType(t, orb.Polygon{}, first.Geometry)

	second := ds.Records[1]
	assert.Equal(t, "10001", second.ID)
	assert.Nil(t, second.Interior)
	assert.IsType(t, orb.MultiPolygon{}, second.Geometry)
}

func TestParseGeoJSON_NotCollection(t *testing.T) {
	_, err := ParseGeoJSON(context.Background(), strings.NewReader(`{"type":"Feature","geometry":null}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected FeatureCollection")
}

func TestParseGeoJSON_Malformed(t *testing.T) {
	_, err := ParseGeoJSON(context.Background(), strings.NewReader(`{"type":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feature collection")
}

func TestParseGeoJSON_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseGeoJSON(ctx, strings.NewReader(fixtureCollection))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeoJSONSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtureCollection), 0o644))

	src := NewGeoJSONSource(path)
	assert.Equal(t, "geojson:"+path, src.Name())

	ix, err := Build(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, 2, ix.Skipped())

	r, ok := ix.Region("78701")
	require.True(t, ok)
	assert.Equal(t, PointInterior, r.PointSource)

	r, ok = ix.Region("10001")
	require.True(t, ok)
	assert.Equal(t, PointCentroid, r.PointSource)
	assert.InDelta(t, 2.5, r.Point[0], 1e-9)
	assert.InDelta(t, 2.5, r.Point[1], 1e-9)
}

func TestGeoJSONSource_MissingFile(t *testing.T) {
	_, err := NewGeoJSONSource(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: open")
}
