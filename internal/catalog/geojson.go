package catalog

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// GeoJSONSource reads a GeoJSON FeatureCollection from a file.
type GeoJSONSource struct {
	Path string
}

// NewGeoJSONSource creates a GeoJSONSource for path.
func NewGeoJSONSource(path string) *GeoJSONSource {
	return &GeoJSONSource{Path: path}
}

// Name implements Source.
func (s *GeoJSONSource) Name() string { return "geojson:" + s.Path }

// Load implements Source.
func (s *GeoJSONSource) Load(ctx context.Context) (*Dataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", s.Path)
	}
	defer f.Close() //nolint:errcheck

	return ParseGeoJSON(ctx, f)
}

type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// ParseGeoJSON decodes a FeatureCollection. Features are decoded one at a
// time so that a single malformed feature is skipped instead of failing the
// whole collection.
func ParseGeoJSON(ctx context.Context, r io.Reader) (*Dataset, error) {
	var fc rawCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "catalog: decode feature collection")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("catalog: expected FeatureCollection, got %q", fc.Type)
	}

	ds := &Dataset{Records: make([]Record, 0, len(fc.Features))}
	for i, raw := range fc.Features {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "catalog: parse features")
			}
		}

		f, err := geojson.UnmarshalFeature(raw)
		if err != nil || f.Geometry == nil {
			ds.Skipped++
			continue
		}

		get := mapAttrs(f.Properties)
		ds.Records = append(ds.Records, Record{
			ID:       regionID(get),
			Geometry: f.Geometry,
			Interior: interiorPoint(get),
		})
	}
	return ds, nil
}
