package catalog

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// ShapefileSource reads a TIGER/Line ZCTA shapefile (for example
// tl_2024_us_zcta520.shp).
type ShapefileSource struct {
	Path string
}

// NewShapefileSource creates a ShapefileSource for path.
func NewShapefileSource(path string) *ShapefileSource {
	return &ShapefileSource{Path: path}
}

// Name implements Source.
func (s *ShapefileSource) Name() string { return "shapefile:" + s.Path }

// Load implements Source.
func (s *ShapefileSource) Load(ctx context.Context) (*Dataset, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open shapefile %s", s.Path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	if !hasIDField(fieldIdx) {
		return nil, eris.Errorf("catalog: shapefile %s has no identifier attribute (%s); is the .dbf missing?",
			s.Path, strings.Join(idProperties, ", "))
	}

	ds := &Dataset{}
	var n int
	for reader.Next() {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "catalog: read shapefile")
			}
		}
		n++

		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			ds.Skipped++
			continue
		}

		get := func(name string) (any, bool) {
			idx, ok := fieldIdx[name]
			if !ok {
				return nil, false
			}
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			if val == "" {
				return nil, false
			}
			return val, true
		}

		ds.Records = append(ds.Records, Record{
			ID:       regionID(get),
			Geometry: shapeToMultiPolygon(poly),
			Interior: interiorPoint(get),
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "catalog: read shapefile %s", s.Path)
	}
	return ds, nil
}

func hasIDField(fieldIdx map[string]int) bool {
	for _, name := range idProperties {
		if _, ok := fieldIdx[name]; ok {
			return true
		}
	}
	return false
}

// shapeToMultiPolygon converts shapefile parts into polygons. Shapefiles
// store outer rings clockwise and holes counter-clockwise; each hole is
// attached to the closest preceding outer ring.
func shapeToMultiPolygon(p *shp.Polygon) orb.MultiPolygon {
	parts := min(int(p.NumParts), len(p.Parts))
	if parts == 0 || len(p.Points) == 0 {
		return nil
	}

	var mp orb.MultiPolygon
	for i := 0; i < parts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < parts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || start >= end {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}

		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	return mp
}
