package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/zipmatch/internal/db"
)

// tableColumns maps a boundary table to its identifier and interior point
// expressions.
type tableColumns struct {
	id  string
	lat string
	lon string
}

// validTables is an allowlist of tables the PostGIS source may read. It keeps
// the table name out of reach of SQL injection.
var validTables = map[string]tableColumns{
	"geo.zcta": {id: "zcta5", lat: "latitude", lon: "longitude"},
	"tiger_data.zcta5": {
		id:  "zcta5ce20",
		lat: "NULLIF(trim(intptlat20), '')::float8",
		lon: "NULLIF(trim(intptlon20), '')::float8",
	},
}

// PostGISSource reads region boundaries from a PostGIS table.
type PostGISSource struct {
	pool  db.Pool
	table string
	ident pgx.Identifier
}

// NewPostGISSource creates a PostGISSource. The table must be allowlisted.
func NewPostGISSource(pool db.Pool, table string) (*PostGISSource, error) {
	if _, ok := validTables[table]; !ok {
		return nil, eris.Errorf("catalog: invalid table name %q", table)
	}
	ident, err := db.Table(table)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: postgis source")
	}
	return &PostGISSource{pool: pool, table: table, ident: ident}, nil
}

// Name implements Source.
func (s *PostGISSource) Name() string { return "postgis:" + s.table }

// Load implements Source.
func (s *PostGISSource) Load(ctx context.Context) (*Dataset, error) {
	cols := validTables[s.table]
	// NULL interior points become NaN and fall back to a computed centroid.
	sql := fmt.Sprintf(
		`SELECT COALESCE(%s, ''), COALESCE(%s, 'NaN'::float8), COALESCE(%s, 'NaN'::float8), ST_AsEWKB(geom)
		FROM %s WHERE geom IS NOT NULL`,
		cols.id, cols.lat, cols.lon, s.ident.Sanitize(),
	)

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: query boundaries")
	}
	defer rows.Close()

	ds := &Dataset{}
	for rows.Next() {
		var (
			id       string
			lat, lon float64
			wkb      []byte
		)
		if err := rows.Scan(&id, &lat, &lon, &wkb); err != nil {
			ds.Skipped++
			continue
		}

		g, err := decodeEWKB(wkb)
		if err != nil {
			ds.Skipped++
			continue
		}
		ds.Records = append(ds.Records, Record{
			ID:       id,
			Geometry: g,
			Interior: &orb.Point{lon, lat},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate boundaries")
	}
	return ds, nil
}

// decodeEWKB converts a PostGIS Polygon or MultiPolygon into orb form.
func decodeEWKB(data []byte) (orb.MultiPolygon, error) {
	if len(data) == 0 {
		return nil, eris.New("catalog: empty geometry")
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: decode EWKB")
	}

	switch t := g.(type) {
	case *geom.Polygon:
		return orb.MultiPolygon{polygonFromGeom(t)}, nil
	case *geom.MultiPolygon:
		mp := make(orb.MultiPolygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			mp = append(mp, polygonFromGeom(t.Polygon(i)))
		}
		return mp, nil
	default:
		return nil, eris.Errorf("catalog: unsupported geometry type %T", g)
	}
}

func polygonFromGeom(p *geom.Polygon) orb.Polygon {
	poly := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make(orb.Ring, 0, len(coords))
		for _, c := range coords {
			ring = append(ring, orb.Point{c.X(), c.Y()})
		}
		poly = append(poly, ring)
	}
	return poly
}

// multiPolygonToGeom converts an orb multi-polygon into a go-geom value with
// SRID 4326.
func multiPolygonToGeom(mp orb.MultiPolygon) (*geom.MultiPolygon, error) {
	coords := make([][][]geom.Coord, 0, len(mp))
	for _, poly := range mp {
		rings := make([][]geom.Coord, 0, len(poly))
		for _, ring := range poly {
			cs := make([]geom.Coord, 0, len(ring))
			for _, pt := range ring {
				cs = append(cs, geom.Coord{pt[0], pt[1]})
			}
			rings = append(rings, cs)
		}
		coords = append(coords, rings)
	}

	g, err := geom.NewMultiPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: build multipolygon")
	}
	return g.SetSRID(4326), nil
}
