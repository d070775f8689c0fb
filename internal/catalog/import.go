package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/zipmatch/internal/db"
)

const createZCTATable = `
CREATE SCHEMA IF NOT EXISTS geo;
CREATE TABLE IF NOT EXISTS geo.zcta (
	id         SERIAL PRIMARY KEY,
	zcta5      TEXT NOT NULL UNIQUE,
	latitude   DOUBLE PRECISION,
	longitude  DOUBLE PRECISION,
	source     TEXT NOT NULL,
	geom       geometry(MultiPolygon, 4326)
);
CREATE INDEX IF NOT EXISTS idx_zcta_geom ON geo.zcta USING gist (geom)`

var (
	zctaTable     = pgx.Identifier{"geo", "zcta"}
	stagingTable  = pgx.Identifier{"_zcta_import"}
	importColumns = []string{"zcta5", "latitude", "longitude", "source", "geom"}
)

const (
	createStaging = `CREATE TEMP TABLE _zcta_import (LIKE geo.zcta INCLUDING DEFAULTS) ON COMMIT DROP`
	mergeStaging  = `INSERT INTO geo.zcta (zcta5, latitude, longitude, source, geom)
SELECT zcta5, latitude, longitude, source, geom FROM _zcta_import
ON CONFLICT (zcta5) DO UPDATE SET
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	source = EXCLUDED.source,
	geom = EXCLUDED.geom`
)

// ImportOptions configures Import.
type ImportOptions struct {
	// Source is recorded in the source column, e.g. "tiger_2024".
	Source string
	// Replace truncates geo.zcta before loading. Without it, existing rows
	// with the same zcta5 are updated in place.
	Replace bool
	// BatchSize is the number of rows per COPY; zero uses db.DefaultBatchSize.
	BatchSize int
}

// Import writes regions into geo.zcta in a single transaction: either every
// row lands or none does. Regions that cannot be encoded are skipped and
// counted in the log.
func Import(ctx context.Context, pool db.Pool, regions []Region, opts ImportOptions) (int64, error) {
	log := zap.L().With(zap.String("component", "catalog.import"))

	if opts.Source == "" {
		opts.Source = "import"
	}

	rows, skipped := encodeRegions(regions, opts.Source)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: begin import tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, createZCTATable); err != nil {
		return 0, eris.Wrap(err, "catalog: create geo.zcta")
	}

	var n int64
	if opts.Replace {
		if _, err := tx.Exec(ctx, `TRUNCATE geo.zcta`); err != nil {
			return 0, eris.Wrap(err, "catalog: truncate geo.zcta")
		}
		if n, err = db.CopyRows(ctx, tx, zctaTable, importColumns, rows, opts.BatchSize); err != nil {
			return 0, eris.Wrap(err, "catalog: import regions")
		}
	} else {
		if _, err := tx.Exec(ctx, createStaging); err != nil {
			return 0, eris.Wrap(err, "catalog: create staging table")
		}
		if _, err := db.CopyRows(ctx, tx, stagingTable, importColumns, rows, opts.BatchSize); err != nil {
			return 0, eris.Wrap(err, "catalog: import regions")
		}
		tag, err := tx.Exec(ctx, mergeStaging)
		if err != nil {
			return 0, eris.Wrap(err, "catalog: merge into geo.zcta")
		}
		n = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "catalog: commit import")
	}

	log.Info("regions imported",
		zap.Int64("rows", n),
		zap.Int("skipped", skipped),
		zap.Bool("replace", opts.Replace),
	)
	return n, nil
}

func encodeRegions(regions []Region, source string) ([][]any, int) {
	rows := make([][]any, 0, len(regions))
	var skipped int
	for _, r := range regions {
		g, err := multiPolygonToGeom(r.Boundary)
		if err != nil {
			skipped++
			continue
		}
		data, err := ewkb.Marshal(g, ewkb.NDR)
		if err != nil {
			skipped++
			continue
		}

		var lat, lon any
		if r.PointSource == PointInterior {
			lat, lon = r.Point[1], r.Point[0]
		}
		rows = append(rows, []any{r.ID, lat, lon, source, data})
	}
	return rows, skipped
}
