package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zipmatch/internal/catalog"
	"github.com/sells-group/zipmatch/internal/config"
	"github.com/sells-group/zipmatch/internal/db"
)

// newSource builds the configured catalog source. The returned cleanup
// releases any database pool and is never nil.
func newSource(ctx context.Context, c config.CatalogConfig) (catalog.Source, func(), error) {
	noop := func() {}

	switch c.Driver {
	case config.DriverGeoJSON:
		return catalog.NewGeoJSONSource(c.Path), noop, nil
	case config.DriverShapefile:
		return catalog.NewShapefileSource(c.Path), noop, nil
	case config.DriverPostGIS:
		pool, err := db.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, noop, eris.Wrap(err, "connect catalog database")
		}
		src, err := catalog.NewPostGISSource(pool, c.Table)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return src, pool.Close, nil
	default:
		return nil, noop, eris.Errorf("unknown catalog driver %q", c.Driver)
	}
}

// fileSource builds a file-backed source, inferring the format from the
// extension when driver is empty.
func fileSource(path, driver string) (catalog.Source, error) {
	if driver == "" {
		driver = config.DriverGeoJSON
		if hasExt(path, ".shp") {
			driver = config.DriverShapefile
		}
	}
	switch driver {
	case config.DriverGeoJSON:
		return catalog.NewGeoJSONSource(path), nil
	case config.DriverShapefile:
		return catalog.NewShapefileSource(path), nil
	default:
		return nil, eris.Errorf("driver %q cannot read files", driver)
	}
}

func hasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}
