// Package query orchestrates one containment query: normalize, load the
// catalog, consult the cache, filter candidates and match them.
package query

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipmatch/internal/cache"
	"github.com/sells-group/zipmatch/internal/catalog"
	"github.com/sells-group/zipmatch/internal/geometry"
	"github.com/sells-group/zipmatch/internal/match"
)

// Catalog is the part of *catalog.Catalog the service depends on.
type Catalog interface {
	EnsureLoaded(ctx context.Context) (*catalog.Index, error)
	State() catalog.State
	Index() *catalog.Index
}

// Request is one query.
type Request struct {
	Geometry geometry.Input
	// Mode is "intersects", "centroid" or empty for the default.
	Mode string
}

// Result is the answer to a Request.
type Result struct {
	ZipCodes   []string   `json:"zipcodes"`
	Candidates int        `json:"candidates"`
	Cached     bool       `json:"cached"`
	Mode       match.Mode `json:"matchMode"`
}

// Options configures a Service.
type Options struct {
	// Workers bounds parallel candidate evaluation. Default: NumCPU.
	Workers int
	// SimplifyTolerance enables Douglas-Peucker simplification of query
	// rings when positive.
	SimplifyTolerance float64
}

// Service answers containment queries. It is safe for concurrent use.
type Service struct {
	catalog    Catalog
	cache      *cache.Cache
	normalizer *geometry.Normalizer
	workers    int
}

// NewService wires a Service. A nil cache gets a default-sized one.
func NewService(cat Catalog, c *cache.Cache, opts Options) *Service {
	if c == nil {
		c = cache.New(cache.DefaultMaxEntries)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Service{
		catalog:    cat,
		cache:      c,
		normalizer: geometry.NewNormalizer(geometry.Options{SimplifyTolerance: opts.SimplifyTolerance}),
		workers:    opts.Workers,
	}
}

// Query runs req. Invalid geometry and unknown modes are rejected before the
// catalog or cache is touched.
func (s *Service) Query(ctx context.Context, req Request) (*Result, error) {
	log := zap.L().With(zap.String("component", "query"))

	g, err := s.normalizer.Normalize(req.Geometry)
	if err != nil {
		return nil, eris.Wrap(err, "query: normalize geometry")
	}
	mode, err := match.ParseMode(req.Mode)
	if err != nil {
		return nil, eris.Wrap(err, "query: parse mode")
	}

	ix, err := s.catalog.EnsureLoaded(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "query: load catalog")
	}

	key := cache.Key(g, mode)
	if entry, ok := s.cache.Get(key); ok {
		return &Result{ZipCodes: entry.IDs, Candidates: entry.Candidates, Cached: true, Mode: mode}, nil
	}

	start := time.Now()
	candidates := ix.Candidates(g.Bound())
	out, err := match.New(g, mode).MatchAll(ctx, candidates, s.workers)
	if err != nil {
		return nil, eris.Wrap(err, "query: match candidates")
	}

	s.cache.Put(key, cache.Entry{IDs: out.IDs, Candidates: len(candidates)})

	log.Debug("query evaluated",
		zap.String("mode", string(mode)),
		zap.Int("polygons", g.NumPolygons()),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(out.IDs)),
		zap.Int("failed", out.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{ZipCodes: out.IDs, Candidates: len(candidates), Cached: false, Mode: mode}, nil
}

// Stats describes the service for the stats endpoint and CLI.
type Stats struct {
	Catalog CatalogStats `json:"catalog"`
	Cache   cache.Stats  `json:"cache"`
}

// CatalogStats summarizes catalog state.
type CatalogStats struct {
	State   string     `json:"state"`
	Regions int        `json:"regions"`
	Skipped int        `json:"skipped"`
	Bound   [4]float64 `json:"bbox"`
}

// Stats reports catalog and cache state. It never triggers a catalog load.
func (s *Service) Stats() Stats {
	st := Stats{
		Catalog: CatalogStats{State: s.catalog.State().String()},
		Cache:   s.cache.Stats(),
	}
	if ix := s.catalog.Index(); ix != nil {
		b := ix.Bound()
		st.Catalog.Regions = ix.Len()
		st.Catalog.Skipped = ix.Skipped()
		st.Catalog.Bound = [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	}
	return st
}
