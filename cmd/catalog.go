package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zipmatch/internal/catalog"
	"github.com/sells-group/zipmatch/internal/db"
	"github.com/sells-group/zipmatch/internal/resilience"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the ZIP code boundary catalog",
}

var catalogFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and extract the Census ZCTA shapefile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		path, err := catalog.Fetch(ctx, catalog.FetchOptions{
			URL:     cfg.Catalog.DownloadURL,
			DestDir: cfg.Catalog.TempDir,
			Client:  &http.Client{Timeout: time.Duration(cfg.Catalog.DownloadTimeoutMins) * time.Minute},
			Retry:   resilience.PolicyFromSettings(cfg.Catalog.MaxRetries+1, cfg.Catalog.RetryBackoffMs),
		})
		if err != nil {
			return eris.Wrap(err, "catalog fetch")
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var (
	importFrom    string
	importDriver  string
	importLabel   string
	importReplace bool
)

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load ZCTA boundaries from a file into PostGIS (geo.zcta)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		path := importFrom
		if path == "" {
			path = cfg.Catalog.Path
		}
		src, err := fileSource(path, importDriver)
		if err != nil {
			return err
		}

		ix, err := catalog.Build(ctx, src)
		if err != nil {
			return eris.Wrap(err, "catalog import: read source")
		}

		pool, err := db.Connect(ctx, cfg.Catalog.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "catalog import")
		}
		defer pool.Close()

		n, err := catalog.Import(ctx, pool, ix.Regions(), catalog.ImportOptions{
			Source:  importLabel,
			Replace: importReplace,
		})
		if err != nil {
			return eris.Wrap(err, "catalog import")
		}

		zap.L().Info("catalog import complete",
			zap.String("source", src.Name()),
			zap.Int64("rows", n),
			zap.Int("skipped", ix.Skipped()),
		)
		return nil
	},
}

// catalogStats is printed by catalog stats.
type catalogStats struct {
	Source  string         `json:"source"`
	Regions int            `json:"regions"`
	Skipped int            `json:"skipped"`
	Bound   [4]float64     `json:"bbox"`
	Elapsed string         `json:"elapsed"`
	Lookup  []regionDetail `json:"lookup,omitempty"`
}

// regionDetail describes one region requested with --zip.
type regionDetail struct {
	ID          string     `json:"id"`
	Bound       [4]float64 `json:"bbox"`
	Point       [2]float64 `json:"point"`
	PointSource string     `json:"point_source"`
	Polygons    int        `json:"polygons"`
}

var statsZips []string

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Load the configured catalog and print summary statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("stats"); err != nil {
			return err
		}

		src, cleanup, err := newSource(ctx, cfg.Catalog)
		if err != nil {
			return err
		}
		defer cleanup()

		start := time.Now()
		ix, err := catalog.New(src).EnsureLoaded(ctx)
		if err != nil {
			return err
		}

		summary, err := catalogSummary(src.Name(), ix, time.Since(start), statsZips)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), summary)
	},
}

func catalogSummary(name string, ix *catalog.Index, elapsed time.Duration, zips []string) (catalogStats, error) {
	stats := catalogStats{
		Source:  name,
		Regions: ix.Len(),
		Skipped: ix.Skipped(),
		Bound:   bbox(ix.Bound()),
		Elapsed: elapsed.Round(time.Millisecond).String(),
	}
	for _, id := range zips {
		r, ok := ix.Region(id)
		if !ok {
			return catalogStats{}, eris.Errorf("catalog stats: region %q not found", id)
		}
		stats.Lookup = append(stats.Lookup, regionDetail{
			ID:          r.ID,
			Bound:       bbox(r.Bound),
			Point:       [2]float64{r.Point[0], r.Point[1]},
			PointSource: string(r.PointSource),
			Polygons:    len(r.Boundary),
		})
	}
	return stats, nil
}

func bbox(b orb.Bound) [4]float64 {
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	catalogImportCmd.Flags().StringVar(&importFrom, "from", "", "boundary file to import (default catalog.path)")
	catalogImportCmd.Flags().StringVar(&importDriver, "driver", "", "file format: geojson or shapefile (default from extension)")
	catalogImportCmd.Flags().StringVar(&importLabel, "label", "tiger_2024", "value stored in geo.zcta.source")
	catalogImportCmd.Flags().BoolVar(&importReplace, "replace", false, "truncate geo.zcta before loading instead of merging")

	catalogStatsCmd.Flags().StringSliceVar(&statsZips, "zip", nil, "also print details for these region identifiers")

	catalogCmd.AddCommand(catalogFetchCmd, catalogImportCmd, catalogStatsCmd)
	rootCmd.AddCommand(catalogCmd)
}
