package main

import (
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zipmatch/internal/catalog"
	"github.com/sells-group/zipmatch/internal/geometry"
	"github.com/sells-group/zipmatch/internal/query"
)

var (
	queryGeometryPath string
	queryMode         string
	queryFormat       string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Match one query polygon against the configured catalog",
	Long:  "Reads a ring, Polygon, MultiPolygon or Feature from --geometry (\"-\" for stdin) and prints the matching ZIP codes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("query"); err != nil {
			return err
		}
		if queryFormat != "json" && queryFormat != "csv" {
			return eris.Errorf("unsupported format %q (want json or csv)", queryFormat)
		}

		in, err := readGeometry(cmd.InOrStdin(), queryGeometryPath)
		if err != nil {
			return err
		}

		src, cleanup, err := newSource(ctx, cfg.Catalog)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := newService(catalog.New(src)).Query(ctx, query.Request{Geometry: in, Mode: queryMode})
		if err != nil {
			return eris.Wrap(err, "query")
		}
		return writeResult(cmd.OutOrStdout(), res, queryFormat)
	},
}

func readGeometry(stdin io.Reader, path string) (geometry.Input, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read geometry %s", path)
	}
	return geometry.ParseJSON(data)
}

// writeResult prints res as indented JSON or as a single-column CSV.
func writeResult(w io.Writer, res *query.Result, format string) error {
	if format == "csv" {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"zipcode"}); err != nil {
			return eris.Wrap(err, "write csv header")
		}
		for _, id := range res.ZipCodes {
			if err := cw.Write([]string{id}); err != nil {
				return eris.Wrap(err, "write csv row")
			}
		}
		cw.Flush()
		return eris.Wrap(cw.Error(), "flush csv")
	}

	return writeJSON(w, res)
}

func init() {
	queryCmd.Flags().StringVar(&queryGeometryPath, "geometry", "", "path to a GeoJSON geometry or ring file, - for stdin (required)")
	queryCmd.Flags().StringVar(&queryMode, "mode", "intersects", "match mode: intersects or centroid")
	queryCmd.Flags().StringVar(&queryFormat, "format", "json", "output format: json or csv")
	_ = queryCmd.MarkFlagRequired("geometry")
	rootCmd.AddCommand(queryCmd)
}
