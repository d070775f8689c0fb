package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// DefaultBatchSize caps the rows sent in one COPY when CopyRows is given a
// non-positive batch size. A TIGER ZCTA import is ~33k rows of multi-KB
// EWKB, so one COPY per batch keeps a single failure from discarding the
// whole load.
const DefaultBatchSize = 5000

// Table parses a schema-qualified "schema.table" name.
func Table(name string) (pgx.Identifier, error) {
	parts := strings.Split(name, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, eris.Errorf("db: table %q must be schema-qualified", name)
	}
	return pgx.Identifier(parts), nil
}

// CopyRows bulk-inserts rows into table with the COPY protocol, batchSize
// rows at a time. It returns the rows copied before the first failing batch;
// run it inside a transaction to make the load all-or-nothing.
func CopyRows(ctx context.Context, conn Copier, table pgx.Identifier, columns []string, rows [][]any, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var total int64
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		n, err := conn.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows[start:end]))
		total += n
		if err != nil {
			return total, eris.Wrapf(err, "db: copy rows %d-%d into %s", start, end, strings.Join(table, "."))
		}
	}
	return total, nil
}
