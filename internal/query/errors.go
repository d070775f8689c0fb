package query

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/zipmatch/internal/catalog"
	"github.com/sells-group/zipmatch/internal/geometry"
	"github.com/sells-group/zipmatch/internal/match"
)

// Error classes surfaced by Query. Callers classify with eris.Is.
var (
	// ErrInvalidGeometry: no valid shape could be produced. Client error.
	ErrInvalidGeometry = geometry.ErrInvalid
	// ErrInvalidMatchMode: mode outside the recognized set. Client error.
	ErrInvalidMatchMode = match.ErrInvalidMode
	// ErrCatalogLoad: the boundary dataset is missing or unparseable. It is
	// returned to every request until the process restarts.
	ErrCatalogLoad = catalog.ErrLoad
)

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return eris.Is(err, ErrInvalidGeometry) || eris.Is(err, ErrInvalidMatchMode)
}
