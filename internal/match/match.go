// Package match decides which candidate regions satisfy a query geometry.
//
// Two policies are supported. ModeCentroid matches a region when its
// representative point lies inside the query. ModeIntersects additionally
// matches regions whose boundary shares any area, edge or vertex with the
// query; the point test runs first and the boundary test only when it fails.
package match

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zipmatch/internal/catalog"
	"github.com/sells-group/zipmatch/internal/geometry"
)

// Mode selects the containment policy.
type Mode string

// Supported modes.
const (
	ModeIntersects Mode = "intersects"
	ModeCentroid   Mode = "centroid"
)

// DefaultMode is used when the caller does not pick one.
const DefaultMode = ModeIntersects

var (
	// ErrInvalidMode is returned by ParseMode for unrecognized values.
	ErrInvalidMode = eris.New("invalid match mode")
	// ErrCandidateMatch marks a single candidate whose test could not be
	// evaluated. It never fails a whole query.
	ErrCandidateMatch = eris.New("candidate match failed")
)

// ParseMode converts a caller-supplied mode string. The empty string selects
// DefaultMode; matching is exact and case-sensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return DefaultMode, nil
	case ModeIntersects, ModeCentroid:
		return Mode(s), nil
	default:
		return "", eris.Wrapf(ErrInvalidMode, "%q is not one of %s", s, strings.Join(ModeNames(), ", "))
	}
}

// ModeNames lists the accepted mode strings.
func ModeNames() []string {
	return []string{string(ModeIntersects), string(ModeCentroid)}
}

// Matcher tests candidates against one normalized query. It is read-only
// after construction and safe for concurrent use.
type Matcher struct {
	mode  Mode
	query orb.MultiPolygon
	bound orb.Bound
	rings []boundedRing
}

type boundedRing struct {
	ring  orb.Ring
	bound orb.Bound
}

// New prepares a Matcher for g. mode must be a value returned by ParseMode.
func New(g geometry.Geometry, mode Mode) *Matcher {
	m := &Matcher{mode: mode, query: g.MultiPolygon(), bound: g.Bound()}
	for _, poly := range m.query {
		for _, ring := range poly {
			m.rings = append(m.rings, boundedRing{ring: ring, bound: ring.Bound()})
		}
	}
	return m
}

// Match reports whether r satisfies the matcher's policy. A non-nil error
// wraps ErrCandidateMatch and means the candidate could not be evaluated.
func (m *Matcher) Match(r *catalog.Region) (matched bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			matched = false
			err = eris.Wrapf(ErrCandidateMatch, "region %s: %v", r.ID, p)
		}
	}()

	if m.containsPoint(r.Point) {
		return true, nil
	}
	if m.mode == ModeCentroid {
		return false, nil
	}
	return m.intersects(r)
}

func (m *Matcher) containsPoint(p orb.Point) bool {
	if !m.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(m.query, p)
}

