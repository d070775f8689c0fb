package catalog

import (
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50

	// searchPad widens tree lookups so that boxes touching only along an edge
	// are still returned; the exact inclusive test runs afterwards.
	searchPad = 1e-9
)

// Index is the immutable, queryable form of the catalog.
type Index struct {
	regions []Region
	bound   orb.Bound
	skipped int

	tree *rtreego.Rtree
	// loose holds positions that could not be placed in the tree; they are
	// always scanned.
	loose []int
}

type treeEntry struct {
	pos  int
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *treeEntry) Bounds() rtreego.Rect { return e.rect }

// NewIndex builds an Index over regions. skipped is the number of dataset
// features that were discarded while loading; it is kept for reporting.
func NewIndex(regions []Region, skipped int) *Index {
	ix := &Index{regions: regions, skipped: skipped}

	objs := make([]rtreego.Spatial, 0, len(regions))
	for i, r := range regions {
		if i == 0 {
			ix.bound = r.Bound
		} else {
			ix.bound = ix.bound.Union(r.Bound)
		}

		rect, err := boundRect(r.Bound)
		if err != nil {
			zap.L().Debug("catalog: region kept out of rtree", zap.String("region", r.ID), zap.Error(err))
			ix.loose = append(ix.loose, i)
			continue
		}
		objs = append(objs, &treeEntry{pos: i, rect: rect})
	}

	ix.tree = rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, objs...)
	return ix
}

func boundRect(b orb.Bound) (rtreego.Rect, error) {
	return rtreego.NewRectFromPoints(
		rtreego.Point{b.Min[0], b.Min[1]},
		rtreego.Point{b.Max[0], b.Max[1]},
	)
}

// Len returns the number of indexed regions.
func (ix *Index) Len() int { return len(ix.regions) }

// Skipped returns the number of dataset features discarded during load.
func (ix *Index) Skipped() int { return ix.skipped }

// Bound returns the union of all region bounding boxes.
func (ix *Index) Bound() orb.Bound { return ix.bound }

// Regions returns the indexed regions in index order. The slice must not be
// modified.
func (ix *Index) Regions() []Region { return ix.regions }

// Region returns the region with the given identifier.
func (ix *Index) Region(id string) (*Region, bool) {
	for i := range ix.regions {
		if ix.regions[i].ID == id {
			return &ix.regions[i], true
		}
	}
	return nil, false
}

// Candidates returns every region whose bounding box overlaps b, in index
// order. Two boxes overlap when, on both axes, each minimum is less than or
// equal to the other box's maximum. Boxes that only touch are included.
func (ix *Index) Candidates(b orb.Bound) []*Region {
	if len(ix.regions) == 0 {
		return nil
	}

	positions := slices.Clone(ix.loose)
	padded := orb.Bound{
		Min: orb.Point{b.Min[0] - searchPad, b.Min[1] - searchPad},
		Max: orb.Point{b.Max[0] + searchPad, b.Max[1] + searchPad},
	}
	if rect, err := boundRect(padded); err == nil {
		for _, s := range ix.tree.SearchIntersect(rect) {
			positions = append(positions, s.(*treeEntry).pos)
		}
	} else {
		positions = positions[:0]
		for i := range ix.regions {
			positions = append(positions, i)
		}
	}
	slices.Sort(positions)

	out := make([]*Region, 0, len(positions))
	for _, pos := range positions {
		r := &ix.regions[pos]
		if r.Bound.Intersects(b) {
			out = append(out, r)
		}
	}
	return out
}
