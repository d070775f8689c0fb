package match

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zipmatch/internal/catalog"
)

// minChunk is the smallest slice of candidates handed to one worker.
const minChunk = 64

// Outcome is the result of evaluating a candidate set.
type Outcome struct {
	// IDs holds matched region identifiers, sorted and deduplicated.
	IDs []string
	// Failed counts candidates excluded because their test errored.
	Failed int
}

// MatchAll evaluates candidates with up to workers goroutines. Candidates
// whose test fails are excluded and counted; only ctx cancellation aborts
// the evaluation.
func (m *Matcher) MatchAll(ctx context.Context, candidates []*catalog.Region, workers int) (Outcome, error) {
	if workers < 1 {
		workers = 1
	}
	log := zap.L().With(zap.String("component", "match"), zap.String("mode", string(m.mode)))

	chunk := max(minChunk, (len(candidates)+workers*4-1)/(workers*4))
	var chunks [][]*catalog.Region
	for start := 0; start < len(candidates); start += chunk {
		chunks = append(chunks, candidates[start:min(start+chunk, len(candidates))])
	}

	found := make([][]string, len(chunks))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, part := range chunks {
		g.Go(func() error {
			for _, r := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				ok, err := m.Match(r)
				if err != nil {
					failed.Add(1)
					log.Debug("candidate excluded", zap.String("region", r.ID), zap.Error(err))
					continue
				}
				if ok {
					found[i] = append(found[i], r.ID)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, eris.Wrap(err, "match: evaluate candidates")
	}

	ids := slices.Concat(found...)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if ids == nil {
		ids = []string{}
	}
	return Outcome{IDs: ids, Failed: int(failed.Load())}, nil
}
