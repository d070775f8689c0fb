// Package catalog owns the process-wide postal-code boundary catalog.
//
// The catalog is loaded lazily, exactly once per process: concurrent first
// callers share one in-flight load and all observe the same completed Index.
// A failed load is sticky; every later call returns the same error until the
// process restarts.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrLoad marks a fatal catalog load failure.
var ErrLoad = eris.New("catalog load failed")

// State is the lifecycle state of a Catalog.
type State int32

// Catalog lifecycle states.
const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const loadKey = "catalog"

// Catalog lazily loads and holds the region Index.
type Catalog struct {
	source Source
	group  singleflight.Group

	mu    sync.RWMutex
	state State
	index *Index
	err   error
}

// New creates an unloaded Catalog backed by source.
func New(source Source) *Catalog {
	return &Catalog{source: source}
}

// State returns the current lifecycle state.
func (c *Catalog) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Index returns the loaded index, or nil when the catalog is not ready.
func (c *Catalog) Index() *Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// EnsureLoaded returns the catalog index, loading it on first use. Callers
// that arrive while a load is running wait for it. A caller whose ctx ends
// stops waiting, but the load itself keeps running for the others.
func (c *Catalog) EnsureLoaded(ctx context.Context) (*Index, error) {
	if ix, done, err := c.settled(); done {
		return ix, err
	}

	ch := c.group.DoChan(loadKey, func() (any, error) {
		// A previous flight may have finished between settled() and DoChan.
		if ix, done, err := c.settled(); done {
			return ix, err
		}
		return c.load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "catalog: wait for load")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	}
}

// settled reports the outcome of a finished load, if any.
func (c *Catalog) settled() (*Index, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.state {
	case StateReady:
		return c.index, true, nil
	case StateFailed:
		return nil, true, c.err
	default:
		return nil, false, nil
	}
}

func (c *Catalog) load(ctx context.Context) (*Index, error) {
	log := zap.L().With(
		zap.String("component", "catalog"),
		zap.String("source", c.source.Name()),
	)

	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	start := time.Now()
	log.Info("loading region catalog")

	ix, err := Build(ctx, c.source)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		c.err = eris.Wrapf(ErrLoad, "%s: %v", c.source.Name(), err)
		log.Error("region catalog load failed", zap.Error(err))
		return nil, c.err
	}

	c.state = StateReady
	c.index = ix
	log.Info("region catalog loaded",
		zap.Int("regions", ix.Len()),
		zap.Int("skipped", ix.Skipped()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ix, nil
}

// Build reads source and indexes every valid record. Invalid records are
// dropped and counted as skipped.
func Build(ctx context.Context, source Source) (*Index, error) {
	ds, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}

	regions := make([]Region, 0, len(ds.Records))
	skipped := ds.Skipped
	for _, rec := range ds.Records {
		r, err := NewRegion(rec)
		if err != nil {
			skipped++
			continue
		}
		regions = append(regions, r)
	}
	return NewIndex(regions, skipped), nil
}
