package distancing

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/vision/proximity"
)

// A Coordinator runs the pipelines of several cameras concurrently. Cameras share nothing but
// the sinks, so a camera that fails stops alone.
type Coordinator struct {
	pipelines []*Pipeline
	byName    map[string]*Pipeline
	logger    logging.Logger
}

// NewCoordinator returns a coordinator over the given pipelines. Camera names must be unique.
func NewCoordinator(pipelines []*Pipeline, logger logging.Logger) (*Coordinator, error) {
	byName := make(map[string]*Pipeline, len(pipelines))
	for _, p := range pipelines {
		name := p.Handle().Name
		if _, ok := byName[name]; ok {
			return nil, errors.Errorf("camera name %q is not unique", name)
		}
		byName[name] = p
	}
	return &Coordinator{pipelines: pipelines, byName: byName, logger: logger}, nil
}

// Pipelines returns every pipeline in configuration order.
func (c *Coordinator) Pipelines() []*Pipeline {
	return c.pipelines
}

// Pipeline returns the pipeline of the named camera.
func (c *Coordinator) Pipeline(name string) (*Pipeline, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Start starts every pipeline. A camera that cannot be opened does not prevent the others from
// running; the returned error combines every camera that failed to start.
func (c *Coordinator) Start(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs error
	)
	var g errgroup.Group
	for _, p := range c.pipelines {
		p := p
		g.Go(func() error {
			if err := p.Start(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "camera %q", p.Handle().Name))
				mu.Unlock()
			}
			return nil
		})
	}
	// the goroutines never return an error.
	_ = g.Wait()
	if errs != nil {
		c.logger.Warnw("some cameras failed to start", "error", errs)
	}
	return errs
}

// Wait blocks until every pipeline has stopped, or ctx is done, and returns the errors of every
// camera that failed.
func (c *Coordinator) Wait(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs error
	)
	var g errgroup.Group
	for _, p := range c.pipelines {
		p := p
		g.Go(func() error {
			err := p.Wait(ctx)
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return err
			}
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "camera %q", p.Handle().Name))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errs
}

// Stop stops every pipeline and waits for them.
func (c *Coordinator) Stop() {
	var wg sync.WaitGroup
	for _, p := range c.pipelines {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()
}

// UpdateThresholds applies new thresholds to every camera, e.g. after the config file changed.
func (c *Coordinator) UpdateThresholds(th proximity.Thresholds) error {
	var errs error
	for _, p := range c.pipelines {
		errs = multierr.Append(errs, p.Thresholds().Update(th))
	}
	return errs
}
