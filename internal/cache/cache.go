package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
)

// Options configures a Cache.
type Options struct {
	Dir     string
	MaxAge  time.Duration
	Workers int
	// Policy defaults to DefaultPolicy.
	Policy  *Policy
	Fetcher Fetcher
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Cache bundles the store, worker pool, interceptor and prefetcher.
type Cache struct {
	*Interceptor
	Store      *Store
	Worker     *Worker
	Prefetcher *Prefetcher
	Policy     *Policy
}

// New builds a cache and sweeps leftovers of interrupted writes. Call Start
// to begin filling.
func New(opts Options) (*Cache, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("cache: fetcher required")
	}
	policy := opts.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}

	store, err := NewStore(opts.Dir, opts.MaxAge, opts.Logger)
	if err != nil {
		return nil, err
	}
	if _, err := store.Sweep(); err != nil {
		return nil, fmt.Errorf("sweep cache: %w", err)
	}

	worker := NewWorker(store, opts.Fetcher, opts.Workers, opts.Logger, opts.Metrics)
	return &Cache{
		Interceptor: NewInterceptor(policy, store, worker, opts.Logger, opts.Metrics),
		Store:       store,
		Worker:      worker,
		Prefetcher:  NewPrefetcher(opts.Fetcher, policy, store, worker, opts.Logger),
		Policy:      policy,
	}, nil
}

// Start launches the fill workers.
func (c *Cache) Start(ctx context.Context) {
	c.Worker.Start(ctx)
}

// Stop halts the fill workers.
func (c *Cache) Stop() {
	c.Worker.Stop()
}

// Prefetch warms the cache from a page. See Prefetcher.Prefetch.
func (c *Cache) Prefetch(ctx context.Context, pageURL string) (int, error) {
	return c.Prefetcher.Prefetch(ctx, pageURL)
}
