package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

const (
	queueSize    = 256
	fetchTimeout = time.Minute
)

// Worker fills cache entries in the background. At most one fill per key is
// queued or running at a time; a duplicate request while one is in flight is
// dropped because the in-flight fill will satisfy it.
type Worker struct {
	store   *Store
	fetcher Fetcher
	log     *logging.Logger
	metrics *monitoring.Metrics
	size    int

	jobs chan job

	mu       sync.Mutex
	inflight map[string]struct{}
	pending  int
	idle     *sync.Cond
	stopped  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type job struct {
	url string
	key string
}

// NewWorker creates a worker pool of size goroutines, clamped to [1, 2].
func NewWorker(store *Store, fetcher Fetcher, size int, log *logging.Logger, metrics *monitoring.Metrics) *Worker {
	if size < 1 {
		size = 1
	}
	if size > 2 {
		size = 2
	}
	w := &Worker{
		store:    store,
		fetcher:  fetcher,
		log:      logging.OrNop(log).Named("cache.worker"),
		metrics:  metrics,
		size:     size,
		jobs:     make(chan job, queueSize),
		inflight: make(map[string]struct{}),
	}
	w.idle = sync.NewCond(&w.mu)
	return w
}

// Size returns the number of worker goroutines.
func (w *Worker) Size() int {
	return w.size
}

// Start launches the goroutines. Fills keep running until Stop or ctx ends.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.size; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx)
		}()
	}
}

// Stop cancels running fills and waits for the goroutines to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Enqueue schedules a fill of url. It reports false if the key is already in
// flight, the queue is full, or the worker is stopped.
func (w *Worker) Enqueue(url string) bool {
	key := Key(url)

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	if _, busy := w.inflight[key]; busy {
		w.mu.Unlock()
		return false
	}
	select {
	case w.jobs <- job{url: url, key: key}:
		w.inflight[key] = struct{}{}
		w.pending++
		w.mu.Unlock()
		return true
	default:
		w.mu.Unlock()
		w.log.Warn("cache queue full, dropping fill", zap.String("url", url))
		return false
	}
}

// InFlight reports whether a fill for url is queued or running.
func (w *Worker) InFlight(url string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.inflight[Key(url)]
	return ok
}

// Flush blocks until every queued fill has finished.
func (w *Worker) Flush() {
	w.mu.Lock()
	for w.pending > 0 {
		w.idle.Wait()
	}
	w.mu.Unlock()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.abandon()
			return
		case j := <-w.jobs:
			w.run(ctx, j)
		}
	}
}

func (w *Worker) run(ctx context.Context, j job) {
	defer w.finish(j.key)

	if w.store.Has(j.key) {
		return
	}
	start := time.Now()
	n, err := w.fill(ctx, j)
	if err != nil {
		stage := "write"
		var se *stageError
		if errors.As(err, &se) {
			stage = se.stage
		}
		w.metrics.CacheFailure(stage)
		w.log.Warn("cache fill failed",
			zap.String("url", j.url),
			zap.String("stage", stage),
			zap.Error(err))
		return
	}
	w.metrics.CacheWrite(n)
	w.log.Debug("cached resource",
		zap.String("url", j.url),
		zap.Int64("bytes", n),
		zap.Duration("took", time.Since(start)))
}

func (w *Worker) fill(ctx context.Context, j job) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	resp, err := w.fetcher.Get(ctx, j.url)
	if err != nil {
		return 0, &stageError{stage: "fetch", err: err}
	}

	normalize := normalizerFor(Ext(j.url))
	n, err := w.store.Write(j.key, func(out io.Writer) error {
		return normalize(resp.Body, out)
	})
	if err != nil {
		if errors.Is(err, errDecode) {
			return 0, &stageError{stage: "decode", err: err}
		}
		return 0, &stageError{stage: "write", err: err}
	}
	return n, nil
}

func (w *Worker) finish(key string) {
	w.mu.Lock()
	delete(w.inflight, key)
	w.pending--
	if w.pending == 0 {
		w.idle.Broadcast()
	}
	w.mu.Unlock()
}

// abandon drops queued jobs after cancellation so Flush does not hang.
func (w *Worker) abandon() {
	for {
		select {
		case j := <-w.jobs:
			w.finish(j.key)
		default:
			return
		}
	}
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }
