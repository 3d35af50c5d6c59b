package cache

import (
	"context"
	"io"
	"net/http"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Request is an outbound resource request from the embedded content.
type Request struct {
	Method string
	URL    string
}

// Response serves a request from the cache.
type Response struct {
	MimeType   string
	Encoding   string
	StatusCode int
	Reason     string
	Headers    map[string]string
	Body       io.ReadCloser
}

// Interceptor answers resource requests from local storage and schedules
// fills for misses.
type Interceptor struct {
	policy  *Policy
	store   *Store
	worker  *Worker
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewInterceptor wires the policy, store and worker together.
func NewInterceptor(policy *Policy, store *Store, worker *Worker, log *logging.Logger, metrics *monitoring.Metrics) *Interceptor {
	return &Interceptor{
		policy:  policy,
		store:   store,
		worker:  worker,
		log:     logging.OrNop(log).Named("cache"),
		metrics: metrics,
	}
}

// Intercept returns the cached response for req, or nil when the caller
// should go to the network. A nil result for a cacheable URL schedules a
// background fill so a later request hits. Failures are never returned.
func (i *Interceptor) Intercept(ctx context.Context, req Request) *Response {
	if req.Method != http.MethodGet || !i.policy.IsCacheable(req.URL) {
		i.metrics.CacheLookup("skip")
		return nil
	}

	key := Key(req.URL)
	if i.store.Has(key) {
		f, err := i.store.Open(key)
		if err == nil {
			i.metrics.CacheLookup("hit")
			return &Response{
				MimeType:   i.policy.MimeFor(Ext(req.URL)),
				Encoding:   "utf-8",
				StatusCode: http.StatusOK,
				Reason:     "OK",
				Headers:    map[string]string{"Access-Control-Allow-Origin": "*"},
				Body:       f,
			}
		}
		i.log.Warn("cached entry unreadable", zap.String("key", key), zap.Error(err))
	}

	i.metrics.CacheLookup("miss")
	if ctx.Err() == nil && i.worker != nil {
		i.worker.Enqueue(req.URL)
	}
	return nil
}
