// Package httpclient is the single outbound HTTP path. Requests go through a
// rate limiter, a circuit breaker, resty, and a go-retryablehttp transport
// that retries connection errors and 5xx responses with backoff.
package httpclient
