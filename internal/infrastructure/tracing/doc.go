// Package tracing records request spans as structured log lines.
//
// Each HTTP request gets a span carrying a trace ID, taken from the
// X-Trace-ID header when the caller sends one. Finished spans go through a
// buffered collector so request handling never waits on logging.
//
// Example Usage:
//
//	tracer := tracing.New("widgetshell", logger)
//	defer tracer.Close()
//	router.Use(tracing.HTTPMiddleware(tracer))
package tracing
