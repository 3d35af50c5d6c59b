package tracing

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// HeaderTraceID carries the trace ID across the HTTP boundary.
const HeaderTraceID = "X-Trace-ID"

// HTTPMiddleware opens a span per request. The trace ID is taken from the
// request header when present and echoed in the response.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithTraceID(c.Request.Context(), c.GetHeader(HeaderTraceID))

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.client_ip", c.ClientIP())

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderTraceID, span.TraceID)

		c.Next()

		span.Status = c.Writer.Status()
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		} else if span.Status >= 500 {
			span.SetError(fmt.Errorf("status %d", span.Status))
		}
		span.Finish()
		tracer.Submit(span)
	}
}
