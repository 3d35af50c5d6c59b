/*
Package monitoring provides Prometheus metrics for the shell.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	metrics.RecordCommand("out", "setMode", "queued")
	metrics.CacheLookup("hit")

All recording methods accept a nil receiver.
*/
package monitoring
