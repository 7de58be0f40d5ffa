/*
Package monitoring provides Prometheus metrics for bridges and their transports.

# Metrics

  - Lifecycle: active bridges, transitions by target state
  - Outbound: calls by outcome, pending replies
  - Inbound: envelopes by kind, replies by outcome, handler calls and latency
  - Console lines forwarded from the remote environment
  - Transport frames by transport, direction and type
  - HTTP requests served by the bridge server

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "Sum")
	// ... run handler ...
	timer.Stop("ok")

Every method tolerates a nil receiver.
*/
package monitoring
