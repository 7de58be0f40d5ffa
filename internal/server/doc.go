// Package server hosts bridges for remote environments.
//
// Every websocket connection on /bridge, and every gRPC pipe stream when a
// gRPC port is configured, gets its own Bridge with the demo handlers
// installed and the bootstrap scripts injected on ready.
//
// Routes:
//   - GET /bridge     websocket upgrade
//   - GET /health     liveness and bridge count
//   - GET /bridges    live bridges with state and pending calls
//   - PUT /log-level  change the log level at run time
//   - GET /metrics    Prometheus metrics
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = srv.Run(ctx)
package server
