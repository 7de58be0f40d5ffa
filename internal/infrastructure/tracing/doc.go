/*
Package tracing provides lightweight trace spans for bridge connections.

A span is started for every HTTP request (a websocket upgrade keeps its
span open for the life of the connection) and for every gRPC pipe stream.
Trace context travels in the X-Trace-ID and X-Span-ID headers, or the
matching gRPC metadata keys, so a remote environment can join the trace of
whatever launched it.

Finished spans go through a buffered channel to a collector goroutine that
logs them; a full buffer drops spans instead of blocking the connection.

# Usage

	tracer := tracing.New("bridged", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	server := grpc.NewServer(
		grpc.StreamInterceptor(tracing.StreamServerInterceptor(tracer)),
	)
*/
package tracing
