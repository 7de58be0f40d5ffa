/*
Package resilience provides a circuit breaker for outbound transport sends.

Network transports wrap every frame write in Breaker.Do. After MaxFailures
consecutive failures the circuit opens and writes fail fast with
ErrCircuitOpen; once OpenTimeout elapses one probe write is allowed and its
result closes or re-opens the circuit.

	breaker := resilience.New("ws", resilience.Settings{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	err := breaker.Do(func() error { return conn.WriteMessage(websocket.TextMessage, data) })
*/
package resilience
