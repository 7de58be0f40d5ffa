// Package logging provides structured logging using uber/zap.
//
// Two output modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every Logger carries a zap.AtomicLevel shared with the loggers derived from
// it through Named and With, so diagnostic verbosity can be queried and
// adjusted while bridges are running:
//
//	logger := logging.NewDefault()
//	logger.Info("Bridge ready", zap.String("bridge", id))
//	_ = logger.SetLevel("debug")
package logging
