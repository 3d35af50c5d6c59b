// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a *Logger and derive a named child with Named, so bridge,
// gate, cache and session lines can be filtered by the "logger" field.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	bridgeLog := logger.Named("bridge")
//	bridgeLog.Info("command sent", zap.String("command", "setMode"))
package logging
