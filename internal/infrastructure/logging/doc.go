// Package logging provides structured logging for ccuflux.
//
// It wraps log/slog with configuration-driven level, format, and output
// selection, plus default fields identifying the service. Components obtain
// scoped loggers via With:
//
//	bufferLog := logger.With("component", "buffer")
//	bufferLog.Info("flushing", "points", 3)
//
// All methods are safe for concurrent use from multiple goroutines.
package logging
