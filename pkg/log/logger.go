// Package log provides structured logging utilities for the guard report tool.
// It wraps the standard library's slog package with additional convenience methods.
// Logs go to stderr; stdout is reserved for the report itself.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	reportErrors "github.com/bardlex/guardreport/pkg/errors"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger writing to stderr with the specified configuration
func New(service, version, level, format string) *Logger {
	return NewWithWriter(os.Stderr, service, version, level, format)
}

// NewWithWriter creates a new logger writing to w
func NewWithWriter(w io.Writer, service, version, level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: parseLevel(level) == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "test", "test", "error", "text")
}

// WithContext returns a logger with additional context fields
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if runID := ctx.Value("run_id"); runID != nil {
		logger = logger.With("run_id", runID)
	}

	return &Logger{
		Logger:  logger,
		service: l.service,
		version: l.version,
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithRequest returns a logger tagged with the request transaction id
func (l *Logger) WithRequest(txid string) *Logger {
	return l.WithFields("request_txid", txid)
}

// WithBid returns a logger tagged with a bid transaction id
func (l *Logger) WithBid(bidID string) *Logger {
	return l.WithFields("bid_txid", bidID)
}

// WithError returns a logger with the error and, for classified errors,
// its type, operation and context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields(append([]any{"error", err.Error()}, reportErrors.Fields(err)...)...)
}

// LogDuration logs the duration of an operation
func (l *Logger) LogDuration(operation string, duration int64) {
	l.Debug("operation completed",
		"operation", operation,
		"duration_ns", duration,
		"duration_ms", float64(duration)/1e6,
	)
}

// LogFeeScan logs the outcome of a coinbase fee scan over a height range
func (l *Logger) LogFeeScan(startHeight, endHeight int64, blocks int, total float64, partial bool) {
	l.Info("fee scan finished",
		"start_height", startHeight,
		"end_height", endHeight,
		"blocks_scanned", blocks,
		"total_fee", total,
		"partial", partial,
	)
}

// LogRPCCall logs an outgoing RPC call (debug level)
func (l *Logger) LogRPCCall(endpoint, method string) {
	l.Debug("rpc call",
		"endpoint", endpoint,
		"method", method,
	)
}
