// Package errors classifies the failures of a report run. Every error
// names the stage operation that failed and whether repeating it may help.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"syscall"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeTransport represents network/HTTP failures talking to the coordinator or node
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeMalformed represents responses with an unexpected JSON shape
	ErrorTypeMalformed ErrorType = "malformed"
	// ErrorTypeValidation represents invalid input such as a bad pubkey
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeRPC represents an error object returned by a JSON-RPC server
	ErrorTypeRPC ErrorType = "rpc"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeSink represents failures writing the report to an external sink
	ErrorTypeSink ErrorType = "sink"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInternal represents internal/unknown errors
	ErrorTypeInternal ErrorType = "internal"
)

// ServiceError is a failure of one operation of the report pipeline
type ServiceError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]any
	Retryable bool
}

// Error renders "<operation>: <message> [<type>]" followed by the cause
func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s [%s]", e.Operation, e.Message, e.Type)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair that is logged with the error
func (e *ServiceError) WithContext(key string, value any) *ServiceError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a ServiceError. Transport, timeout and sink errors are
// retryable.
func New(errorType ErrorType, operation, message string) *ServiceError {
	return &ServiceError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Retryable: retryableType(errorType),
	}
}

// Wrap classifies err. An inner ServiceError keeps its retry decision;
// any other cause is retryable only when it looks like a transient network
// failure.
func Wrap(err error, errorType ErrorType, operation, message string) *ServiceError {
	if err == nil {
		return nil
	}

	se := &ServiceError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Cause:     err,
	}

	var inner *ServiceError
	if errors.As(err, &inner) {
		se.Retryable = inner.Retryable
	} else {
		se.Retryable = transient(err)
	}
	return se
}

func retryableType(errorType ErrorType) bool {
	return errorType == ErrorTypeTransport || errorType == ErrorTypeTimeout || errorType == ErrorTypeSink
}

// transientMessages catches network failures reported only as text, as
// Kafka and Redis client errors often are
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsType reports whether the outermost ServiceError in err has errorType
func IsType(err error, errorType ErrorType) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Type == errorType
}

// IsRetryable reports whether repeating the failed operation may succeed
func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return transient(err)
}

// Fields flattens err into slog key/value pairs: type, operation and the
// attached context in key order. A plain error yields nothing.
func Fields(err error) []any {
	var se *ServiceError
	if !errors.As(err, &se) {
		return nil
	}

	fields := []any{"error_type", string(se.Type), "operation", se.Operation}

	keys := make([]string, 0, len(se.Context))
	for k := range se.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, k, se.Context[k])
	}
	return fields
}
