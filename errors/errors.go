// Package errors defines the typed error taxonomy shared by the streaming
// client. Every failure the client surfaces carries an explicit Class so
// callers (and the send-side retry policy) classify errors with a direct
// tag match instead of inspecting error strings or cause chains.
package errors

import (
	"errors"
	"fmt"
)

// Class is the kind of failure an error represents.
type Class int

const (
	// ClassFraming marks a malformed or out-of-bound RecordIO length
	// prefix. Fatal to the connection, never retried.
	ClassFraming Class = iota
	// ClassTruncated marks a connection that ended mid-frame. Fatal.
	ClassTruncated
	// ClassCodec marks a payload that failed to encode or decode.
	// Assumed deterministic, so fatal to its channel and never retried.
	ClassCodec
	// ClassConnection marks a transport-level failure to establish or
	// maintain a connection. Retryable on the send side when the retry
	// policy is enabled.
	ClassConnection
	// ClassOverflow marks a bounded buffer exceeded under the fail-fast
	// overflow strategy, or production without consumer demand under
	// strict-demand backpressure. Fatal to its channel.
	ClassOverflow
	// ClassConfig marks a missing or invalid configuration field,
	// raised at build time before any network activity.
	ClassConfig
)

// String returns the string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassFraming:
		return "framing"
	case ClassTruncated:
		return "truncated"
	case ClassCodec:
		return "codec"
	case ClassConnection:
		return "connection"
	case ClassOverflow:
		return "overflow"
	case ClassConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Sentinel errors for common conditions.
var (
	// Framing errors
	ErrMalformedLength = errors.New("malformed length prefix")
	ErrFrameTooLarge   = errors.New("frame length exceeds maximum")
	ErrTruncatedStream = errors.New("stream ended mid-frame")

	// Codec errors
	ErrEncodeFailed = errors.New("message encode failed")
	ErrDecodeFailed = errors.New("message decode failed")

	// Connection errors
	ErrConnectionFailed = errors.New("connection failed")
	ErrSubscribeFailed  = errors.New("subscribe rejected")

	// Backpressure errors
	ErrBufferOverflow = errors.New("buffer overflow")
	ErrMissingDemand  = errors.New("produced without consumer demand")

	// Configuration errors
	ErrMissingConfig = errors.New("missing required configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Lifecycle errors
	ErrAlreadyStarted = errors.New("already started")
	ErrClosed         = errors.New("closed")
)

// ClassifiedError wraps an error with its class and the component and
// operation where it occurred.
type ClassifiedError struct {
	Class     Class
	Err       error
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	return fmt.Sprintf("%s.%s: %v", ce.Component, ce.Operation, ce.Err)
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// ClassOf returns the class of err and true when err carries one.
func ClassOf(err error) (Class, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

// IsConnection reports whether err is a connection-level failure. This is
// the single classification the send-side retry policy depends on.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}
	if c, ok := ClassOf(err); ok {
		return c == ClassConnection
	}
	return errors.Is(err, ErrConnectionFailed)
}

// IsOverflow reports whether err is a backpressure overflow failure.
func IsOverflow(err error) bool {
	if c, ok := ClassOf(err); ok {
		return c == ClassOverflow
	}
	return errors.Is(err, ErrBufferOverflow) || errors.Is(err, ErrMissingDemand)
}

// IsFatalToStream reports whether err must terminate the receive stream.
// All decode-path classes are fatal; they are never retried.
func IsFatalToStream(err error) bool {
	c, ok := ClassOf(err)
	if !ok {
		return false
	}
	switch c {
	case ClassFraming, ClassTruncated, ClassCodec, ClassOverflow:
		return true
	default:
		return false
	}
}

// newClassified creates a classified error. Use the Wrap* constructors.
func newClassified(class Class, err error, component, operation string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Component: component,
		Operation: operation,
	}
}

// wrap adds contextual detail while preserving the chain.
func wrap(err error, detail string) error {
	if detail == "" {
		return err
	}
	return fmt.Errorf("%s: %w", detail, err)
}

// WrapFraming wraps err as a framing error with context.
func WrapFraming(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ClassFraming, wrap(err, detail), component, operation)
}

// WrapTruncated wraps err as a truncated-stream error with context.
func WrapTruncated(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ClassTruncated, wrap(err, detail), component, operation)
}

// WrapCodec wraps err as a codec error with context.
func WrapCodec(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ClassCodec, wrap(err, detail), component, operation)
}

// WrapConnection wraps err as a connection error with context.
func WrapConnection(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ClassConnection, wrap(err, detail), component, operation)
}

// WrapOverflow wraps err as a backpressure overflow error with context.
func WrapOverflow(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ClassOverflow, wrap(err, detail), component, operation)
}

// WrapConfig wraps err as a configuration error with context.
func WrapConfig(err error, component, operation, detail string) error {
	if err == nil {
		return nil
	}
	return newClassified(ClassConfig, wrap(err, detail), component, operation)
}
