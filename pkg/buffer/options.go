package buffer

import (
	"github.com/hs-jenkins-bot/mesos-stream/metric"
)

// Option configures buffer behavior using the functional options pattern.
type Option[T any] func(*bufferOptions[T])

// bufferOptions holds internal configuration for buffer instances.
type bufferOptions[T any] struct {
	overflowStrategy OverflowStrategy
	dropCallback     DropCallback[T]

	// metricsReg is optional; if provided, buffer stats are also
	// exposed as Prometheus metrics under the given component name.
	metricsReg    *metric.Registry
	metricsPrefix string
}

// WithOverflowStrategy sets the overflow behavior for a bounded buffer.
// Defaults to FailFast if not specified. Unbounded buffers ignore it.
func WithOverflowStrategy[T any](strategy OverflowStrategy) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.overflowStrategy = strategy
	}
}

// WithDropCallback sets a callback invoked with each dropped item.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}

// WithMetrics enables Prometheus metrics export for buffer statistics.
// Ignored when registry is nil or prefix is empty.
func WithMetrics[T any](registry *metric.Registry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		overflowStrategy: FailFast,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
