// Package buffer provides the generic, thread-safe buffers that back the
// client's backpressure policies. A bounded circular buffer supports the
// three overflow strategies (fail fast, drop newest, drop oldest); an
// unbounded buffer accepts every write and grows as needed. Statistics
// are always collected; Prometheus metrics are optional.
package buffer

import "context"

// Buffer is the interface both implementations satisfy.
type Buffer[T any] interface {
	// Write adds an item. When a bounded buffer is full the configured
	// overflow strategy decides the outcome; FailFast returns a
	// backpressure overflow error.
	Write(item T) error

	// Read retrieves and removes one item without blocking. Returns the
	// zero value and false when the buffer is empty.
	Read() (T, bool)

	// ReadWait blocks until an item is available, the buffer is closed,
	// or ctx is done. After Close, remaining items are still drained;
	// once empty it returns errors.ErrClosed.
	ReadWait(ctx context.Context) (T, error)

	// Size returns the current number of buffered items.
	Size() int

	// Capacity returns the maximum number of items, or -1 when unbounded.
	Capacity() int

	// IsEmpty reports whether the buffer holds no items.
	IsEmpty() bool

	// IsFull reports whether a bounded buffer is at capacity. Always
	// false for unbounded buffers.
	IsFull() bool

	// Clear removes all items, invoking the drop callback for each.
	Clear()

	// Stats returns buffer statistics.
	Stats() *Statistics

	// Close stops the buffer. Blocked ReadWait callers are woken.
	Close() error
}

// OverflowStrategy defines how a bounded buffer behaves at capacity.
type OverflowStrategy int

const (
	// FailFast rejects the write with a backpressure overflow error.
	FailFast OverflowStrategy = iota

	// DropNewest discards the incoming item.
	DropNewest

	// DropOldest discards the oldest buffered item to make room.
	DropOldest
)

// String returns a human-readable representation of the strategy.
func (s OverflowStrategy) String() string {
	switch s {
	case FailFast:
		return "FailFast"
	case DropNewest:
		return "DropNewest"
	case DropOldest:
		return "DropOldest"
	default:
		return "Unknown"
	}
}

// DropCallback is invoked with each item dropped by an overflow strategy
// or by Clear.
type DropCallback[T any] func(item T)

// NewBounded creates a circular buffer with the given capacity.
func NewBounded[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newCircularBuffer(capacity, opts)
}

// NewUnbounded creates a buffer that grows without limit and never
// rejects or drops a write.
func NewUnbounded[T any](options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newUnboundedBuffer(opts)
}
