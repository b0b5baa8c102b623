package client

import "github.com/hs-jenkins-bot/mesos-stream/pkg/buffer"

type backpressureMode int

const (
	modeStrict backpressureMode = iota
	modeUnbounded
	modeBounded
)

// Backpressure selects how a channel behaves when its producer runs
// ahead of its consumer. The zero value is strict demand.
type Backpressure struct {
	mode       backpressureMode
	capacity   int
	strategy   buffer.OverflowStrategy
	onOverflow func()
}

// StrictDemand admits no buffering: each item is handed across only
// when the consumer has signalled readiness for it. On the receive
// side the producer suspends, which in turn stops reading from the
// event stream so flow control propagates to the connection. On the
// send side an operation offered while no dispatch slot is free is
// rejected with a missing-demand overflow error.
func StrictDemand() Backpressure {
	return Backpressure{mode: modeStrict}
}

// UnboundedBuffer accepts every item immediately into a buffer with no
// capacity limit. The producer never suspends; memory is the only
// bound.
func UnboundedBuffer() Backpressure {
	return Backpressure{mode: modeUnbounded}
}

// BoundedBuffer accepts items into a fixed-capacity buffer. The
// strategy decides what happens when the buffer is full: FailFast
// terminates the channel with an overflow error, DropOldest and
// DropNewest shed load and keep going. onOverflow, when non-nil, runs
// once per dropped item.
func BoundedBuffer(capacity int, strategy buffer.OverflowStrategy, onOverflow func()) Backpressure {
	return Backpressure{
		mode:       modeBounded,
		capacity:   capacity,
		strategy:   strategy,
		onOverflow: onOverflow,
	}
}

// buffered reports whether the policy stages items in a buffer.
func (b Backpressure) buffered() bool { return b.mode != modeStrict }

// newBuffer builds the staging buffer for a buffered policy. Extra
// options wire buffer metrics when a registry is configured.
func newBuffer[T any](b Backpressure, opts ...buffer.Option[T]) (buffer.Buffer[T], error) {
	switch b.mode {
	case modeUnbounded:
		return buffer.NewUnbounded[T](opts...)
	case modeBounded:
		all := make([]buffer.Option[T], 0, len(opts)+2)
		all = append(all, buffer.WithOverflowStrategy[T](b.strategy))
		if b.onOverflow != nil {
			cb := b.onOverflow
			all = append(all, buffer.WithDropCallback[T](func(T) { cb() }))
		}
		all = append(all, opts...)
		return buffer.NewBounded[T](b.capacity, all...)
	default:
		return nil, nil
	}
}
