package client

import (
	"sync"

	"github.com/google/uuid"
)

// SinkOperation pairs one outbound message with an optional completion
// callback. At most one of success or failure is ever signalled for a
// given operation, and signalling happens at most once; the outcome
// reflects that operation's own dispatch, independent of any other
// in-flight operation.
type SinkOperation[Send any] struct {
	id       uuid.UUID
	message  Send
	complete func(error)
	once     sync.Once
}

// SinkOption configures a SinkOperation.
type SinkOption[Send any] func(*SinkOperation[Send])

// WithCompletion attaches a callback fired exactly once with the
// operation's dispatch outcome: nil on success, the dispatch error on
// failure.
func WithCompletion[Send any](fn func(error)) SinkOption[Send] {
	return func(op *SinkOperation[Send]) {
		op.complete = fn
	}
}

// NewSinkOperation wraps one outbound message.
func NewSinkOperation[Send any](message Send, opts ...SinkOption[Send]) *SinkOperation[Send] {
	op := &SinkOperation[Send]{
		id:      uuid.New(),
		message: message,
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// ID returns the operation's identifier, used to correlate retry log
// lines with completions.
func (op *SinkOperation[Send]) ID() uuid.UUID { return op.id }

// Message returns the outbound payload.
func (op *SinkOperation[Send]) Message() Send { return op.message }

// Complete signals success. Later signals are ignored.
func (op *SinkOperation[Send]) Complete() {
	op.once.Do(func() {
		if op.complete != nil {
			op.complete(nil)
		}
	})
}

// Fail signals failure with the dispatch error. Later signals are
// ignored.
func (op *SinkOperation[Send]) Fail(err error) {
	op.once.Do(func() {
		if op.complete != nil {
			op.complete(err)
		}
	})
}
