package buffer

import (
	"context"
	"sync"

	"github.com/hs-jenkins-bot/mesos-stream/errors"
)

// unboundedBuffer is a thread-safe FIFO queue bounded only by available
// memory. Writes never fail and never drop.
type unboundedBuffer[T any] struct {
	mu      sync.RWMutex
	items   []T
	stats   *Statistics
	metrics *bufferMetrics
	opts    *bufferOptions[T]

	notEmpty *sync.Cond
	closed   bool
}

func newUnboundedBuffer[T any](opts *bufferOptions[T]) (*unboundedBuffer[T], error) {
	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, err
		}
	}

	ub := &unboundedBuffer[T]{
		stats:   NewStatistics(),
		metrics: metrics,
		opts:    opts,
	}
	ub.notEmpty = sync.NewCond(&ub.mu)

	return ub, nil
}

// Write appends an item. It only fails after Close.
func (ub *unboundedBuffer[T]) Write(item T) error {
	ub.mu.Lock()
	defer ub.mu.Unlock()

	if ub.closed {
		return errors.WrapOverflow(errors.ErrClosed, "buffer", "Write", "buffer closed")
	}

	ub.items = append(ub.items, item)

	ub.stats.Write()
	ub.stats.UpdateSize(int64(len(ub.items)))
	if ub.metrics != nil {
		ub.metrics.recordWrite(len(ub.items), 0)
	}

	ub.notEmpty.Signal()
	return nil
}

// Read retrieves and removes one item without blocking.
func (ub *unboundedBuffer[T]) Read() (T, bool) {
	ub.mu.Lock()
	defer ub.mu.Unlock()
	return ub.readLocked()
}

func (ub *unboundedBuffer[T]) readLocked() (T, bool) {
	var zero T
	if len(ub.items) == 0 {
		return zero, false
	}

	item := ub.items[0]
	ub.items[0] = zero // release reference
	ub.items = ub.items[1:]
	if len(ub.items) == 0 {
		ub.items = nil // let the backing array go
	}

	ub.stats.Read()
	ub.stats.UpdateSize(int64(len(ub.items)))
	if ub.metrics != nil {
		ub.metrics.recordRead(len(ub.items), 0)
	}

	return item, true
}

// ReadWait blocks until an item is available, the buffer is closed and
// drained, or ctx is done.
func (ub *unboundedBuffer[T]) ReadWait(ctx context.Context) (T, error) {
	var zero T

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ub.notEmpty.Broadcast()
		case <-done:
		}
	}()

	ub.mu.Lock()
	defer ub.mu.Unlock()

	for {
		if item, ok := ub.readLocked(); ok {
			return item, nil
		}
		if ub.closed {
			return zero, errors.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		ub.notEmpty.Wait()
	}
}

// Size returns the current number of items.
func (ub *unboundedBuffer[T]) Size() int {
	ub.mu.RLock()
	defer ub.mu.RUnlock()
	return len(ub.items)
}

// Capacity returns -1: the buffer has no fixed bound.
func (ub *unboundedBuffer[T]) Capacity() int { return -1 }

// IsEmpty reports whether the buffer contains no items.
func (ub *unboundedBuffer[T]) IsEmpty() bool {
	ub.mu.RLock()
	defer ub.mu.RUnlock()
	return len(ub.items) == 0
}

// IsFull always reports false.
func (ub *unboundedBuffer[T]) IsFull() bool { return false }

// Clear removes all items, invoking the drop callback for each.
func (ub *unboundedBuffer[T]) Clear() {
	ub.mu.Lock()

	var dropped []T
	if ub.opts.dropCallback != nil && len(ub.items) > 0 {
		dropped = make([]T, len(ub.items))
		copy(dropped, ub.items)
	}

	ub.items = nil
	ub.stats.UpdateSize(0)
	if ub.metrics != nil {
		ub.metrics.updateSize(0, 0)
	}

	ub.mu.Unlock()

	// Outside the lock so the callback may reenter the buffer.
	for _, item := range dropped {
		ub.opts.dropCallback(item)
	}
}

// Stats returns buffer statistics.
func (ub *unboundedBuffer[T]) Stats() *Statistics {
	return ub.stats
}

// Close shuts down the buffer and wakes blocked readers.
func (ub *unboundedBuffer[T]) Close() error {
	ub.mu.Lock()
	defer ub.mu.Unlock()

	if ub.closed {
		return nil
	}
	ub.closed = true
	ub.notEmpty.Broadcast()
	return nil
}
