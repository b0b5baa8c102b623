package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs-jenkins-bot/mesos-stream/codec"
	"github.com/hs-jenkins-bot/mesos-stream/errors"
	"github.com/hs-jenkins-bot/mesos-stream/pkg/buffer"
	"github.com/hs-jenkins-bot/mesos-stream/transport"
)

func newTestSend(t *testing.T, tr transport.Transport, policy Backpressure, retries bool) *sendChannel[schedulerCall] {
	t.Helper()
	sc, err := newSendChannel[schedulerCall](codec.JSON[schedulerCall](), tr, policy, retries, testLogger(), nil)
	require.NoError(t, err)
	return sc
}

func TestStrictAcceptWithoutDemandIsRejected(t *testing.T) {
	tr := &fakeTransport{}
	sc := newTestSend(t, tr, StrictDemand(), false)
	// The dispatcher is not running, so no dispatch slot is free.

	var failure error
	op := NewSinkOperation(schedulerCall{Type: "ACKNOWLEDGE"},
		WithCompletion[schedulerCall](func(err error) { failure = err }))

	err := sc.Accept(op)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingDemand)
	assert.ErrorIs(t, failure, errors.ErrMissingDemand)

	// The violation is unhandled and fails the channel.
	select {
	case <-sc.Done():
	default:
		t.Fatal("channel did not fail")
	}
	assert.ErrorIs(t, sc.Err(), errors.ErrMissingDemand)
}

func TestStrictAcceptHandsOffToWaitingDispatcher(t *testing.T) {
	tr := &fakeTransport{}
	sc := newTestSend(t, tr, StrictDemand(), false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sc.run(ctx)

	outcome := make(chan error, 1)
	op := NewSinkOperation(schedulerCall{Type: "ACKNOWLEDGE"},
		WithCompletion[schedulerCall](func(err error) { outcome <- err }))

	// Give the dispatcher a moment to reach its receive; an early
	// Accept would be a demand violation.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sc.Accept(op))

	select {
	case err := <-outcome:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("operation did not complete")
	}
	assert.Equal(t, 1, tr.callCount())
}

func TestBoundedFailFastOverflowFailsChannel(t *testing.T) {
	tr := &fakeTransport{}
	sc := newTestSend(t, tr, BoundedBuffer(1, buffer.FailFast, nil), false)
	// No dispatcher: the buffer fills immediately.

	require.NoError(t, sc.Accept(NewSinkOperation(schedulerCall{Type: "a"})))

	err := sc.Accept(NewSinkOperation(schedulerCall{Type: "b"}))
	require.Error(t, err)
	assert.True(t, errors.IsOverflow(err))
	assert.True(t, errors.IsFatalToStream(err))
	assert.ErrorIs(t, sc.Err(), errors.ErrBufferOverflow)
}

func TestBoundedDropOldestFailsDroppedOperation(t *testing.T) {
	tr := &fakeTransport{}

	var overflows int
	sc := newTestSend(t, tr, BoundedBuffer(1, buffer.DropOldest, func() { overflows++ }), false)

	var mu sync.Mutex
	var dropErr error
	first := NewSinkOperation(schedulerCall{Type: "first"},
		WithCompletion[schedulerCall](func(err error) {
			mu.Lock()
			dropErr = err
			mu.Unlock()
		}))

	require.NoError(t, sc.Accept(first))
	require.NoError(t, sc.Accept(NewSinkOperation(schedulerCall{Type: "second"})))

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, dropErr)
	assert.ErrorIs(t, dropErr, errors.ErrBufferOverflow)
	assert.Equal(t, 1, overflows)

	// Dropping is load shedding, not a channel failure.
	select {
	case <-sc.Done():
		t.Fatal("channel should survive a drop")
	default:
	}
}

func TestAcceptAfterCloseIsRejected(t *testing.T) {
	tr := &fakeTransport{}
	sc := newTestSend(t, tr, UnboundedBuffer(), false)

	sc.Close()

	err := sc.Accept(NewSinkOperation(schedulerCall{Type: "late"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrClosed)
}

func TestCloseDrainsStagedOperations(t *testing.T) {
	tr := &fakeTransport{}
	sc := newTestSend(t, tr, UnboundedBuffer(), false)

	var completions sync.WaitGroup
	for i := 0; i < 3; i++ {
		completions.Add(1)
		require.NoError(t, sc.Accept(NewSinkOperation(schedulerCall{Type: "ACCEPT"},
			WithCompletion[schedulerCall](func(err error) {
				assert.NoError(t, err)
				completions.Done()
			}))))
	}

	// Operations staged before Close still dispatch.
	sc.Close()
	go sc.run(context.Background())

	completions.Wait()
	sc.Wait()
	assert.Equal(t, 3, tr.callCount())
}
