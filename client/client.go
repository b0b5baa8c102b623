package client

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hs-jenkins-bot/mesos-stream/codec"
	"github.com/hs-jenkins-bot/mesos-stream/errors"
	"github.com/hs-jenkins-bot/mesos-stream/transport"
)

// State is the controller's lifecycle state. It only moves forward:
// Idle, Subscribing, Streaming, then exactly one of Completed or
// Failed.
type State int32

const (
	StateIdle State = iota
	StateSubscribing
	StateStreaming
	StateCompleted
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSubscribing:
		return "Subscribing"
	case StateStreaming:
		return "Streaming"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Client drives one subscription: it posts the subscribe message,
// pumps the resulting event stream through the receive channel, feeds
// each decoded event to the reaction, and hands any answering sink
// operation to the send channel for concurrent dispatch. A Client runs
// at most one stream; build a new one to resubscribe.
type Client[Send, Receive any] struct {
	tr        transport.Transport
	subscribe Send
	sendCodec codec.Codec[Send]
	reaction  Reaction[Send, Receive]
	recv      *receiveChannel[Receive]
	send      *sendChannel[Send]
	logger    *slog.Logger

	state atomic.Int32

	mu       sync.Mutex
	err      error
	streamID string
	cancel   context.CancelFunc
}

// Run opens the stream and blocks until it ends. It returns nil after
// the server completes the stream cleanly, ctx's error after the
// caller cancels, and the terminal error otherwise. Run may be called
// once.
func (c *Client[Send, Receive]) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateSubscribing)) {
		return errors.WrapConfig(errors.ErrAlreadyStarted, "client", "Run", "client runs at most one stream")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	body, err := c.sendCodec.Encode(c.subscribe)
	if err != nil {
		return c.failed(err)
	}

	stream, err := c.tr.Subscribe(ctx, transport.Request{
		Body:        body,
		ContentType: c.sendCodec.MediaType(),
		Accept:      c.recv.cod.MediaType(),
	})
	if err != nil {
		return c.failed(err)
	}

	c.mu.Lock()
	c.streamID = stream.StreamID
	c.mu.Unlock()
	c.state.Store(int32(StateStreaming))
	c.logger.Info("streaming", slog.String("streamID", stream.StreamID))

	g, gctx := errgroup.WithContext(ctx)
	procDone := make(chan struct{})

	g.Go(func() error {
		return c.recv.run(gctx, stream.Body)
	})

	g.Go(func() error {
		defer close(procDone)
		return c.process(gctx)
	})

	g.Go(func() error {
		c.send.run(gctx)
		return nil
	})

	// Surfaces unhandled send channel errors, and closes the send
	// channel once processing ends so the dispatcher drains and
	// stops.
	g.Go(func() error {
		select {
		case <-c.send.Done():
			return c.send.Err()
		case <-procDone:
			c.send.Close()
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	err = g.Wait()
	c.send.Close()

	switch {
	case err == nil:
		c.state.Store(int32(StateCompleted))
		c.logger.Info("stream completed")
		return nil
	case stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded):
		// Caller-driven teardown is a clean close, not a failure.
		c.state.Store(int32(StateCompleted))
		c.logger.Info("stream closed", slog.Any("cause", err))
		return err
	default:
		return c.failed(err)
	}
}

// process pulls decoded events and applies the reaction until the
// stream ends.
func (c *Client[Send, Receive]) process(ctx context.Context) error {
	for {
		event, err := c.recv.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		op, err := c.reaction(event)
		if err != nil {
			return err
		}
		if op == nil {
			continue
		}
		if err := c.send.Accept(op); err != nil {
			return err
		}
	}
}

func (c *Client[Send, Receive]) failed(err error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.state.Store(int32(StateFailed))
	c.logger.Error("stream failed", slog.Any("error", err))
	return err
}

// Close tears the stream down: the receive channel stops pulling, the
// send channel stops accepting, and operations already dispatched run
// to their own completion or failure. Safe to call at any time and
// more than once.
func (c *Client[Send, Receive]) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.send.Close()
}

// State returns the controller's current lifecycle state.
func (c *Client[Send, Receive]) State() State {
	return State(c.state.Load())
}

// Err returns the terminal error after the stream has failed.
func (c *Client[Send, Receive]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// StreamID returns the stream identifier assigned by the server, empty
// before the stream is open.
func (c *Client[Send, Receive]) StreamID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamID
}
