package client

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"

	"github.com/hs-jenkins-bot/mesos-stream/codec"
	"github.com/hs-jenkins-bot/mesos-stream/errors"
	"github.com/hs-jenkins-bot/mesos-stream/pkg/buffer"
	"github.com/hs-jenkins-bot/mesos-stream/recordio"
)

const readChunkSize = 32 * 1024

// receiveChannel owns the inbound half of an open stream: it reads raw
// chunks from the event stream body, reassembles frames, decodes them
// and hands decoded events to the controller under the configured
// backpressure policy. Exactly one goroutine runs the pump and exactly
// one consumer calls Next.
type receiveChannel[Receive any] struct {
	dec     *recordio.Decoder
	cod     codec.Codec[Receive]
	policy  Backpressure
	logger  *slog.Logger
	metrics *channelMetrics

	// strict mode: unbuffered rendezvous, the pump suspends in send
	// until the consumer is ready, which stops body reads and lets
	// flow control reach the connection.
	out chan Receive

	// buffered modes
	buf buffer.Buffer[Receive]

	mu   sync.Mutex
	err  error // terminal error; nil after a clean end of stream
	done chan struct{}
}

func newReceiveChannel[Receive any](cod codec.Codec[Receive], policy Backpressure, maxFrameSize int, logger *slog.Logger, metrics *channelMetrics) (*receiveChannel[Receive], error) {
	var decOpts []recordio.Option
	if maxFrameSize > 0 {
		decOpts = append(decOpts, recordio.WithMaxFrameSize(maxFrameSize))
	}

	rc := &receiveChannel[Receive]{
		dec:     recordio.NewDecoder(decOpts...),
		cod:     cod,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}

	if policy.buffered() {
		var bufOpts []buffer.Option[Receive]
		if metrics != nil && metrics.registry != nil {
			bufOpts = append(bufOpts, buffer.WithMetrics[Receive](metrics.registry, "receive"))
		}
		buf, err := newBuffer[Receive](policy, bufOpts...)
		if err != nil {
			return nil, err
		}
		rc.buf = buf
	} else {
		rc.out = make(chan Receive)
	}

	return rc, nil
}

// run pumps the stream body until it ends or the channel fails. It
// returns nil on a clean end of stream and the terminal error
// otherwise. The body is closed before run returns.
func (rc *receiveChannel[Receive]) run(ctx context.Context, body io.ReadCloser) error {
	defer body.Close()

	// Unblock a pending body read on cancellation.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	chunk := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			rc.terminate(err)
			return err
		}

		n, readErr := body.Read(chunk)
		if n > 0 {
			frames, err := rc.dec.Feed(chunk[:n])
			if err != nil {
				rc.terminate(err)
				return err
			}
			for _, frame := range frames {
				event, err := rc.cod.Decode(frame)
				if err != nil {
					rc.terminate(err)
					return err
				}
				if err := rc.deliver(ctx, event); err != nil {
					rc.terminate(err)
					return err
				}
			}
		}

		if readErr == io.EOF {
			if err := rc.dec.Close(); err != nil {
				rc.terminate(err)
				return err
			}
			rc.logger.Debug("event stream ended cleanly",
				slog.Int64("frames", rc.dec.FramesDecoded()))
			rc.terminate(nil)
			return nil
		}
		if readErr != nil {
			// Cancellation closes the body out from under the read;
			// report the cancellation, not the induced read error.
			if err := ctx.Err(); err != nil {
				rc.terminate(err)
				return err
			}
			// Mid-stream read failures are connection errors; a
			// server that closes mid-frame is caught by the decoder
			// above on EOF instead.
			err := errors.WrapConnection(readErr, "receive", "read", "event stream read failed")
			rc.terminate(err)
			return err
		}
	}
}

// deliver hands one decoded event to the consumer side.
func (rc *receiveChannel[Receive]) deliver(ctx context.Context, event Receive) error {
	if rc.metrics != nil {
		rc.metrics.eventsReceived.Inc()
	}
	if rc.buf != nil {
		// FailFast surfaces the overflow error here, which terminates
		// the channel. Drop strategies record the drop and succeed.
		return rc.buf.Write(event)
	}
	select {
	case rc.out <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// terminate records the terminal outcome exactly once and wakes the
// consumer. Events already buffered remain readable; the consumer
// observes them before the terminal outcome.
func (rc *receiveChannel[Receive]) terminate(err error) {
	rc.mu.Lock()
	select {
	case <-rc.done:
		rc.mu.Unlock()
		return
	default:
	}
	rc.err = err
	close(rc.done)
	rc.mu.Unlock()

	if rc.buf != nil {
		rc.buf.Close()
	}
}

// terminal returns io.EOF after a clean end of stream, the channel's
// terminal error otherwise.
func (rc *receiveChannel[Receive]) terminal() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.err == nil {
		return io.EOF
	}
	return rc.err
}

// Next blocks until the next decoded event is available and returns
// it. When the stream has ended it returns io.EOF after a clean end
// and the terminal error after a failure, in both cases only once all
// preceding events have been consumed.
func (rc *receiveChannel[Receive]) Next(ctx context.Context) (Receive, error) {
	var zero Receive

	if rc.buf != nil {
		event, err := rc.buf.ReadWait(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrClosed) {
				return zero, rc.terminal()
			}
			return zero, err
		}
		return event, nil
	}

	select {
	case event := <-rc.out:
		return event, nil
	case <-rc.done:
		return zero, rc.terminal()
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
