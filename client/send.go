package client

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hs-jenkins-bot/mesos-stream/codec"
	"github.com/hs-jenkins-bot/mesos-stream/errors"
	"github.com/hs-jenkins-bot/mesos-stream/pkg/buffer"
	"github.com/hs-jenkins-bot/mesos-stream/pkg/retry"
	"github.com/hs-jenkins-bot/mesos-stream/transport"
)

// retryPace caps the global rate of retry attempts across all
// concurrently retrying dispatches, on top of each dispatch's own
// exponential backoff.
var retryPace = rate.Every(100 * time.Millisecond)

// sendChannel owns the outbound half of an open stream. Accepted sink
// operations are dispatched concurrently and complete in whatever
// order the server answers; operation k+1 never waits for operation k.
// An unhandled dispatch error fails the channel, which the controller
// observes through Done and Err.
type sendChannel[Send any] struct {
	cod     codec.Codec[Send]
	tr      transport.Transport
	policy  Backpressure
	retries bool
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *channelMetrics

	// strict mode: an unbuffered handoff. A non-blocking send
	// succeeds only while the dispatcher is waiting for work, so an
	// operation offered with no free dispatch slot is rejected.
	ops chan *SinkOperation[Send]

	// buffered modes
	buf buffer.Buffer[*SinkOperation[Send]]

	// retryCtx outlives the stream context so in-flight dispatches
	// are not aborted by controller teardown; Close cancels it to
	// stop backoff sleeps.
	retryCtx    context.Context
	stopRetries context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}

	mu   sync.Mutex
	err  error
	done chan struct{}
}

func newSendChannel[Send any](cod codec.Codec[Send], tr transport.Transport, policy Backpressure, retries bool, logger *slog.Logger, metrics *channelMetrics) (*sendChannel[Send], error) {
	retryCtx, stopRetries := context.WithCancel(context.Background())

	sc := &sendChannel[Send]{
		cod:         cod,
		tr:          tr,
		policy:      policy,
		retries:     retries,
		limiter:     rate.NewLimiter(retryPace, 1),
		logger:      logger,
		metrics:     metrics,
		retryCtx:    retryCtx,
		stopRetries: stopRetries,
		closed:      make(chan struct{}),
		done:        make(chan struct{}),
	}

	if policy.buffered() {
		bufOpts := []buffer.Option[*SinkOperation[Send]]{
			buffer.WithOverflowStrategy[*SinkOperation[Send]](policy.strategy),
		}
		if metrics != nil && metrics.registry != nil {
			bufOpts = append(bufOpts, buffer.WithMetrics[*SinkOperation[Send]](metrics.registry, "send"))
		}
		// Dropped operations are failed; they never dispatch.
		userOverflow := policy.onOverflow
		bufOpts = append(bufOpts, buffer.WithDropCallback[*SinkOperation[Send]](func(op *SinkOperation[Send]) {
			op.Fail(errors.WrapOverflow(errors.ErrBufferOverflow, "send", "Accept", "operation dropped"))
			if userOverflow != nil {
				userOverflow()
			}
		}))

		var (
			buf buffer.Buffer[*SinkOperation[Send]]
			err error
		)
		if policy.mode == modeUnbounded {
			buf, err = buffer.NewUnbounded[*SinkOperation[Send]](bufOpts...)
		} else {
			buf, err = buffer.NewBounded[*SinkOperation[Send]](policy.capacity, bufOpts...)
		}
		if err != nil {
			return nil, err
		}
		sc.buf = buf
	} else {
		sc.ops = make(chan *SinkOperation[Send])
	}

	return sc, nil
}

// Accept admits one operation under the backpressure policy. It never
// blocks on dispatch: the operation is handed to the dispatcher (or
// staged in the buffer) and Accept returns. A FailFast overflow fails
// the channel and is returned; drop strategies fail the dropped
// operation and succeed.
func (sc *sendChannel[Send]) Accept(op *SinkOperation[Send]) error {
	select {
	case <-sc.closed:
		return errors.WrapConfig(errors.ErrClosed, "send", "Accept", "channel closed")
	case <-sc.done:
		return sc.Err()
	default:
	}

	if sc.buf != nil {
		if err := sc.buf.Write(op); err != nil {
			op.Fail(err)
			sc.fail(err)
			return err
		}
		return nil
	}

	select {
	case sc.ops <- op:
		return nil
	default:
		err := errors.WrapOverflow(errors.ErrMissingDemand, "send", "Accept", "no free dispatch slot")
		op.Fail(err)
		sc.fail(err)
		return err
	}
}

// run is the dispatcher loop. It takes operations off the handoff (or
// buffer) and dispatches each on its own goroutine, so completions are
// unordered. run returns when ctx is cancelled or the channel is
// closed and drained.
func (sc *sendChannel[Send]) run(ctx context.Context) {
	for {
		op, ok := sc.next(ctx)
		if !ok {
			return
		}
		sc.wg.Add(1)
		go sc.dispatch(op)
	}
}

func (sc *sendChannel[Send]) next(ctx context.Context) (*SinkOperation[Send], bool) {
	if sc.buf != nil {
		op, err := sc.buf.ReadWait(ctx)
		if err != nil {
			return nil, false
		}
		return op, true
	}
	select {
	case op := <-sc.ops:
		return op, true
	case <-sc.closed:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (sc *sendChannel[Send]) dispatch(op *SinkOperation[Send]) {
	defer sc.wg.Done()

	body, err := sc.cod.Encode(op.Message())
	if err != nil {
		// Encoding failures are codec errors and always fatal.
		op.Fail(err)
		sc.fail(err)
		sc.countFailure()
		return
	}

	req := transport.Request{
		Body:        body,
		ContentType: sc.cod.MediaType(),
		Accept:      sc.cod.MediaType(),
	}

	err = sc.attempt(req)
	if err == nil {
		sc.complete(op)
		return
	}

	if !sc.retries {
		op.Fail(err)
		sc.fail(err)
		sc.countFailure()
		return
	}

	if !errors.IsConnection(err) {
		sc.suppress(op, err)
		return
	}

	sc.logger.Warn("call failed, retrying",
		slog.String("operation", op.ID().String()),
		slog.Any("error", err))

	err = sc.retryDispatch(op, req)
	if err == nil {
		sc.complete(op)
		return
	}
	if stderrors.Is(err, errors.ErrClosed) || sc.retryCtx.Err() != nil {
		op.Fail(err)
		sc.countFailure()
		return
	}
	sc.suppress(op, err)
}

// retryDispatch retries a connection-failed dispatch without bound.
// Retrying stops when the attempt succeeds, the failure stops being a
// connection failure, or the channel closes.
func (sc *sendChannel[Send]) retryDispatch(op *SinkOperation[Send], req transport.Request) error {
	cfg := retry.ForeverConfig()
	cfg.OnRetry = func(attempt int, err error) {
		if sc.metrics != nil {
			sc.metrics.callRetries.Inc()
		}
		sc.logger.Warn("call retry failed",
			slog.String("operation", op.ID().String()),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
	}

	return retry.Do(sc.retryCtx, cfg, func() error {
		select {
		case <-sc.closed:
			return retry.NonRetryable(errors.ErrClosed)
		default:
		}
		if err := sc.limiter.Wait(sc.retryCtx); err != nil {
			return retry.NonRetryable(err)
		}
		err := sc.attempt(req)
		if err == nil {
			return nil
		}
		if errors.IsConnection(err) {
			return err
		}
		return retry.NonRetryable(err)
	})
}

// attempt issues one call. The stream context is deliberately not
// used: an operation already dispatched runs to its own completion or
// failure, bounded by the transport's call timeout.
func (sc *sendChannel[Send]) attempt(req transport.Request) error {
	_, err := sc.tr.Call(context.Background(), req)
	return err
}

func (sc *sendChannel[Send]) complete(op *SinkOperation[Send]) {
	op.Complete()
	if sc.metrics != nil {
		sc.metrics.callsDispatched.Inc()
	}
}

// suppress fails the operation but keeps the channel alive; the error
// surfaces only through the operation's completion callback and a
// warning log line.
func (sc *sendChannel[Send]) suppress(op *SinkOperation[Send], err error) {
	op.Fail(err)
	sc.countFailure()
	if sc.metrics != nil {
		sc.metrics.callsSuppressed.Inc()
	}
	sc.logger.Warn("call failed, error suppressed",
		slog.String("operation", op.ID().String()),
		slog.Any("error", err))
}

func (sc *sendChannel[Send]) countFailure() {
	if sc.metrics != nil {
		sc.metrics.callsFailed.Inc()
	}
}

// fail records the channel's first unhandled error and signals Done.
func (sc *sendChannel[Send]) fail(err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.err != nil {
		return
	}
	sc.err = err
	close(sc.done)
}

// Done is closed when an unhandled error has failed the channel.
func (sc *sendChannel[Send]) Done() <-chan struct{} { return sc.done }

// Err returns the channel's unhandled error, nil while healthy.
func (sc *sendChannel[Send]) Err() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.err
}

// Close stops accepting new operations. Operations already staged are
// still dispatched; retry loops stop at their next attempt boundary.
func (sc *sendChannel[Send]) Close() {
	sc.closeOnce.Do(func() {
		close(sc.closed)
		if sc.buf != nil {
			sc.buf.Close()
		}
		sc.stopRetries()
	})
}

// Wait blocks until every in-flight dispatch has finished.
func (sc *sendChannel[Send]) Wait() { sc.wg.Wait() }
