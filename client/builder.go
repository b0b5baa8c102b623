package client

import (
	"log/slog"
	"strings"

	"github.com/hs-jenkins-bot/mesos-stream/codec"
	"github.com/hs-jenkins-bot/mesos-stream/errors"
	"github.com/hs-jenkins-bot/mesos-stream/metric"
	"github.com/hs-jenkins-bot/mesos-stream/transport"
	"github.com/hs-jenkins-bot/mesos-stream/useragent"
)

// Reaction inspects one inbound event and optionally answers with a
// sink operation to dispatch. Returning a nil operation dispatches
// nothing; returning an error fails the stream.
type Reaction[Send, Receive any] func(event Receive) (*SinkOperation[Send], error)

// Builder assembles a Client. Endpoint, both codecs, the subscribe
// payload and the reaction are mandatory; everything else has a
// default. Build validates the whole configuration and reports every
// missing field in a single error.
type Builder[Send, Receive any] struct {
	endpoint     string
	sendCodec    codec.Codec[Send]
	receiveCodec codec.Codec[Receive]
	subscribe    Send
	subscribeSet bool
	reaction     Reaction[Send, Receive]

	receivePolicy Backpressure
	sendPolicy    Backpressure
	sendRetries   bool

	tr           transport.Transport
	logger       *slog.Logger
	metrics      *metric.Registry
	userAgent    []useragent.Entry
	maxFrameSize int
}

// New returns a builder with strict demand on both channels and no
// send-error retry policy.
func New[Send, Receive any]() *Builder[Send, Receive] {
	return &Builder[Send, Receive]{
		receivePolicy: StrictDemand(),
		sendPolicy:    StrictDemand(),
	}
}

// Endpoint sets the master's API endpoint, e.g.
// "http://master.example.com:5050/api/v1/scheduler".
func (b *Builder[Send, Receive]) Endpoint(endpoint string) *Builder[Send, Receive] {
	b.endpoint = endpoint
	return b
}

// SendCodec sets the codec for outbound messages.
func (b *Builder[Send, Receive]) SendCodec(c codec.Codec[Send]) *Builder[Send, Receive] {
	b.sendCodec = c
	return b
}

// ReceiveCodec sets the codec for inbound events.
func (b *Builder[Send, Receive]) ReceiveCodec(c codec.Codec[Receive]) *Builder[Send, Receive] {
	b.receiveCodec = c
	return b
}

// Subscribe sets the message posted to open the stream.
func (b *Builder[Send, Receive]) Subscribe(payload Send) *Builder[Send, Receive] {
	b.subscribe = payload
	b.subscribeSet = true
	return b
}

// OnEvent sets the reaction invoked for each inbound event.
func (b *Builder[Send, Receive]) OnEvent(r Reaction[Send, Receive]) *Builder[Send, Receive] {
	b.reaction = r
	return b
}

// ReceiveBackpressure sets the receive channel's backpressure policy.
func (b *Builder[Send, Receive]) ReceiveBackpressure(p Backpressure) *Builder[Send, Receive] {
	b.receivePolicy = p
	return b
}

// SendBackpressure sets the send channel's backpressure policy.
func (b *Builder[Send, Receive]) SendBackpressure(p Backpressure) *Builder[Send, Receive] {
	b.sendPolicy = p
	return b
}

// OnSendErrorRetry opts in to the send channel's error policy:
// connection failures are retried without bound with exponential
// backoff, and any other dispatch failure is suppressed after failing
// its own operation, with a warning logged. Without this policy the
// first dispatch failure terminates the stream.
func (b *Builder[Send, Receive]) OnSendErrorRetry() *Builder[Send, Receive] {
	b.sendRetries = true
	return b
}

// Transport overrides the HTTP transport, mainly for tests and
// alternative wire protocols.
func (b *Builder[Send, Receive]) Transport(tr transport.Transport) *Builder[Send, Receive] {
	b.tr = tr
	return b
}

// Logger sets the structured logger. Defaults to slog.Default().
func (b *Builder[Send, Receive]) Logger(logger *slog.Logger) *Builder[Send, Receive] {
	b.logger = logger
	return b
}

// Metrics enables Prometheus instrumentation on the given registry.
func (b *Builder[Send, Receive]) Metrics(registry *metric.Registry) *Builder[Send, Receive] {
	b.metrics = registry
	return b
}

// UserAgentEntry prepends an application entry to the User-Agent
// chain. May be called multiple times; entries appear in call order,
// before the library and runtime entries.
func (b *Builder[Send, Receive]) UserAgentEntry(e useragent.Entry) *Builder[Send, Receive] {
	b.userAgent = append(b.userAgent, e)
	return b
}

// MaxFrameSize overrides the receive decoder's frame-size ceiling.
func (b *Builder[Send, Receive]) MaxFrameSize(n int) *Builder[Send, Receive] {
	b.maxFrameSize = n
	return b
}

// Build validates the configuration and constructs the client. A
// single error names every missing mandatory field.
func (b *Builder[Send, Receive]) Build() (*Client[Send, Receive], error) {
	var missing []string
	if b.endpoint == "" && b.tr == nil {
		missing = append(missing, "endpoint")
	}
	if b.sendCodec == nil {
		missing = append(missing, "send codec")
	}
	if b.receiveCodec == nil {
		missing = append(missing, "receive codec")
	}
	if !b.subscribeSet {
		missing = append(missing, "subscribe payload")
	}
	if b.reaction == nil {
		missing = append(missing, "reaction")
	}
	if len(missing) > 0 {
		return nil, errors.WrapConfig(errors.ErrMissingConfig, "client", "Build",
			"missing: "+strings.Join(missing, ", "))
	}

	if b.maxFrameSize < 0 {
		return nil, errors.WrapConfig(errors.ErrInvalidConfig, "client", "Build",
			"max frame size must not be negative")
	}
	for _, p := range []Backpressure{b.receivePolicy, b.sendPolicy} {
		if p.mode == modeBounded && p.capacity <= 0 {
			return nil, errors.WrapConfig(errors.ErrInvalidConfig, "client", "Build",
				"bounded buffer capacity must be positive")
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "client"))

	metrics, err := newChannelMetrics(b.metrics)
	if err != nil {
		return nil, err
	}

	tr := b.tr
	if tr == nil {
		entries := append(append([]useragent.Entry{}, b.userAgent...),
			useragent.Library(), useragent.GoRuntime())
		tr, err = transport.NewHTTP(b.endpoint,
			transport.WithUserAgent(useragent.Chain(entries...)),
			transport.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	recv, err := newReceiveChannel[Receive](b.receiveCodec, b.receivePolicy, b.maxFrameSize, logger, metrics)
	if err != nil {
		return nil, err
	}
	send, err := newSendChannel[Send](b.sendCodec, tr, b.sendPolicy, b.sendRetries, logger, metrics)
	if err != nil {
		return nil, err
	}

	return &Client[Send, Receive]{
		tr:        tr,
		subscribe: b.subscribe,
		sendCodec: b.sendCodec,
		reaction:  b.reaction,
		recv:      recv,
		send:      send,
		logger:    logger,
	}, nil
}
