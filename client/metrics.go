package client

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hs-jenkins-bot/mesos-stream/metric"
)

// channelMetrics carries the client's Prometheus counters. A nil
// *channelMetrics disables instrumentation.
type channelMetrics struct {
	registry *metric.Registry

	eventsReceived  prometheus.Counter
	callsDispatched prometheus.Counter
	callRetries     prometheus.Counter
	callsSuppressed prometheus.Counter
	callsFailed     prometheus.Counter
}

func newChannelMetrics(registry *metric.Registry) (*channelMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &channelMetrics{
		registry: registry,
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesosstream",
			Subsystem: "client",
			Name:      "events_received_total",
			Help:      "Decoded events delivered by the receive channel.",
		}),
		callsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesosstream",
			Subsystem: "client",
			Name:      "calls_dispatched_total",
			Help:      "Sink operations dispatched successfully.",
		}),
		callRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesosstream",
			Subsystem: "client",
			Name:      "call_retries_total",
			Help:      "Dispatch attempts retried after a connection failure.",
		}),
		callsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesosstream",
			Subsystem: "client",
			Name:      "calls_suppressed_total",
			Help:      "Dispatch failures suppressed by the send error policy.",
		}),
		callsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesosstream",
			Subsystem: "client",
			Name:      "calls_failed_total",
			Help:      "Sink operations that failed dispatch.",
		}),
	}

	for name, c := range map[string]prometheus.Counter{
		"events_received_total":  m.eventsReceived,
		"calls_dispatched_total": m.callsDispatched,
		"call_retries_total":     m.callRetries,
		"calls_suppressed_total": m.callsSuppressed,
		"calls_failed_total":     m.callsFailed,
	} {
		if err := registry.RegisterCounter("client", name, c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
