// Package mesosstream is a client library for the Mesos V1 HTTP
// scheduler and executor APIs, and for any server speaking the same
// long-lived streaming protocol: a single POST opens a chunked
// response that carries RecordIO-framed events for the lifetime of the
// subscription, while further calls are posted out of band on their
// own connections.
//
// # Architecture
//
// A running client is a pair of channels coordinated by a controller:
//
//	┌──────────────┐   events    ┌────────────┐   operations   ┌──────────────┐
//	│   Receive    │ ──────────► │ Controller │ ─────────────► │     Send     │
//	│   Channel    │             │ (reaction) │                │   Channel    │
//	└──────────────┘             └────────────┘                └──────────────┘
//	  decoder + codec                                       concurrent dispatch
//	  backpressure policy                                   retry + suppression
//
// The receive channel owns the event stream: it reassembles RecordIO
// frames, decodes each into a typed event and delivers events in
// order under a backpressure policy. The controller feeds every event
// to the caller's reaction, which may answer with a sink operation.
// The send channel dispatches accepted operations concurrently;
// completions are unordered and operation k+1 never waits for
// operation k.
//
// # Packages
//
//   - client: the dual-channel protocol engine and its builder
//   - recordio: incremental RecordIO frame decoding and encoding
//   - codec: typed message encoding (JSON, raw bytes)
//   - transport: the HTTP transport and its contracts
//   - errors: the error taxonomy shared by every layer
//   - useragent: User-Agent chain assembly
//   - metric: Prometheus registry plumbing
//
// # Example
//
//	c, err := client.New[Call, Event]().
//		Endpoint("http://master:5050/api/v1/scheduler").
//		SendCodec(codec.JSON[Call]()).
//		ReceiveCodec(codec.JSON[Event]()).
//		Subscribe(Call{Type: "SUBSCRIBE"}).
//		OnEvent(react).
//		OnSendErrorRetry().
//		Build()
//	if err != nil {
//		return err
//	}
//	return c.Run(ctx)
package mesosstream
