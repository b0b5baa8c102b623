// Package transport defines the HTTP collaborator contract the client
// core depends on, plus a net/http implementation. The core needs only
// "send bytes, get status and optional response bytes" semantics, with
// connection-level failures tagged distinguishably from other failures
// so the send-side retry policy can classify them.
package transport

import (
	"context"
	"fmt"
	"io"
)

// Request is one outbound message to the master.
type Request struct {
	// Body is the encoded payload.
	Body []byte
	// ContentType is the media type of Body.
	ContentType string
	// Accept is the media type expected in responses.
	Accept string
}

// EventStream is an accepted subscription: an identifier assigned by the
// server plus the unbounded chunked response body carrying RecordIO
// frames. The caller owns Body and must close it.
type EventStream struct {
	// StreamID is the Mesos-Stream-Id header value, empty when the
	// server did not assign one.
	StreamID string
	// Body streams the raw connection bytes.
	Body io.ReadCloser
}

// Response is the outcome of a one-shot call.
type Response struct {
	// Status is the HTTP status code.
	Status int
	// Body is the response body, possibly empty.
	Body []byte
}

// Transport issues requests to the master. Implementations must wrap
// connection-establishment failures with errors.WrapConnection so they
// are classifiable by tag; a rejected subscribe is reported as a
// *SubscribeError.
type Transport interface {
	// Subscribe issues the initial request that opens the long-lived
	// event stream.
	Subscribe(ctx context.Context, req Request) (*EventStream, error)

	// Call issues one independent asynchronous request. Multiple calls
	// may be in flight concurrently.
	Call(ctx context.Context, req Request) (*Response, error)
}

// SubscribeError reports a subscribe attempt the server rejected with a
// non-success status.
type SubscribeError struct {
	Status int
	Body   []byte
}

// Error implements the error interface.
func (e *SubscribeError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("subscribe rejected with status %d", e.Status)
	}
	return fmt.Sprintf("subscribe rejected with status %d: %s", e.Status, e.Body)
}

// CallError reports a one-shot call the server answered with a
// non-success status. It is not a connection failure and is never
// retried by the send-side retry policy.
type CallError struct {
	Status int
	Body   []byte
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("call rejected with status %d", e.Status)
	}
	return fmt.Sprintf("call rejected with status %d: %s", e.Status, e.Body)
}
