package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hs-jenkins-bot/mesos-stream/errors"
	"github.com/hs-jenkins-bot/mesos-stream/useragent"
)

// streamIDHeader is the header the master uses to bind calls to a
// subscription.
const streamIDHeader = "Mesos-Stream-Id"

// defaultCallTimeout bounds one-shot calls. The subscribe stream itself
// is never subject to a timeout; it is expected to stay open.
const defaultCallTimeout = 30 * time.Second

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the underlying client used for one-shot
// calls. The streaming client is derived from the same transport but
// carries no timeout.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.callClient = c
		}
	}
}

// WithCallTimeout sets the timeout applied to one-shot calls.
func WithCallTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		if d > 0 {
			h.callTimeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) {
		if ua != "" {
			h.userAgent = ua
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// HTTP implements Transport over net/http. Both channels POST to the
// same endpoint; the subscribe response body is the long-lived event
// stream and one-shot calls echo the captured Mesos-Stream-Id.
type HTTP struct {
	endpoint     string
	callClient   *http.Client
	streamClient *http.Client
	callTimeout  time.Duration
	userAgent    string
	logger       *slog.Logger

	mu       sync.RWMutex
	streamID string
}

// NewHTTP creates an HTTP transport for the given endpoint URL.
func NewHTTP(endpoint string, opts ...HTTPOption) (*HTTP, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.WrapConfig(err, "transport", "NewHTTP", "parse endpoint URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.WrapConfig(errors.ErrInvalidConfig, "transport", "NewHTTP",
			"endpoint scheme must be http or https")
	}

	h := &HTTP{
		endpoint:    endpoint,
		callClient:  &http.Client{},
		callTimeout: defaultCallTimeout,
		userAgent:   useragent.Default(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	// The stream connection reuses the call client's transport but must
	// never time out while the body is open.
	h.streamClient = &http.Client{Transport: h.callClient.Transport}

	return h, nil
}

// Subscribe opens the long-lived event stream.
func (h *HTTP) Subscribe(ctx context.Context, req Request) (*EventStream, error) {
	httpReq, err := h.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := h.streamClient.Do(httpReq)
	if err != nil {
		return nil, errors.WrapConnection(err, "transport", "Subscribe", "open event stream")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		resp.Body.Close()
		return nil, &SubscribeError{Status: resp.StatusCode, Body: body}
	}

	streamID := resp.Header.Get(streamIDHeader)
	h.mu.Lock()
	h.streamID = streamID
	h.mu.Unlock()

	h.logger.Info("event stream open",
		"endpoint", h.endpoint,
		"status", resp.StatusCode,
		"stream_id", streamID)

	return &EventStream{StreamID: streamID, Body: resp.Body}, nil
}

// Call issues one independent request and reads its full response.
func (h *HTTP) Call(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, h.callTimeout)
	defer cancel()

	httpReq, err := h.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	if h.streamID != "" {
		httpReq.Header.Set(streamIDHeader, h.streamID)
	}
	h.mu.RUnlock()

	resp, err := h.callClient.Do(httpReq)
	if err != nil {
		return nil, errors.WrapConnection(err, "transport", "Call", "issue call")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapConnection(err, "transport", "Call", "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CallError{Status: resp.StatusCode, Body: body}
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func (h *HTTP) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.WrapConfig(err, "transport", "newRequest", "build request")
	}

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	httpReq.Header.Set("User-Agent", h.userAgent)

	return httpReq, nil
}
