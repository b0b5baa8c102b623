package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs-jenkins-bot/mesos-stream/errors"
	"github.com/hs-jenkins-bot/mesos-stream/recordio"
)

func TestSubscribeOpensStream(t *testing.T) {
	var gotContentType, gotAccept, gotUserAgent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotUserAgent = r.Header.Get("User-Agent")

		w.Header().Set("Mesos-Stream-Id", "stream-42")
		w.WriteHeader(http.StatusOK)
		w.Write(recordio.MarshalAll([]byte(`{"type":"SUBSCRIBED"}`), []byte(`{"type":"HEARTBEAT"}`)))
	}))
	defer srv.Close()

	tr, err := NewHTTP(srv.URL, WithUserAgent("test-framework/1.0"))
	require.NoError(t, err)

	stream, err := tr.Subscribe(context.Background(), Request{
		Body:        []byte(`{"type":"SUBSCRIBE"}`),
		ContentType: "application/json",
		Accept:      "application/json",
	})
	require.NoError(t, err)
	defer stream.Body.Close()

	assert.Equal(t, "stream-42", stream.StreamID)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "test-framework/1.0", gotUserAgent)

	raw, err := io.ReadAll(stream.Body)
	require.NoError(t, err)

	dec := recordio.NewDecoder()
	frames, err := dec.Feed(raw)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, `{"type":"SUBSCRIBED"}`, string(frames[0]))
}

func TestSubscribeRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "framework not authorized", http.StatusForbidden)
	}))
	defer srv.Close()

	tr, err := NewHTTP(srv.URL)
	require.NoError(t, err)

	_, err = tr.Subscribe(context.Background(), Request{Body: []byte("{}")})
	require.Error(t, err)

	var se *SubscribeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Contains(t, se.Error(), "framework not authorized")

	// A rejected subscribe is not a connection failure.
	assert.False(t, errors.IsConnection(err))
}

func TestSubscribeConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	tr, err := NewHTTP(srv.URL)
	require.NoError(t, err)

	_, err = tr.Subscribe(context.Background(), Request{Body: []byte("{}")})
	require.Error(t, err)
	assert.True(t, errors.IsConnection(err))
}

func TestCallEchoesStreamID(t *testing.T) {
	var callStreamID string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) == `{"type":"SUBSCRIBE"}` {
			w.Header().Set("Mesos-Stream-Id", "stream-7")
			w.WriteHeader(http.StatusOK)
			return
		}
		callStreamID = r.Header.Get("Mesos-Stream-Id")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr, err := NewHTTP(srv.URL)
	require.NoError(t, err)

	stream, err := tr.Subscribe(context.Background(), Request{Body: []byte(`{"type":"SUBSCRIBE"}`)})
	require.NoError(t, err)
	stream.Body.Close()

	resp, err := tr.Call(context.Background(), Request{Body: []byte(`{"type":"ACKNOWLEDGE"}`)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, "stream-7", callStreamID)
}

func TestCallRejectedStatusIsNotConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown call type", http.StatusBadRequest)
	}))
	defer srv.Close()

	tr, err := NewHTTP(srv.URL)
	require.NoError(t, err)

	_, err = tr.Call(context.Background(), Request{Body: []byte("{}")})
	require.Error(t, err)

	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusBadRequest, ce.Status)
	assert.False(t, errors.IsConnection(err))
}

func TestCallConnectionFailureIsTagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	tr, err := NewHTTP(srv.URL)
	require.NoError(t, err)

	_, err = tr.Call(context.Background(), Request{Body: []byte("{}")})
	require.Error(t, err)
	assert.True(t, errors.IsConnection(err))

	class, ok := errors.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ClassConnection, class)
}

func TestNewHTTPValidatesEndpoint(t *testing.T) {
	_, err := NewHTTP("ftp://master:5050/api/v1/scheduler")
	require.Error(t, err)

	class, ok := errors.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ClassConfig, class)

	_, err = NewHTTP("://bad")
	assert.Error(t, err)
}
