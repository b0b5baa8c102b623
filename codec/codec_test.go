package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs-jenkins-bot/mesos-stream/errors"
)

type event struct {
	Type string `json:"type"`
	Seq  int    `json:"seq"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSON[event]()
	assert.Equal(t, "application/json", c.MediaType())

	data, err := c.Encode(event{Type: "HEARTBEAT", Seq: 7})
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, event{Type: "HEARTBEAT", Seq: 7}, got)
}

func TestJSONDecodeFailureIsCodecError(t *testing.T) {
	c := JSON[event]()
	_, err := c.Decode([]byte(`{"type":`))
	require.Error(t, err)

	class, ok := errors.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ClassCodec, class)
}

func TestJSONEncodeFailureIsCodecError(t *testing.T) {
	c := JSON[chan int]()
	_, err := c.Encode(make(chan int))
	require.Error(t, err)

	class, ok := errors.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ClassCodec, class)
}

func TestBytesIdentity(t *testing.T) {
	c := Bytes()
	assert.Equal(t, "application/octet-stream", c.MediaType())

	payload := []byte{0x00, 0x7f, 0xff}
	data, err := c.Encode(payload)
	require.NoError(t, err)
	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
