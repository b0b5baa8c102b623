// Package codec defines the message serialization contract between the
// streaming client core and the payloads it carries. The core never
// interprets message bytes itself; it delegates to a Codec for both
// directions and treats codec failures as fatal, non-transient errors.
package codec

import (
	"encoding/json"

	"github.com/hs-jenkins-bot/mesos-stream/errors"
)

// Codec encodes outbound messages and decodes inbound frames. An
// implementation must be deterministic and side-effect-free: the same
// input always produces the same output, and failures are reported as
// typed errors, never as silent corruption.
type Codec[T any] interface {
	// MediaType returns the MIME type for Content-Type/Accept headers.
	MediaType() string

	// Encode serializes one message to its wire form.
	Encode(msg T) ([]byte, error)

	// Decode deserializes one complete frame into a message.
	Decode(data []byte) (T, error)
}

// jsonCodec serializes messages as JSON.
type jsonCodec[T any] struct{}

// JSON returns a codec that serializes T as application/json.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) MediaType() string { return "application/json" }

func (jsonCodec[T]) Encode(msg T) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.WrapCodec(err, "codec", "Encode", "marshal json")
	}
	return data, nil
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, errors.WrapCodec(err, "codec", "Decode", "unmarshal json")
	}
	return msg, nil
}

// bytesCodec passes payloads through untouched.
type bytesCodec struct{}

// Bytes returns an identity codec for callers that handle raw frame
// payloads themselves.
func Bytes() Codec[[]byte] {
	return bytesCodec{}
}

func (bytesCodec) MediaType() string { return "application/octet-stream" }

func (bytesCodec) Encode(msg []byte) ([]byte, error) { return msg, nil }

func (bytesCodec) Decode(data []byte) ([]byte, error) { return data, nil }
