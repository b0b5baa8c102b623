// Package recordio implements the RecordIO framing used by the Mesos V1
// streaming HTTP API. Each record on the wire is an ASCII base-10 length
// terminated by '\n', followed by exactly that many payload bytes:
//
//	121\n{"type":"SUBSCRIBED", ...}
//
// A length of 0 is a valid empty record. No other delimiter or padding is
// permitted. The Decoder is an incremental parser: bytes may arrive in any
// chunking, one byte at a time or many records at once, and record
// boundaries never align with chunk boundaries.
package recordio

import (
	"io"
	"strconv"

	"github.com/hs-jenkins-bot/mesos-stream/errors"
)

// DefaultMaxFrameSize caps how large a declared record may be before the
// decoder treats the length prefix as malformed. Mesos events are small;
// a multi-megabyte length almost always means a desynchronized stream.
const DefaultMaxFrameSize = 4 * 1024 * 1024

// maxLengthDigits bounds the length prefix scan. A 10-digit decimal
// already exceeds any sane frame size.
const maxLengthDigits = 10

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxFrameSize overrides the sanity ceiling on declared record
// lengths. Values <= 0 keep the default.
func WithMaxFrameSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFrameSize = n
		}
	}
}

// Decoder turns an arbitrarily chunked byte stream into complete record
// payloads. It is stateful and resumable across Feed calls. A Decoder is
// owned by the single goroutine delivering transport bytes for one
// connection and requires no internal locking.
type Decoder struct {
	buf          []byte // bytes received but not yet forming a full record
	awaitingBody bool
	remaining    int // body bytes still owed, valid when awaitingBody
	maxFrameSize int
	failed       error // first framing error; poisons all later calls

	framesDecoded int64
	bytesConsumed int64
}

// NewDecoder creates a decoder in the awaiting-length state.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{maxFrameSize: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed consumes one chunk of transport bytes and returns every record
// completed by it, in arrival order. Returned frame buffers are owned by
// the caller; the decoder never reuses or mutates them.
//
// A malformed or over-ceiling length prefix returns a framing error and
// poisons the decoder: the stream cannot be resynchronized and the
// connection must be abandoned.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	if d.failed != nil {
		return nil, d.failed
	}

	d.bytesConsumed += int64(len(chunk))
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	for {
		if d.awaitingBody {
			if len(d.buf) < d.remaining {
				break
			}
			frame := make([]byte, d.remaining)
			copy(frame, d.buf[:d.remaining])
			d.buf = d.buf[d.remaining:]
			d.awaitingBody = false
			d.remaining = 0
			d.framesDecoded++
			frames = append(frames, frame)
			continue
		}

		n, ok, err := d.scanLength()
		if err != nil {
			d.failed = err
			return frames, err
		}
		if !ok {
			break
		}
		if n == 0 {
			// Empty record, no body to wait for.
			d.framesDecoded++
			frames = append(frames, []byte{})
			continue
		}
		d.awaitingBody = true
		d.remaining = n
	}

	return frames, nil
}

// scanLength looks for a complete length prefix at the front of the
// buffer. It returns (length, true, nil) when one is found, (0, false,
// nil) when more bytes are needed, and an error when the prefix is
// malformed or exceeds the ceiling.
func (d *Decoder) scanLength() (int, bool, error) {
	for i, b := range d.buf {
		if b >= '0' && b <= '9' {
			if i >= maxLengthDigits {
				return 0, false, errors.WrapFraming(errors.ErrFrameTooLarge,
					"recordio", "Feed", "length prefix too long")
			}
			continue
		}
		if b != '\n' {
			return 0, false, errors.WrapFraming(errors.ErrMalformedLength,
				"recordio", "Feed",
				"unexpected byte "+strconv.Quote(string(b))+" in length prefix")
		}
		if i == 0 {
			return 0, false, errors.WrapFraming(errors.ErrMalformedLength,
				"recordio", "Feed", "empty length prefix")
		}
		n, err := strconv.Atoi(string(d.buf[:i]))
		if err != nil {
			return 0, false, errors.WrapFraming(errors.ErrMalformedLength,
				"recordio", "Feed", "parse length prefix")
		}
		if n > d.maxFrameSize {
			return 0, false, errors.WrapFraming(errors.ErrFrameTooLarge,
				"recordio", "Feed",
				"declared length "+strconv.Itoa(n)+" exceeds maximum "+strconv.Itoa(d.maxFrameSize))
		}
		d.buf = d.buf[i+1:]
		return n, true, nil
	}

	if len(d.buf) > maxLengthDigits {
		return 0, false, errors.WrapFraming(errors.ErrFrameTooLarge,
			"recordio", "Feed", "length prefix too long")
	}
	return 0, false, nil
}

// Close signals upstream end-of-stream. End-of-stream in the
// awaiting-length state with an empty buffer is a clean completion;
// anything buffered means the stream was cut mid-record.
func (d *Decoder) Close() error {
	if d.failed != nil {
		return d.failed
	}
	if d.awaitingBody {
		return errors.WrapTruncated(errors.ErrTruncatedStream,
			"recordio", "Close",
			"stream ended with "+strconv.Itoa(d.remaining-len(d.buf))+" body bytes missing")
	}
	if len(d.buf) > 0 {
		return errors.WrapTruncated(errors.ErrTruncatedStream,
			"recordio", "Close", "stream ended inside a length prefix")
	}
	return nil
}

// FramesDecoded returns the number of complete records emitted so far.
func (d *Decoder) FramesDecoded() int64 { return d.framesDecoded }

// BytesConsumed returns the total bytes fed to the decoder.
func (d *Decoder) BytesConsumed() int64 { return d.bytesConsumed }

// Marshal encodes one payload in the RecordIO wire format.
func Marshal(payload []byte) []byte {
	prefix := strconv.Itoa(len(payload))
	out := make([]byte, 0, len(prefix)+1+len(payload))
	out = append(out, prefix...)
	out = append(out, '\n')
	out = append(out, payload...)
	return out
}

// MarshalAll encodes a sequence of payloads back to back, the way a
// server writes them onto a chunked response body.
func MarshalAll(payloads ...[]byte) []byte {
	var out []byte
	for _, p := range payloads {
		out = append(out, Marshal(p)...)
	}
	return out
}

// Encoder writes records onto an io.Writer in the RecordIO wire format.
// It is the producing counterpart of Decoder, useful for test servers.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Write frames payload and writes it out. A short write surfaces the
// underlying writer's error.
func (e *Encoder) Write(payload []byte) error {
	if _, err := e.w.Write(Marshal(payload)); err != nil {
		return errors.WrapConnection(err, "recordio", "Write", "writing record")
	}
	return nil
}
