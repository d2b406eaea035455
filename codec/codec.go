// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codec frames a stream of bytes into typed inter-process messages
// and back.
//
// Wire format (big-endian, bit-exact):
//
//	+----------------------+----------------------+-------------+--------+
//	| metadata_size (u32)  | data_size (u32)       |  metadata   |  data  |
//	+----------------------+----------------------+-------------+--------+
//
// Encode serializes a dataflow.InterProcessMessage's metadata and payload
// independently, then writes the 8-byte header followed by the metadata
// bytes and the payload bytes. Decode is a push-based three-state machine
// (AwaitHeader -> AwaitMetadata -> AwaitData -> AwaitHeader) driven by Feed:
// callers hand it arbitrary byte chunks as they arrive and call Decode in a
// loop; when fewer bytes are buffered than the current state needs, Decode
// returns ErrIncomplete and leaves its state untouched, so the same chunk
// split in any way yields the same sequence of decoded messages. Neither
// direction blocks: both operate purely on in-memory buffers.
//
// Deferring payload deserialization to the destination operator (the
// Serialized variant keeps the payload as opaque bytes) lets a relay node
// forward a message it has no matching type for without ever touching the
// payload — see Relay.
package codec

import (
	"encoding/binary"
	"errors"
	"io"

	"code.hybscloud.com/dataflow"
)

const headerLen = 8

// ErrIncomplete means the decoder does not yet have enough buffered bytes
// to complete its current state. It is a control-flow signal, not a
// failure: the decoder's state is preserved and Decode should be retried
// after more bytes are fed in.
var ErrIncomplete = errors.New("codec: incomplete frame")

// Encoder serializes dataflow.InterProcessMessage values onto w in the
// frame format documented in the package doc comment.
type Encoder struct {
	w       io.Writer
	scratch []byte // reused across Encode calls to keep steady-state allocations low
}

// NewEncoder returns an Encoder that writes framed messages to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Encoder{w: w, scratch: make([]byte, 0, o.ScratchHint)}
}

// Encode serializes msg and writes one frame to the underlying writer. msg
// must be the Deserialized variant; handing Encode an already-serialized
// message is a programming error and fails with a dataflow.EncoderMisuse
// error without writing anything.
func (e *Encoder) Encode(msg *dataflow.InterProcessMessage) (int64, error) {
	if !msg.IsDeserialized() {
		return 0, dataflow.NewError(dataflow.EncoderMisuse, "encode", nil)
	}

	metaBytes, err := dataflow.MarshalMetadata(msg.Metadata)
	if err != nil {
		return 0, dataflow.NewError(dataflow.InvalidMetadata, "encode", err)
	}

	var payloadBytes []byte
	if p, ok := msg.Payload(); ok && p != nil {
		payloadBytes, err = p.MarshalPayload()
		if err != nil {
			return 0, dataflow.NewError(dataflow.EncoderMisuse, "encode", err)
		}
	}

	return e.writeFrame(metaBytes, payloadBytes)
}

// EncodeSerialized writes msg's existing metadata and opaque payload bytes
// as one frame without ever invoking a payload marshaler. msg must be the
// Serialized variant. This is the zero-copy relay path: a node forwarding a
// message for a type it doesn't know re-encodes only the (cheap,
// already-parsed) metadata and copies the payload bytes through untouched.
func (e *Encoder) EncodeSerialized(msg *dataflow.InterProcessMessage) (int64, error) {
	if !msg.IsSerialized() {
		return 0, dataflow.NewError(dataflow.EncoderMisuse, "encode_serialized", nil)
	}
	metaBytes, err := dataflow.MarshalMetadata(msg.Metadata)
	if err != nil {
		return 0, dataflow.NewError(dataflow.InvalidMetadata, "encode_serialized", err)
	}
	data, _ := msg.Data()
	return e.writeFrame(metaBytes, data)
}

func (e *Encoder) writeFrame(metaBytes, payloadBytes []byte) (int64, error) {
	need := headerLen + len(metaBytes) + len(payloadBytes)
	if cap(e.scratch) < need {
		// Pre-grow beyond the immediate need to amortize future allocations.
		e.scratch = make([]byte, need, need*2)
	} else {
		e.scratch = e.scratch[:need]
	}
	binary.BigEndian.PutUint32(e.scratch[0:4], uint32(len(metaBytes)))
	binary.BigEndian.PutUint32(e.scratch[4:8], uint32(len(payloadBytes)))
	copy(e.scratch[headerLen:], metaBytes)
	copy(e.scratch[headerLen+len(metaBytes):], payloadBytes)

	n, err := e.w.Write(e.scratch)
	if err != nil {
		return int64(n), dataflow.NewError(dataflow.IoFailure, "encode", err)
	}
	return int64(n), nil
}

type decodeState uint8

const (
	awaitHeader decodeState = iota
	awaitMetadata
	awaitData
)

// Decoder reconstructs dataflow.InterProcessMessage values from a byte
// stream fed in arbitrary chunks. A Decoder is specific to one connection:
// once Decode reports a dataflow.InvalidMetadata error the Decoder is
// poisoned and every subsequent Decode call returns that same error.
type Decoder struct {
	buf   []byte
	state decodeState

	metaLen uint32
	dataLen uint32
	pending dataflow.Metadata

	poisoned error
}

// NewDecoder returns a Decoder ready to have bytes fed into it.
// WithScratchHint pre-sizes its internal buffer, the same way it pre-sizes
// an Encoder's scratch buffer, to avoid an early reallocation.
func NewDecoder(opts ...Option) *Decoder {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Decoder{buf: make([]byte, 0, o.ScratchHint)}
}

// Feed appends newly-arrived bytes to the decoder's internal buffer. It
// never blocks and never fails.
func (d *Decoder) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	d.buf = append(d.buf, p...)
}

// Decode attempts to advance the state machine by exactly one completed
// message. It returns ErrIncomplete when fewer bytes are buffered than the
// current state requires; the caller should Feed more and retry. A
// metadata decode failure poisons the Decoder permanently.
func (d *Decoder) Decode() (*dataflow.InterProcessMessage, error) {
	if d.poisoned != nil {
		return nil, d.poisoned
	}

	for {
		switch d.state {
		case awaitHeader:
			if len(d.buf) < headerLen {
				return nil, ErrIncomplete
			}
			d.metaLen = binary.BigEndian.Uint32(d.buf[0:4])
			d.dataLen = binary.BigEndian.Uint32(d.buf[4:8])
			d.consume(headerLen)
			d.state = awaitMetadata

		case awaitMetadata:
			if uint32(len(d.buf)) < d.metaLen {
				return nil, ErrIncomplete
			}
			meta, err := dataflow.UnmarshalMetadata(d.buf[:d.metaLen])
			if err != nil {
				d.poisoned = dataflow.NewError(dataflow.InvalidMetadata, "decode", err)
				return nil, d.poisoned
			}
			d.pending = meta
			d.consume(int(d.metaLen))
			d.state = awaitData

		case awaitData:
			if uint32(len(d.buf)) < d.dataLen {
				return nil, ErrIncomplete
			}
			payload := make([]byte, d.dataLen)
			copy(payload, d.buf[:d.dataLen])
			d.consume(int(d.dataLen))
			d.state = awaitHeader
			return dataflow.NewSerialized(d.pending, payload), nil
		}
	}
}

// consume drops the first n bytes of the buffer, compacting the backing
// array once its unused capacity grows disproportionate to live data so
// long-lived connections don't retain an ever-growing buffer.
func (d *Decoder) consume(n int) {
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
		return
	}
	if cap(d.buf) > 4*len(d.buf) {
		fresh := make([]byte, len(d.buf))
		copy(fresh, d.buf)
		d.buf = fresh
	}
}
