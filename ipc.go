// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dataflow

// IPCKind tags the two variants of InterProcessMessage.
type IPCKind uint8

const (
	// IPCDeserialized carries metadata plus a typed in-memory payload.
	// Producer side only.
	IPCDeserialized IPCKind = iota
	// IPCSerialized carries metadata plus an opaque byte buffer. Consumer
	// side and transport.
	IPCSerialized
)

// PayloadMarshaler serializes a producer-side payload into bytes destined
// for the wire. Implementations must be deterministic only to the extent
// their wire format requires; the codec does not depend on determinism
// here (only Metadata must be deterministic).
type PayloadMarshaler interface {
	MarshalPayload() ([]byte, error)
}

// InterProcessMessage is the on-wire form of a Message: a tagged union of
// a producer-side Deserialized value (metadata plus a typed payload still
// awaiting serialization) and a consumer-side/transport Serialized value
// (metadata plus opaque bytes). A value has no lifetime beyond one send on
// the producer side; the consumer owns the Serialized byte buffer until
// its callback returns.
type InterProcessMessage struct {
	kind     IPCKind
	Metadata Metadata

	payload PayloadMarshaler // set iff kind == IPCDeserialized
	data    []byte           // set iff kind == IPCSerialized
}

// NewDeserialized builds a producer-side InterProcessMessage wrapping an
// in-memory payload that has not yet been serialized.
func NewDeserialized(meta Metadata, payload PayloadMarshaler) *InterProcessMessage {
	return &InterProcessMessage{kind: IPCDeserialized, Metadata: meta, payload: payload}
}

// NewSerialized builds a consumer-side/transport InterProcessMessage
// wrapping an opaque, already-serialized payload buffer.
func NewSerialized(meta Metadata, data []byte) *InterProcessMessage {
	return &InterProcessMessage{kind: IPCSerialized, Metadata: meta, data: data}
}

// Kind reports which variant m is.
func (m *InterProcessMessage) Kind() IPCKind { return m.kind }

// IsDeserialized reports whether m is the producer-side Deserialized variant.
func (m *InterProcessMessage) IsDeserialized() bool { return m.kind == IPCDeserialized }

// IsSerialized reports whether m is the Serialized variant.
func (m *InterProcessMessage) IsSerialized() bool { return m.kind == IPCSerialized }

// Payload returns the in-memory payload of a Deserialized message and true,
// or (nil, false) if m is Serialized.
func (m *InterProcessMessage) Payload() (PayloadMarshaler, bool) {
	if m.kind != IPCDeserialized {
		return nil, false
	}
	return m.payload, true
}

// Data returns the opaque payload bytes of a Serialized message and true,
// or (nil, false) if m is Deserialized.
func (m *InterProcessMessage) Data() ([]byte, bool) {
	if m.kind != IPCSerialized {
		return nil, false
	}
	return m.data, true
}
