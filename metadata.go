// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dataflow

import "github.com/fxamacker/cbor/v2"

// Metadata is the routing envelope carried alongside every inter-process
// message: enough for a receiver to dispatch into the correct typed
// channel without touching the payload bytes. It is serialized
// independently of the payload (see codec.Encoder) so a relay node can
// forward a message it has no matching type for without ever
// deserializing the payload.
type Metadata struct {
	// Stream identifies the logical channel this message belongs to.
	Stream StreamID
	// Kind discriminates Data from Watermark; Watermark messages carry
	// no payload.
	Kind MessageKind
	// Timestamp is the message's logical time.
	Timestamp Timestamp
	// Targets names the operator(s) this message is addressed to. Empty
	// means "broadcast to every operator subscribed to Stream".
	Targets []string
	// TypeTag identifies the payload's wire type so the receiving
	// operator can pick the right unmarshaler before touching the
	// payload bytes. It is opaque to the codec.
	TypeTag string
}

// cborMetadata mirrors Metadata in a form friendly to canonical CBOR
// encoding: Timestamp's internal representation isn't exported, so the
// codec flattens it into wire-safe fields and rebuilds a Timestamp on
// decode.
type cborMetadata struct {
	Stream    [16]byte `cbor:"1,keyasint"`
	Kind      uint8    `cbor:"2,keyasint"`
	TSKind    uint8    `cbor:"3,keyasint"`
	TSCoords  []uint64 `cbor:"4,keyasint"`
	Targets   []string `cbor:"5,keyasint"`
	TypeTag   string   `cbor:"6,keyasint"`
}

// metadataEncMode is a canonical (deterministic: same value always produces
// the same bytes) CBOR encoding mode, required by the wire format (§6:
// "the chosen encoding must be deterministic").
var metadataEncMode = func() cbor.EncMode {
	m, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err) // static options; cannot fail
	}
	return m
}()

// MarshalMetadata serializes m using the deterministic canonical CBOR
// encoding mandated by the wire format.
func MarshalMetadata(m Metadata) ([]byte, error) {
	return metadataEncMode.Marshal(toCBORMetadata(m))
}

// UnmarshalMetadata reconstructs a Metadata value from bytes produced by
// MarshalMetadata (or any conformant canonical CBOR encoder).
func UnmarshalMetadata(b []byte) (Metadata, error) {
	var c cborMetadata
	if err := cbor.Unmarshal(b, &c); err != nil {
		return Metadata{}, err
	}
	return fromCBORMetadata(c), nil
}

func toCBORMetadata(m Metadata) cborMetadata {
	return cborMetadata{
		Stream:   m.Stream,
		Kind:     uint8(m.Kind),
		TSKind:   uint8(m.Timestamp.kind),
		TSCoords: m.Timestamp.coords,
		Targets:  m.Targets,
		TypeTag:  m.TypeTag,
	}
}

func fromCBORMetadata(c cborMetadata) Metadata {
	return Metadata{
		Stream:    StreamID(c.Stream),
		Kind:      MessageKind(c.Kind),
		Timestamp: Timestamp{coords: c.TSCoords, kind: tsKind(c.TSKind)},
		Targets:   c.Targets,
		TypeTag:   c.TypeTag,
	}
}
