// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dataflow

import "github.com/google/uuid"

// streamNamespace roots every derived StreamID. Using a fixed namespace UUID
// together with uuid.NewSHA1 (RFC 4122 version 5) is what makes derivation
// deterministic: the same seed bytes, run through the same namespace, always
// produce the same 16 bytes, on any node.
var streamNamespace = uuid.MustParse("8f2b6b0a-6e8e-4d9d-9a8b-2a7c7d6a9f10")

// StreamID globally and deterministically identifies a logical stream. Two
// StreamIDs compare equal iff they were derived from identical seeds.
type StreamID [16]byte

// DeriveStreamID derives a StreamID from one or more seed components (e.g.
// an operator name plus a stream name). The derivation is a pure function
// of its inputs: the same seeds, in the same order, always yield the same
// id, regardless of which node computes it.
func DeriveStreamID(seeds ...string) StreamID {
	var buf []byte
	for i, s := range seeds {
		if i > 0 {
			buf = append(buf, 0) // NUL-separate components so ("ab","c") != ("a","bc")
		}
		buf = append(buf, s...)
	}
	return StreamID(uuid.NewSHA1(streamNamespace, buf))
}

// String renders the id in canonical UUID form for logging.
func (id StreamID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value.
func (id StreamID) IsZero() bool {
	return id == StreamID{}
}
