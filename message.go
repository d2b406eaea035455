// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dataflow

// MessageKind tags the two variants of Message.
type MessageKind uint8

const (
	// Data is a timestamped payload on a stream.
	Data MessageKind = iota
	// Watermark asserts that no future message on this stream will carry
	// a strictly lesser timestamp than its own.
	Watermark
)

// Message is the logical, typed unit operators exchange on a stream: either
// timestamped data or a watermark. Payload is only meaningful for Data
// messages; Kind discriminates the union.
type Message[P any] struct {
	Kind      MessageKind
	Timestamp Timestamp
	Payload   P // zero value for Watermark
}

// NewData builds a Data message.
func NewData[P any](ts Timestamp, payload P) Message[P] {
	return Message[P]{Kind: Data, Timestamp: ts, Payload: payload}
}

// NewWatermark builds a Watermark message.
func NewWatermark[P any](ts Timestamp) Message[P] {
	return Message[P]{Kind: Watermark, Timestamp: ts}
}

// IsWatermark reports whether m is a Watermark message.
func (m Message[P]) IsWatermark() bool { return m.Kind == Watermark }

// IsTopWatermark reports whether m is the watermark that closes the stream.
func (m Message[P]) IsTopWatermark() bool { return m.Kind == Watermark && m.Timestamp.IsTop() }
