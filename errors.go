// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dataflow

import "fmt"

// Kind identifies the error kinds the runtime's core raises. Kinds are not
// distinct Go types: every error produced by this module and its
// subpackages is a *Error, and callers branch on Kind (or use errors.Is
// against the Err* sentinels below) rather than type-asserting.
type Kind uint8

const (
	// IoFailure means an underlying byte transport reported a failure.
	// Fatal for the affected endpoint; not fatal for the stream.
	IoFailure Kind = iota
	// InvalidMetadata means the metadata bytes could not be decoded.
	// Fatal for the connection; the decoder that raised it is poisoned.
	// The encoders also raise it when metadata cannot be encoded.
	InvalidMetadata
	// EncoderMisuse means an encoder was handed a message of the wrong
	// variant, or a Deserialized message whose payload failed to marshal.
	// It indicates a programming bug at the call site.
	EncoderMisuse
	// StreamClosed means the operation was attempted after a top
	// watermark closed the stream.
	StreamClosed
	// TimestampViolation means a send would have broken watermark
	// monotonicity.
	TimestampViolation
	// AccessViolation means a time-versioned-state operation was
	// attempted from the wrong access context.
	AccessViolation
	// EndpointError means a per-endpoint transport failure occurred
	// during write-stream fan-out.
	EndpointError
)

func (k Kind) String() string {
	switch k {
	case IoFailure:
		return "io_failure"
	case InvalidMetadata:
		return "invalid_metadata"
	case EncoderMisuse:
		return "encoder_misuse"
	case StreamClosed:
		return "stream_closed"
	case TimestampViolation:
		return "timestamp_violation"
	case AccessViolation:
		return "access_violation"
	case EndpointError:
		return "endpoint_error"
	default:
		return "unknown"
	}
}

// Error is the concrete error type raised throughout the runtime's core.
// Op names the operation that failed (e.g. "send", "append") and Context
// carries the diagnostic tag called for by AccessViolation — typically the
// active access context's name — but is free-form for other kinds.
type Error struct {
	Kind    Kind
	Op      string
	Context string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("dataflow: %s: %s", e.Op, e.Kind)
	if e.Context != "" {
		msg += fmt.Sprintf(" (%s)", e.Context)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind-equality so callers can write errors.Is(err, dataflow.ErrStreamClosed).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs a *Error of the given kind for operation op.
func NewError(kind Kind, op string, wrapped error) *Error {
	return &Error{Kind: kind, Op: op, Err: wrapped}
}

// NewErrorContext is NewError plus a diagnostic context tag.
func NewErrorContext(kind Kind, op, context string, wrapped error) *Error {
	return &Error{Kind: kind, Op: op, Context: context, Err: wrapped}
}

// Sentinel errors usable with errors.Is; only Kind participates in the
// comparison (see Error.Is), so these are valid targets regardless of Op.
var (
	ErrIoFailure          = &Error{Kind: IoFailure}
	ErrInvalidMetadata    = &Error{Kind: InvalidMetadata}
	ErrEncoderMisuse      = &Error{Kind: EncoderMisuse}
	ErrStreamClosed       = &Error{Kind: StreamClosed}
	ErrTimestampViolation = &Error{Kind: TimestampViolation}
	ErrAccessViolation    = &Error{Kind: AccessViolation}
	ErrEndpointError      = &Error{Kind: EndpointError}
)
