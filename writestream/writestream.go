// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package writestream implements the producer-side stream endpoint: the
// object an operator sends Data and Watermark messages through. A Stream
// enforces watermark monotonicity, fans a send out to every endpoint
// registered on it, emits a best-effort notification just before the
// fan-out, and transitions to closed the moment it sends the
// distinguished top watermark.
package writestream

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"code.hybscloud.com/dataflow"
	"code.hybscloud.com/dataflow/internal/metrics"
	"code.hybscloud.com/dataflow/internal/obslog"
	"code.hybscloud.com/dataflow/notify"
)

// Endpoint is one destination a Stream fans a message out to: typically a
// local operator's inbox or a serialized connection to a remote node.
// Push must not retain msg beyond the call if p wraps a shared buffer the
// caller intends to reuse.
type Endpoint interface {
	Push(msg *dataflow.InterProcessMessage) error
}

// EndpointFunc adapts a function to the Endpoint interface.
type EndpointFunc func(msg *dataflow.InterProcessMessage) error

func (f EndpointFunc) Push(msg *dataflow.InterProcessMessage) error { return f(msg) }

// Stream is the producer-side handle for one logical stream of messages.
// A Stream is safe for concurrent use.
type Stream struct {
	id   dataflow.StreamID
	name string
	bus  *notify.Bus

	mu          sync.Mutex
	endpoints   []Endpoint
	watermark   dataflow.Timestamp // highest watermark sent so far; starts at Bottom
	closed      bool
	sawAnyWater bool
}

// New returns an open Stream identified by id, broadcasting notifications
// on bus. bus may be nil, in which case notifications are simply dropped.
// The stream's name defaults to id's string form; set one explicitly with
// NewNamed.
func New(id dataflow.StreamID, bus *notify.Bus) *Stream {
	return NewNamed(id, id.String(), bus)
}

// NewNamed is New with an explicit diagnostic name, used in logs and
// debug output in place of the raw id.
func NewNamed(id dataflow.StreamID, name string, bus *notify.Bus) *Stream {
	obslog.L.Debug("initializing write stream", zap.String("name", name), zap.Stringer("id", id))
	return &Stream{
		id:        id,
		name:      name,
		bus:       bus,
		watermark: dataflow.Bottom(),
	}
}

// ID returns the stream's identifier.
func (s *Stream) ID() dataflow.StreamID { return s.id }

// Name returns the stream's diagnostic name.
func (s *Stream) Name() string { return s.name }

// AddEndpoint registers ep to receive every subsequent send on s. On an
// already-closed stream it registers nothing and returns a
// dataflow.StreamClosed error.
func (s *Stream) AddEndpoint(ep Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return dataflow.NewError(dataflow.StreamClosed, "add_endpoint", nil)
	}
	s.endpoints = append(s.endpoints, ep)
	return nil
}

// IsClosed reports whether s has already sent its top watermark.
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Send pushes a Data message of payload p at timestamp ts to every
// registered endpoint. ts must not be strictly less than the highest
// watermark already sent on s (TimestampViolation), and s must not already
// be closed (StreamClosed). Fan-out continues past a failing endpoint;
// if any endpoint failed, Send returns an EndpointError wrapping the
// first failure after every endpoint has been tried.
func Send[P dataflow.PayloadMarshaler](s *Stream, ts dataflow.Timestamp, p P) error {
	meta, err := s.beginSend(ts, false)
	if err != nil {
		metrics.SendTotal.WithLabelValues("data", outcomeOf(err)).Inc()
		return err
	}
	meta.Kind = dataflow.Data
	msg := dataflow.NewDeserialized(meta, p)
	s.notify(notify.SentData, ts)
	if err := s.fanOut(msg); err != nil {
		metrics.SendTotal.WithLabelValues("data", outcomeOf(err)).Inc()
		return err
	}
	metrics.SendTotal.WithLabelValues("data", "ok").Inc()
	return nil
}

// SendWatermark advances s's watermark to ts without sending data, subject
// to the same monotonicity and closed-stream rules as Send. Sending the
// distinguished top watermark (dataflow.Top()) closes the stream after
// the fan-out completes.
func (s *Stream) SendWatermark(ts dataflow.Timestamp) error {
	meta, err := s.beginSend(ts, true)
	if err != nil {
		metrics.SendTotal.WithLabelValues("watermark", outcomeOf(err)).Inc()
		return err
	}
	meta.Kind = dataflow.Watermark
	msg := dataflow.NewDeserialized(meta, nopPayload{})
	s.notify(notify.SentWatermark, ts)
	if err := s.fanOut(msg); err != nil {
		metrics.SendTotal.WithLabelValues("watermark", outcomeOf(err)).Inc()
		return err
	}
	metrics.SendTotal.WithLabelValues("watermark", "ok").Inc()

	if ts.IsTop() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		obslog.L.Debug("closing write stream", zap.String("name", s.name), zap.Stringer("id", s.id))
		s.notify(notify.Closed, ts)
	}
	return nil
}

// beginSend validates ts against the current watermark and closed state,
// and returns the metadata envelope to send with. Only a watermark send
// (isWatermark true) advances s.watermark; a data send is validated
// against it but must never move it.
func (s *Stream) beginSend(ts dataflow.Timestamp, isWatermark bool) (dataflow.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dataflow.Metadata{}, dataflow.NewError(dataflow.StreamClosed, "send", nil)
	}
	if s.sawAnyWater && ts.Less(s.watermark) {
		return dataflow.Metadata{}, dataflow.NewErrorContext(
			dataflow.TimestampViolation, "send", s.watermark.String(), nil)
	}
	if isWatermark {
		if s.watermark.Less(ts) {
			s.watermark = ts
		}
		s.sawAnyWater = true
	}

	return dataflow.Metadata{
		Stream:    s.id,
		Timestamp: ts,
	}, nil
}

func (s *Stream) fanOut(msg *dataflow.InterProcessMessage) error {
	s.mu.Lock()
	endpoints := make([]Endpoint, len(s.endpoints))
	copy(endpoints, s.endpoints)
	s.mu.Unlock()

	var first error
	for _, ep := range endpoints {
		if err := ep.Push(msg); err != nil {
			metrics.EndpointErrorsTotal.Inc()
			obslog.L.Warn("endpoint push failed", zap.String("stream", s.name), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		return dataflow.NewError(dataflow.EndpointError, "send", first)
	}
	return nil
}

func (s *Stream) notify(kind notify.EventKind, ts dataflow.Timestamp) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(notify.Event{Kind: kind, Stream: s.id, Timestamp: ts})
}

func outcomeOf(err error) string {
	var derr *dataflow.Error
	if errors.As(err, &derr) {
		return derr.Kind.String()
	}
	return "error"
}

// nopPayload is the (absent) payload of a Watermark message.
type nopPayload struct{}

func (nopPayload) MarshalPayload() ([]byte, error) { return nil, nil }
