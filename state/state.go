// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package state implements the per-operator time-versioned state store: a
// pair of logical-time-indexed histories (received messages and state
// snapshots) gated by an access context that reflects what kind of
// callback is currently executing.
//
// The access-context gate is the store's principal correctness device: it
// makes "data appends never race with state reads" and "configuration
// never mutates mid-execution" properties of which context is active
// rather than of caller discipline. Every public operation below checks
// the active context and fails with a dataflow.AccessViolation error
// (naming the attempted operation and the active context) when called from
// the wrong one — see the table in the package-level Context type.
package state

import (
	"fmt"

	"go.uber.org/zap"

	"code.hybscloud.com/dataflow"
	"code.hybscloud.com/dataflow/internal/metrics"
	"code.hybscloud.com/dataflow/internal/obslog"
	"code.hybscloud.com/dataflow/internal/tsmap"
)

// Context labels which kind of callback is currently executing. It is set
// by the runtime around each callback invocation, never by user code.
type Context uint8

const (
	// OperatorInit permits SetHistorySize and SetInitialState. It is the
	// context a TimeVersionedState is constructed in.
	OperatorInit Context = iota
	// Callback permits Append.
	Callback
	// WatermarkCallback permits the read/mutate operations: GetState,
	// GetCurrentState, GetCurrentStateMut, IterStates, GetCurrentMessages.
	WatermarkCallback
)

func (c Context) String() string {
	switch c {
	case OperatorInit:
		return "operator_init"
	case Callback:
		return "callback"
	case WatermarkCallback:
		return "watermark_callback"
	default:
		return "unknown"
	}
}

// TimeVersionedState holds one operator's per-timestamp message history
// (payload type M) and state snapshot history (state type S). M and S are
// ordinary Go types the operator defines; the store never inspects them.
//
// A TimeVersionedState is not safe for concurrent use: it is owned
// exclusively by its operator and the runtime serializes callback
// invocations onto it (§5 of the originating design: "Time-versioned
// state is owned exclusively by its operator; no cross-operator
// sharing").
type TimeVersionedState[M any, S any] struct {
	ctx Context

	historySize int

	currentTime Timestamp
	currentSet  bool

	messages *tsmap.Map[[]M]
	states   *tsmap.Map[S]
}

// Timestamp is an alias so callers of this package don't need a second
// import for the plain dataflow.Timestamp type.
type Timestamp = dataflow.Timestamp

// New constructs a TimeVersionedState in the OperatorInit context with the
// given initial state as the configured default, zero history size (only
// the current timestamp's state is addressable until SetHistorySize is
// called), and populates the state history's bottom entry with initial —
// "the state store's bottom entry, if present, is the configured initial
// state" holds from construction.
func New[M any, S any](initial S) *TimeVersionedState[M, S] {
	t := &TimeVersionedState[M, S]{
		ctx:      OperatorInit,
		messages: &tsmap.Map[[]M]{},
		states:   &tsmap.Map[S]{},
	}
	t.states.Set(dataflow.Bottom(), initial)
	return t
}

func (t *TimeVersionedState[M, S]) violation(op string) error {
	metrics.StateAccessViolationsTotal.WithLabelValues(op).Inc()
	obslog.L.Debug("rejected state operation from wrong access context",
		zap.String("op", op), zap.String("context", t.ctx.String()))
	return dataflow.NewErrorContext(dataflow.AccessViolation, op, t.ctx.String(), nil)
}

func (t *TimeVersionedState[M, S]) require(op string, allowed Context) error {
	if t.ctx != allowed {
		return t.violation(op)
	}
	return nil
}

// SetContext is called by the runtime immediately before and after
// invoking a callback, switching which operations are currently
// permitted. It is not itself access-gated: it is how the runtime drives
// the gate.
func (t *TimeVersionedState[M, S]) SetContext(ctx Context) {
	t.ctx = ctx
}

// SetHistorySize configures how many past state snapshots remain
// addressable from a watermark callback. Permitted only in OperatorInit.
func (t *TimeVersionedState[M, S]) SetHistorySize(n int) error {
	if err := t.require("set_history_size", OperatorInit); err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	t.historySize = n
	return nil
}

// SetInitialState overwrites the configured initial state (and the state
// history's bottom entry, if it hasn't been superseded). Permitted only in
// OperatorInit.
func (t *TimeVersionedState[M, S]) SetInitialState(s S) error {
	if err := t.require("set_initial_state", OperatorInit); err != nil {
		return err
	}
	t.states.Set(dataflow.Bottom(), s)
	return nil
}

// SetCurrentTime advances the current timestamp and ensures both histories
// have an entry keyed by t: an empty message sequence and, if absent, the
// zero value of S (not the configured initial state — only the bottom
// entry carries that). It is idempotent if t already exists. The runtime
// must call this before the first callback at t, including a plain
// (non-watermark) Callback — regular callbacks observe the same
// freshly-initialized slot a later watermark callback will see, so the
// watermark callback always finds a default already present.
func (t *TimeVersionedState[M, S]) SetCurrentTime(ts Timestamp) {
	t.currentTime = ts
	t.currentSet = true
	if !t.messages.Has(ts) {
		t.messages.Set(ts, nil)
	}
	if !t.states.Has(ts) {
		var zero S
		t.states.Set(ts, zero)
	}
}

// CloseTime is called by the runtime once the watermark callback for t has
// returned. It releases message history entries with key <= t outright,
// and trims the state history so that at most max(historySize, 1) entries
// with key <= t remain — the most recent ones. When historySize == 0,
// every entry with key <= t is dropped instead (the single addressable
// slot becomes whatever lies strictly above t, if anything does yet).
func (t *TimeVersionedState[M, S]) CloseTime(ts Timestamp) {
	t.messages.DeleteLE(ts)
	if t.historySize == 0 {
		t.states.KeepMostRecentLE(ts, 0)
	} else {
		t.states.KeepMostRecentLE(ts, t.historySize)
	}
	obslog.L.Debug("closed time", zap.Stringer("timestamp", ts), zap.Int("history_size", t.historySize))
}

// Append adds msg to the current timestamp's message history. Permitted
// only in Callback (the non-watermark callback context).
func (t *TimeVersionedState[M, S]) Append(msg M) error {
	if err := t.require("append", Callback); err != nil {
		return err
	}
	if !t.currentSet {
		panic("dataflow/state: append called before set_current_time")
	}
	slice, _ := t.messages.GetPtr(t.currentTime)
	if slice == nil {
		t.messages.Set(t.currentTime, []M{msg})
		return nil
	}
	*slice = append(*slice, msg)
	return nil
}

// GetCurrentMessages returns the (possibly empty) message sequence
// received at the current timestamp. Permitted only in WatermarkCallback.
func (t *TimeVersionedState[M, S]) GetCurrentMessages() ([]M, error) {
	if err := t.require("get_current_messages", WatermarkCallback); err != nil {
		return nil, err
	}
	if !t.currentSet {
		panic("dataflow/state: get_current_messages called before set_current_time")
	}
	msgs, _ := t.messages.Get(t.currentTime)
	return msgs, nil
}

// GetState returns the state snapshot at exactly ts, if ts <= the current
// time and ts is still within the retained window; otherwise it returns
// (zero, false, nil) — not an error. The window check counts live state
// entries in [ts, currentTime): if more than historySize of them exist,
// ts has conceptually fallen out of the retained window even if it
// hasn't physically been garbage-collected yet. Permitted only in
// WatermarkCallback.
func (t *TimeVersionedState[M, S]) GetState(ts Timestamp) (S, bool, error) {
	var zero S
	if err := t.require("get_state", WatermarkCallback); err != nil {
		return zero, false, err
	}
	if t.currentTime.Less(ts) {
		return zero, false, nil
	}

	var window []Timestamp
	for _, k := range t.states.KeysAscending() {
		if k.Less(ts) {
			continue
		}
		if !k.Less(t.currentTime) {
			break
		}
		window = append(window, k)
	}
	if len(window) > t.historySize {
		return zero, false, nil
	}

	s, ok := t.states.Get(ts)
	if !ok {
		return zero, false, nil
	}
	return s, true, nil
}

// GetCurrentState returns a copy of the state at the current timestamp.
// Permitted only in WatermarkCallback. It panics if SetCurrentTime was
// never called — that is a runtime invariant violation, not a user error.
func (t *TimeVersionedState[M, S]) GetCurrentState() (S, error) {
	var zero S
	if err := t.require("get_current_state", WatermarkCallback); err != nil {
		return zero, err
	}
	if !t.currentSet {
		panic("dataflow/state: get_current_state called before set_current_time")
	}
	s, ok := t.states.Get(t.currentTime)
	if !ok {
		panic(fmt.Sprintf("dataflow/state: no state entry for current time %s", t.currentTime))
	}
	return s, nil
}

// GetCurrentStateMut returns a pointer into the store's current-timestamp
// state entry, letting the watermark callback mutate it in place.
// Permitted only in WatermarkCallback; panics under the same condition as
// GetCurrentState.
func (t *TimeVersionedState[M, S]) GetCurrentStateMut() (*S, error) {
	if err := t.require("get_current_state_mut", WatermarkCallback); err != nil {
		return nil, err
	}
	if !t.currentSet {
		panic("dataflow/state: get_current_state_mut called before set_current_time")
	}
	ptr, ok := t.states.GetPtr(t.currentTime)
	if !ok {
		panic(fmt.Sprintf("dataflow/state: no state entry for current time %s", t.currentTime))
	}
	return ptr, nil
}

// TimestampedState pairs a timestamp with the state snapshot recorded for
// it, as yielded by IterStates.
type TimestampedState[S any] struct {
	Timestamp Timestamp
	State     S
}

// IterStates returns the current timestamp's state and up to
// historySize-1 preceding entries (historySize entries total), in
// strictly decreasing timestamp order. historySize == 0 yields no
// entries at all, matching the retention window's literal boundary.
// Permitted only in WatermarkCallback.
func (t *TimeVersionedState[M, S]) IterStates() ([]TimestampedState[S], error) {
	if err := t.require("iter_states", WatermarkCallback); err != nil {
		return nil, err
	}
	keys := t.states.KeysAscending()
	limit := t.historySize
	out := make([]TimestampedState[S], 0, limit)
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		k := keys[i]
		if t.currentTime.Less(k) {
			continue
		}
		v, _ := t.states.Get(k)
		out = append(out, TimestampedState[S]{Timestamp: k, State: v})
	}
	return out, nil
}
