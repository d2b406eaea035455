// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package state_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/dataflow"
	"code.hybscloud.com/dataflow/state"
)

func ts(coords ...uint64) dataflow.Timestamp { return dataflow.New(coords...) }

// S5 — a watermark callback observes every message appended by the regular
// callbacks that preceded it at the same timestamp.
func TestWatermarkCallbackSeesAppendedMessages(t *testing.T) {
	s := state.New[string, int](0)

	s.SetCurrentTime(ts(1))
	s.SetContext(state.Callback)
	if err := s.Append("a"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("b"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s.SetContext(state.WatermarkCallback)
	msgs, err := s.GetCurrentMessages()
	if err != nil {
		t.Fatalf("GetCurrentMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0] != "a" || msgs[1] != "b" {
		t.Fatalf("messages = %v, want [a b]", msgs)
	}
}

// Property 6 — closing a timestamp releases its message history but the state
// history remains addressable up to the configured history size.
func TestCloseTimeReleasesMessagesRetainsStateWindow(t *testing.T) {
	s := state.New[string, int](0)
	if err := func() error {
		return s.SetHistorySize(2)
	}(); err != nil {
		t.Fatalf("SetHistorySize: %v", err)
	}

	for i := uint64(1); i <= 3; i++ {
		s.SetCurrentTime(ts(i))
		s.SetContext(state.Callback)
		_ = s.Append("m")
		s.SetContext(state.WatermarkCallback)
		mut, err := s.GetCurrentStateMut()
		if err != nil {
			t.Fatalf("GetCurrentStateMut: %v", err)
		}
		*mut = int(i)
		s.CloseTime(ts(i))
	}

	s.SetContext(state.WatermarkCallback)
	msgs, err := s.GetCurrentMessages()
	if err != nil {
		t.Fatalf("GetCurrentMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages at t=3 after CloseTime(3) = %v, want empty (released)", msgs)
	}

	// history size 2: states at t=2 and t=3 remain addressable, t=1 is gone.
	if _, ok, _ := s.GetState(ts(3)); !ok {
		t.Fatalf("expected state at t=3 to remain")
	}
	if _, ok, _ := s.GetState(ts(2)); !ok {
		t.Fatalf("expected state at t=2 to remain (history_size=2)")
	}
	if _, ok, _ := s.GetState(ts(1)); ok {
		t.Fatalf("expected state at t=1 to be GC'd")
	}
}

// Property 5 — access context gating: every operation restricted to a
// context fails with AccessViolation from any other context.
func TestAccessViolations(t *testing.T) {
	s := state.New[string, int](0)

	s.SetContext(state.WatermarkCallback)
	if err := checkKind(s.SetHistorySize(1)); err != nil {
		t.Fatalf("SetHistorySize outside OperatorInit: %v", err)
	}
	if err := checkKind(s.SetInitialState(5)); err != nil {
		t.Fatalf("SetInitialState outside OperatorInit: %v", err)
	}

	s.SetContext(state.OperatorInit)
	s.SetCurrentTime(ts(1))
	if err := checkKind(s.Append("x")); err != nil {
		t.Fatalf("Append outside Callback: %v", err)
	}

	s.SetContext(state.Callback)
	if _, err := s.GetCurrentState(); checkKind(err) != nil {
		t.Fatalf("GetCurrentState outside WatermarkCallback: %v", err)
	}
	if _, err := s.GetCurrentMessages(); checkKind(err) != nil {
		t.Fatalf("GetCurrentMessages outside WatermarkCallback: %v", err)
	}
}

func checkKind(err error) error {
	var derr *dataflow.Error
	if !errors.As(err, &derr) {
		return errors.New("expected *dataflow.Error")
	}
	if derr.Kind != dataflow.AccessViolation {
		return errors.New("expected AccessViolation kind")
	}
	return nil
}

// set_current_time pre-initializes an entry (empty messages,
// the zero value of S — not the configured initial state, which only the
// bottom entry carries) for a timestamp even when only regular callbacks,
// never a watermark callback, run at it.
func TestSetCurrentTimePreInitializes(t *testing.T) {
	s := state.New[string, int](42)

	s.SetCurrentTime(ts(1))
	s.SetContext(state.WatermarkCallback)
	got, err := s.GetCurrentState()
	if err != nil {
		t.Fatalf("GetCurrentState: %v", err)
	}
	if got != 0 {
		t.Fatalf("state at t=1 = %d, want 0 (zero value, not the initial state)", got)
	}
	msgs, err := s.GetCurrentMessages()
	if err != nil {
		t.Fatalf("GetCurrentMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages at fresh t=1 = %v, want empty", msgs)
	}
}

// GetCurrentState must panic, not return an error, when set_current_time
// was never called: this is a runtime invariant violation.
func TestGetCurrentStatePanicsWithoutSetCurrentTime(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	s := state.New[string, int](0)
	s.SetContext(state.WatermarkCallback)
	_, _ = s.GetCurrentState()
}

// Property 7 — IterStates yields the current timestamp's state and up to
// history_size-1 preceding entries (history_size in total) in strictly
// decreasing order.
func TestIterStatesOrderAndWindow(t *testing.T) {
	s := state.New[string, int](0)
	_ = s.SetHistorySize(1)

	for i := uint64(1); i <= 3; i++ {
		s.SetCurrentTime(ts(i))
		s.SetContext(state.WatermarkCallback)
		mut, err := s.GetCurrentStateMut()
		if err != nil {
			t.Fatalf("GetCurrentStateMut: %v", err)
		}
		*mut = int(i * 10)
	}

	s.SetContext(state.WatermarkCallback)
	entries, err := s.IterStates()
	if err != nil {
		t.Fatalf("IterStates: %v", err)
	}
	// history_size=1 caps the total entries returned at 1 (the current
	// timestamp only); it does not mean "1 preceding entry plus current".
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (history_size=1 total)", len(entries))
	}
	if !entries[0].Timestamp.Equal(ts(3)) || entries[0].State != 30 {
		t.Fatalf("entries[0] = %+v, want t=3 state=30", entries[0])
	}
}

// S5 — full lifecycle: history size 2, initial state 100; across
// timestamps [1]..[5], callbacks append i, 2i, 3i, then the watermark
// callback sums them into the state and closes every other timestamp,
// checking the GC bound (property 6) holds each time.
func TestLifecycleScenarioS5(t *testing.T) {
	s := state.New[int, int](100)
	if err := s.SetHistorySize(2); err != nil {
		t.Fatalf("SetHistorySize: %v", err)
	}

	s.SetContext(state.Callback)
	for i := uint64(1); i <= 5; i++ {
		s.SetCurrentTime(ts(i))
		_ = s.Append(int(i))
		_ = s.Append(int(i * 2))
		_ = s.Append(int(i * 3))
	}

	s.SetContext(state.WatermarkCallback)
	for i := uint64(1); i <= 5; i++ {
		current := ts(i)
		s.SetCurrentTime(current)

		got, err := s.GetCurrentState()
		if err != nil {
			t.Fatalf("i=%d GetCurrentState: %v", i, err)
		}
		if got != 0 {
			t.Fatalf("i=%d current state before processing = %d, want 0", i, got)
		}

		msgs, err := s.GetCurrentMessages()
		if err != nil {
			t.Fatalf("i=%d GetCurrentMessages: %v", i, err)
		}
		sum := 0
		for _, m := range msgs {
			sum += m
		}
		if want := int(i * 6); sum != want {
			t.Fatalf("i=%d message sum = %d, want %d", i, sum, want)
		}

		mut, err := s.GetCurrentStateMut()
		if err != nil {
			t.Fatalf("i=%d GetCurrentStateMut: %v", i, err)
		}
		*mut = sum

		entries, err := s.IterStates()
		if err != nil {
			t.Fatalf("i=%d IterStates: %v", i, err)
		}
		if len(entries) != 2 {
			t.Fatalf("i=%d len(entries) = %d, want 2", i, len(entries))
		}
		if !entries[0].Timestamp.Equal(current) || entries[0].State != sum {
			t.Fatalf("i=%d entries[0] = %+v, want t=%d state=%d", i, entries[0], i, sum)
		}

		if i%2 == 0 {
			s.CloseTime(current)
			if _, ok, _ := s.GetState(dataflow.Bottom()); ok {
				t.Fatalf("i=%d bottom entry should be GC'd after CloseTime(%d) with history_size=2", i, i)
			}
		}
	}
}
