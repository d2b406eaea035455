// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/dataflow"
	"code.hybscloud.com/dataflow/notify"
)

func TestRecvInOrder(t *testing.T) {
	b := notify.New(4)
	r := b.Subscribe()

	stream := dataflow.DeriveStreamID("s")
	b.Publish(notify.Event{Kind: notify.SentData, Stream: stream, Timestamp: dataflow.New(1)})
	b.Publish(notify.Event{Kind: notify.SentWatermark, Stream: stream, Timestamp: dataflow.New(2)})

	ctx := context.Background()
	ev, err, ok := r.Recv(ctx)
	if err != nil || !ok {
		t.Fatalf("Recv 1: err=%v ok=%v", err, ok)
	}
	if ev.Kind != notify.SentData || !ev.Timestamp.Equal(dataflow.New(1)) {
		t.Fatalf("Recv 1 = %+v", ev)
	}

	ev, err, ok = r.Recv(ctx)
	if err != nil || !ok {
		t.Fatalf("Recv 2: err=%v ok=%v", err, ok)
	}
	if ev.Kind != notify.SentWatermark {
		t.Fatalf("Recv 2 = %+v", ev)
	}
}

// A receiver that falls behind the ring's capacity sees a Lagged error and
// resynchronizes from the newest retained event rather than replaying the
// gap or blocking forever.
func TestRecvLaggedResync(t *testing.T) {
	b := notify.New(2)
	r := b.Subscribe()
	stream := dataflow.DeriveStreamID("s")

	for i := uint64(0); i < 5; i++ {
		b.Publish(notify.Event{Kind: notify.SentData, Stream: stream, Timestamp: dataflow.New(i)})
	}

	ctx := context.Background()
	_, err, ok := r.Recv(ctx)
	if !ok {
		t.Fatalf("expected ok=true for Lagged")
	}
	var lagged *notify.Lagged
	if !errors.As(err, &lagged) {
		t.Fatalf("Recv = %v, want *Lagged", err)
	}
	if lagged.N == 0 {
		t.Fatalf("Lagged.N = 0, want > 0")
	}

	// Resumes cleanly: the event at the resynchronized cursor is the
	// newest one still retained, not garbage.
	ev, err, ok := r.Recv(ctx)
	if err != nil || !ok {
		t.Fatalf("Recv after lag: err=%v ok=%v", err, ok)
	}
	if !ev.Timestamp.Equal(dataflow.New(4)) {
		t.Fatalf("post-lag event = %+v, want ts=4 (newest retained of last 2)", ev)
	}
}

func TestRecvBlocksUntilPublish(t *testing.T) {
	b := notify.New(4)
	r := b.Subscribe()
	stream := dataflow.DeriveStreamID("s")

	done := make(chan notify.Event, 1)
	go func() {
		ev, _, _ := r.Recv(context.Background())
		done <- ev
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatalf("Recv returned before Publish")
	default:
	}

	b.Publish(notify.Event{Kind: notify.Closed, Stream: stream, Timestamp: dataflow.Top()})
	select {
	case ev := <-done:
		if ev.Kind != notify.Closed {
			t.Fatalf("ev = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv never returned after Publish")
	}
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	b := notify.New(4)
	r := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err, _ := r.Recv(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Recv err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv never returned after cancel")
	}
}

func TestCloseUnblocksReceivers(t *testing.T) {
	b := notify.New(4)
	r := b.Subscribe()

	done := make(chan bool, 1)
	go func() {
		_, _, ok := r.Recv(context.Background())
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("Recv ok = true after Close, want false")
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv never returned after Close")
	}
}
