// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package notify implements the notification bus: a bounded-ring broadcast
// channel that publishes stream lifecycle events to any number of
// observers. Delivery is best-effort — a receiver that falls more than the
// ring's capacity behind loses the events it missed and is told so via a
// Lagged notification on its next Recv, then resumes from the newest event
// still retained.
//
// The non-blocking "publish never waits on a slow subscriber" discipline
// follows the same shape as a broadcast logger that drops to a slow
// subscriber's buffer rather than stall the publisher; a fixed-size ring
// plus per-receiver cursor is layered on top so a lagging receiver can
// resynchronize instead of silently missing events forever.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"code.hybscloud.com/dataflow"
	"code.hybscloud.com/dataflow/internal/metrics"
	"code.hybscloud.com/dataflow/internal/obslog"
)

// EventKind distinguishes the kinds of events the bus carries.
type EventKind uint8

const (
	// SentData is emitted when a stream accepts a data message, before the
	// message is pushed to the stream's endpoints.
	SentData EventKind = iota
	// SentWatermark is emitted when a stream accepts a watermark, before
	// the watermark is pushed to the stream's endpoints.
	SentWatermark
	// Closed is emitted once, when a stream transitions to closed.
	Closed
)

func (k EventKind) String() string {
	switch k {
	case SentData:
		return "sent_data"
	case SentWatermark:
		return "sent_watermark"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one published notification.
type Event struct {
	Kind      EventKind
	Stream    dataflow.StreamID
	Timestamp dataflow.Timestamp
}

// Lagged is returned by Recv instead of an Event when the receiver fell
// further behind than the bus's ring can retain. N is the number of
// events that were overwritten and skipped. The receiver's cursor is
// advanced to the newest event still retained, so the Recv after a Lagged
// resumes from there rather than repeating the gap.
type Lagged struct {
	N uint64
}

func (l Lagged) Error() string {
	return "notify: receiver lagged"
}

// Bus is a bounded-ring broadcast of Events. The zero value is not usable;
// construct with New.
type Bus struct {
	mu   sync.Mutex
	cond *sync.Cond

	ring []Event
	seq  []uint64 // publish sequence number recorded alongside ring[i]
	next uint64   // sequence number the next Publish will use
	size int

	closed bool
}

// New returns a Bus retaining the most recent capacity events. capacity
// must be at least 1; values less than 1 are treated as 1.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	b := &Bus{
		ring: make([]Event, capacity),
		seq:  make([]uint64, capacity),
		size: capacity,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends ev to the ring and wakes any receiver blocked in Recv.
// It never blocks on a receiver: slow receivers simply see their cursor
// fall behind and resynchronize via Lagged.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	idx := int(b.next) % b.size
	b.ring[idx] = ev
	b.seq[idx] = b.next
	b.next++
	b.mu.Unlock()
	metrics.NotifyPublishedTotal.Inc()
	b.cond.Broadcast()
}

// Close marks the bus closed: blocked Recv calls return immediately with
// (Event{}, nil, false) to signal no further events will arrive. Publish
// after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Receiver is one observer's cursor into a Bus.
type Receiver struct {
	bus    *Bus
	cursor uint64 // sequence number of the next event this receiver wants
	synced bool
}

// Subscribe returns a Receiver positioned at the oldest event currently
// retained in the ring (or at the next event to be published, if the
// ring is empty so far).
func (b *Bus) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()
	oldest := oldestRetained(b)
	return &Receiver{bus: b, cursor: oldest, synced: true}
}

func oldestRetained(b *Bus) uint64 {
	if b.next <= uint64(b.size) {
		return 0
	}
	return b.next - uint64(b.size)
}

// Recv blocks until an event is available, the bus is closed, or ctx is
// done. ok is false only when the bus has closed with nothing further to
// deliver. If the receiver's cursor fell behind the oldest retained event,
// Recv returns a *Lagged error instead, having already advanced the
// cursor to the newest retained event so the following Recv resumes
// from there rather than replaying the gap.
func (r *Receiver) Recv(ctx context.Context) (Event, error, bool) {
	b := r.bus
	b.mu.Lock()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		case <-stop:
		}
		close(done)
	}()
	defer func() {
		close(stop)
		b.mu.Unlock()
		<-done
	}()

	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err, false
		}
		oldest := oldestRetained(b)
		if r.cursor < oldest {
			skipped := oldest - r.cursor
			r.cursor = b.next - 1 // newest retained event; b.next > size >= 1 here
			metrics.NotifyLaggedTotal.Inc()
			obslog.L.Warn("receiver lagged behind notification bus", zap.Uint64("skipped", skipped))
			return Event{}, &Lagged{N: skipped}, true
		}
		if r.cursor < b.next {
			idx := int(r.cursor) % b.size
			ev := b.ring[idx]
			r.cursor++
			return ev, nil, true
		}
		if b.closed {
			return Event{}, nil, false
		}
		b.cond.Wait()
	}
}
