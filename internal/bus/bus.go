package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultCapacity is the slot capacity used when New is given a
// non-positive capacity.
const DefaultCapacity = 64

// Bus is an ordered single-queue broadcast bus. See the package
// documentation for the delivery contract.
type Bus[T any] struct {
	mu sync.Mutex

	// slots[0] holds the message with sequence baseSeq; slot i holds
	// baseSeq+i. nextSeq is the sequence the next publish will take.
	slots    []slot[T]
	baseSeq  uint64
	nextSeq  uint64
	capacity int

	subs map[uint64]*Subscription[T]
	// nextSubID is only ever incremented, so subscription identity is
	// never reused.
	nextSubID uint64

	// publishCh is closed and replaced on every publish so blocked
	// readers wake without polling.
	publishCh chan struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
	lagged    atomic.Uint64
}

type slot[T any] struct {
	value T
	// remaining is the number of registered subscribers that have not yet
	// consumed this slot. The slot retires when it reaches zero.
	remaining int
}

// Stats is a snapshot of bus counters.
type Stats struct {
	// Published counts messages accepted into the queue.
	Published uint64
	// Dropped counts publishes discarded because no subscriber existed.
	Dropped uint64
	// Lagged counts messages skipped across all subscribers.
	Lagged uint64
	// Subscribers is the number of currently registered subscriptions.
	Subscribers int
	// Depth is the number of live slots in the queue.
	Depth int
}

// New creates a bus retaining at most capacity unread messages.
func New[T any](capacity int) *Bus[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus[T]{
		capacity:  capacity,
		subs:      make(map[uint64]*Subscription[T]),
		publishCh: make(chan struct{}),
	}
}

// Publish appends v to the queue. With no subscribers registered it is a
// no-op: there is nobody the message could ever be delivered to.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs) == 0 {
		b.dropped.Add(1)
		return
	}

	if len(b.slots) >= b.capacity {
		// Queue full: force-retire the oldest slot. Subscribers that had
		// not read it will observe a lag on their next read.
		b.slots = b.slots[1:]
		b.baseSeq++
	}

	b.slots = append(b.slots, slot[T]{value: v, remaining: len(b.subs)})
	b.nextSeq++
	b.published.Add(1)

	close(b.publishCh)
	b.publishCh = make(chan struct{})
}

// Subscribe registers a new subscriber whose cursor starts at the current
// write position: it never observes messages published before this call.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++

	sub := &Subscription[T]{
		bus:    b,
		id:     id,
		token:  uuid.NewString(),
		cursor: b.nextSeq,
	}
	b.subs[id] = sub
	return sub
}

// Stats returns a snapshot of bus counters.
func (b *Bus[T]) Stats() Stats {
	b.mu.Lock()
	subs := len(b.subs)
	depth := len(b.slots)
	b.mu.Unlock()

	return Stats{
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
		Lagged:      b.lagged.Load(),
		Subscribers: subs,
		Depth:       depth,
	}
}

// retireLocked pops fully-consumed slots from the front of the queue.
// Only the head can retire this way; ordering makes interior slots reach
// zero no earlier than everything before them except when a subscriber
// closes mid-stream, which is handled by the same front-of-queue sweep.
func (b *Bus[T]) retireLocked() {
	for len(b.slots) > 0 && b.slots[0].remaining <= 0 {
		b.slots = b.slots[1:]
		b.baseSeq++
	}
}

// Subscription is one subscriber's cursor over the bus.
type Subscription[T any] struct {
	bus    *Bus[T]
	id     uint64
	token  string
	cursor uint64
	closed bool
}

// Token is a unique identifier for this subscription, for log lines.
func (s *Subscription[T]) Token() string {
	return s.token
}

// Next blocks until a message at or after the cursor exists, returns it and
// advances the cursor by one. If the wanted slot was already retired, Next
// advances the cursor past the gap and returns a *LaggedError; the caller
// should loop. Returns ctx.Err() when the context ends and
// ErrSubscriptionClosed after Close.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		b := s.bus
		b.mu.Lock()
		if s.closed {
			b.mu.Unlock()
			return zero, ErrSubscriptionClosed
		}

		if s.cursor < b.baseSeq {
			n := b.baseSeq - s.cursor
			s.cursor = b.baseSeq
			b.lagged.Add(n)
			b.mu.Unlock()
			return zero, &LaggedError{Count: n}
		}

		if s.cursor < b.nextSeq {
			sl := &b.slots[s.cursor-b.baseSeq]
			v := sl.value
			sl.remaining--
			s.cursor++
			b.retireLocked()
			b.mu.Unlock()
			return v, nil
		}

		ch := b.publishCh
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ch:
		}
	}
}

// Close unregisters the subscription. Pending slots it had not read lose one
// reader, which may retire them immediately. Close is idempotent.
func (s *Subscription[T]) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	delete(b.subs, s.id)

	if s.cursor > b.baseSeq {
		for i := s.cursor - b.baseSeq; i < uint64(len(b.slots)); i++ {
			b.slots[i].remaining--
		}
	} else {
		for i := range b.slots {
			b.slots[i].remaining--
		}
	}
	b.retireLocked()
}
