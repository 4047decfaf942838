package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dshills/keyflow/internal/bus"
	"github.com/dshills/keyflow/internal/keycode"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
	"github.com/dshills/keyflow/internal/override"
)

// captureTransport records every frame sent over the link.
type captureTransport struct {
	mu     sync.Mutex
	frames [][]byte
}

func (t *captureTransport) Send(_ context.Context, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	t.frames = append(t.frames, cp)
	return nil
}

func (t *captureTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

func newInternal(t *captureTransport) *Internal {
	return NewInternal(bus.New[[]byte](16), t, logging.Nop())
}

func TestInternalSendReachesLocalReceiverAndTransport(t *testing.T) {
	transport := &captureTransport{}
	c := newInternal(transport)

	recv := NewReceiver[message.KeyEvent](c)
	defer recv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := message.KeyEvent{Kind: message.KindPress, Key: 3}
	if err := c.Send(ctx, want); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	got, err := recv.Next(ctx)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if got != want {
		t.Errorf("received %+v, want %+v", got, want)
	}

	if transport.count() != 1 {
		t.Errorf("transport received %d frames, want 1", transport.count())
	}
}

func TestReceiverSkipsOtherTags(t *testing.T) {
	c := newInternal(&captureTransport{})

	recv := NewReceiver[message.KeyEvent](c)
	defer recv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Interleave messages of a different type; the typed receiver must
	// only see key events.
	_ = c.Send(ctx, message.LayerState{Active: 1})
	_ = c.Send(ctx, message.KeyEvent{Kind: message.KindPress, Key: 9})
	_ = c.Send(ctx, message.LayerState{Active: 2})
	_ = c.Send(ctx, message.KeyEvent{Kind: message.KindRelease, Key: 9})

	first, err := recv.Next(ctx)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	second, err := recv.Next(ctx)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}

	if first.Kind != message.KindPress || first.Key != 9 {
		t.Errorf("first = %+v, want press key 9", first)
	}
	if second.Kind != message.KindRelease || second.Key != 9 {
		t.Errorf("second = %+v, want release key 9", second)
	}
}

func TestReceiverDropsMalformedFrames(t *testing.T) {
	c := newInternal(&captureTransport{})

	recv := NewReceiver[message.KeyEvent](c)
	defer recv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// A key-event tag with a truncated body, as a remote half with a
	// version mismatch might send.
	c.InjectFrame([]byte{'K', 'E', 'Y', 'E', 0})
	// Then a valid frame.
	_ = c.Send(ctx, message.KeyEvent{Kind: message.KindPress, Key: 1})

	got, err := recv.Next(ctx)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if got.Key != 1 {
		t.Errorf("receiver did not skip the malformed frame, got %+v", got)
	}
}

func TestInjectFrameDeliversRemoteEvents(t *testing.T) {
	c := newInternal(&captureTransport{})

	recv := NewReceiver[message.KeyEvent](c)
	defer recv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame, err := message.Encode(message.KeyEvent{Kind: message.KindPress, Key: 42})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	c.InjectFrame(frame)

	got, err := recv.Next(ctx)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if got.Key != 42 {
		t.Errorf("got %+v, want key 42", got)
	}
}

func TestExternalWithEmptyChainPublishesAndForwards(t *testing.T) {
	transport := &captureTransport{}
	e := NewExternal(nil, bus.New[message.Message](16), transport, logging.Nop())

	sub := e.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := message.KeyCode{Kind: message.KindPress, Code: keycode.A}
	if err := e.Send(ctx, want); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	got, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if got != want {
		t.Errorf("observer got %v, want %v", got, want)
	}
	if transport.count() != 1 {
		t.Errorf("transport received %d frames, want 1", transport.count())
	}
}

// tagging override marks key codes by rewriting them to a fixed code,
// counting how many messages it saw.
type countingOverride struct {
	mu   sync.Mutex
	seen int
	emit func(m message.Message, next override.Sender) error
}

func (o *countingOverride) OverrideMessage(m message.Message, next override.Sender) error {
	o.mu.Lock()
	o.seen++
	o.mu.Unlock()
	if o.emit != nil {
		return o.emit(m, next)
	}
	return next.Send(m)
}

func TestExternalChainLaterStagesOnly(t *testing.T) {
	// Stage 0 duplicates every key press; stage 1 counts what it sees.
	// Stage 0 must never see its own duplicates.
	duplicator := &countingOverride{
		emit: func(m message.Message, next override.Sender) error {
			if err := next.Send(m); err != nil {
				return err
			}
			return next.Send(m)
		},
	}
	counter := &countingOverride{}

	e := NewExternal(
		[]override.Override{duplicator, counter},
		bus.New[message.Message](16),
		&captureTransport{},
		logging.Nop(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := e.Send(ctx, message.KeyCode{Kind: message.KindPress, Code: keycode.A}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	if duplicator.seen != 1 {
		t.Errorf("stage 0 saw %d messages, want 1 (must not see its own output)", duplicator.seen)
	}
	if counter.seen != 2 {
		t.Errorf("stage 1 saw %d messages, want 2", counter.seen)
	}
}

func TestExternalSuppression(t *testing.T) {
	// An override that emits nothing suppresses the message entirely.
	mute := &countingOverride{
		emit: func(message.Message, override.Sender) error { return nil },
	}
	transport := &captureTransport{}
	e := NewExternal([]override.Override{mute}, bus.New[message.Message](16), transport, logging.Nop())

	sub := e.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := e.Send(ctx, message.KeyCode{Kind: message.KindPress, Code: keycode.A}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	if transport.count() != 0 {
		t.Errorf("suppressed message reached the transport")
	}

	shortCtx, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	if _, err := sub.Next(shortCtx); err == nil {
		t.Error("suppressed message reached the observer bus")
	}
}
