package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/keyflow/internal/debounce"
	"github.com/dshills/keyflow/internal/hal"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

type recordSink struct {
	mu     sync.Mutex
	events []message.KeyEvent
}

func (r *recordSink) Send(_ context.Context, m message.Message) error {
	ev, ok := m.(message.KeyEvent)
	if !ok {
		return errors.New("unexpected message type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordSink) snapshot() []message.KeyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]message.KeyEvent, len(r.events))
	copy(out, r.events)
	return out
}

func waitEvents(t *testing.T, sink *recordSink, n int) []message.KeyEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := sink.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %v", n, sink.snapshot())
	return nil
}

func TestDirectPinsPressRelease(t *testing.T) {
	pin0 := hal.NewSimPin()
	pin1 := hal.NewSimPin()
	sink := &recordSink{}

	s := NewDirectPins(DirectPinsConfig{
		Pins:      []hal.InputPin{pin0, pin1},
		Transform: []int{3, Unmapped},
	}, hal.System(), sink, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	pin0.Set(true)
	got := waitEvents(t, sink, 1)
	if got[0].Kind != message.KindPress || got[0].Key != 3 {
		t.Fatalf("got %+v, want press of key 3", got[0])
	}

	pin0.Set(false)
	got = waitEvents(t, sink, 2)
	if got[1].Kind != message.KindRelease || got[1].Key != 3 {
		t.Fatalf("got %+v, want release of key 3", got[1])
	}

	// An unmapped pin is scanned but emits nothing.
	pin1.Set(true)
	pin1.Set(false)
	time.Sleep(20 * time.Millisecond)
	if got := sink.snapshot(); len(got) != 2 {
		t.Fatalf("unmapped pin produced events: %v", got)
	}

	cancel()
	<-done
}

func TestDirectPinsSurvivesReadError(t *testing.T) {
	pin := hal.NewSimPin()
	sink := &recordSink{}

	s := NewDirectPins(DirectPinsConfig{
		Pins:      []hal.InputPin{pin},
		Transform: []int{0},
	}, hal.System(), sink, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	pin.FailNextRead(errors.New("transient"))
	pin.Set(true)

	got := waitEvents(t, sink, 1)
	if got[0].Kind != message.KindPress || got[0].Key != 0 {
		t.Fatalf("got %+v, want press of key 0 after transient error", got[0])
	}
}

func TestMatrixPressRelease(t *testing.T) {
	grid := hal.NewSimMatrix(2, 2)
	sink := &recordSink{}

	s := NewMatrix(MatrixConfig{
		Rows: grid.RowPins(),
		Cols: grid.ColPins(),
		Transform: [][]int{
			{0, Unmapped},
			{Unmapped, 1},
		},
	}, hal.System(), sink, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	grid.SetSwitch(0, 0, true)
	got := waitEvents(t, sink, 1)
	if got[0].Kind != message.KindPress || got[0].Key != 0 {
		t.Fatalf("got %+v, want press of key 0", got[0])
	}

	grid.SetSwitch(0, 0, false)
	got = waitEvents(t, sink, 2)
	if got[1].Kind != message.KindRelease || got[1].Key != 0 {
		t.Fatalf("got %+v, want release of key 0", got[1])
	}

	// Second mapped cell, different row and column.
	grid.SetSwitch(1, 1, true)
	got = waitEvents(t, sink, 3)
	if got[2].Kind != message.KindPress || got[2].Key != 1 {
		t.Fatalf("got %+v, want press of key 1", got[2])
	}
	grid.SetSwitch(1, 1, false)
	waitEvents(t, sink, 4)
}

func TestMatrixUnmappedCellDead(t *testing.T) {
	grid := hal.NewSimMatrix(2, 2)
	sink := &recordSink{}

	s := NewMatrix(MatrixConfig{
		Rows: grid.RowPins(),
		Cols: grid.ColPins(),
		Transform: [][]int{
			{0, Unmapped},
			{Unmapped, 1},
		},
	}, hal.System(), sink, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	grid.SetSwitch(0, 1, true)
	time.Sleep(20 * time.Millisecond)
	grid.SetSwitch(0, 1, false)
	time.Sleep(20 * time.Millisecond)

	if got := sink.snapshot(); len(got) != 0 {
		t.Fatalf("unmapped cell produced events: %v", got)
	}
}

func TestMatrixGhostFreeRows(t *testing.T) {
	// Two switches closed in the same column on different rows must be
	// attributed to their own rows by the strobe, not cross-read.
	grid := hal.NewSimMatrix(2, 1)
	sink := &recordSink{}

	s := NewMatrix(MatrixConfig{
		Rows:      grid.RowPins(),
		Cols:      grid.ColPins(),
		Transform: [][]int{{0}, {1}},
	}, hal.System(), sink, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	grid.SetSwitch(0, 0, true)
	waitEvents(t, sink, 1)
	grid.SetSwitch(1, 0, true)
	got := waitEvents(t, sink, 2)

	if got[0].Key != 0 || got[0].Kind != message.KindPress {
		t.Fatalf("first event %+v, want press of key 0", got[0])
	}
	if got[1].Key != 1 || got[1].Kind != message.KindPress {
		t.Fatalf("second event %+v, want press of key 1", got[1])
	}

	grid.SetSwitch(0, 0, false)
	grid.SetSwitch(1, 0, false)
	got = waitEvents(t, sink, 4)
	if got[2].Kind != message.KindRelease || got[3].Kind != message.KindRelease {
		t.Fatalf("expected two releases, got %v", got[2:])
	}
	if got[2].Key == got[3].Key {
		t.Fatalf("releases not paired per key: %v", got[2:])
	}
}

func TestMatrixDeferDebounce(t *testing.T) {
	grid := hal.NewSimMatrix(1, 1)
	sink := &recordSink{}

	s := NewMatrix(MatrixConfig{
		Rows:      grid.RowPins(),
		Cols:      grid.ColPins(),
		Transform: [][]int{{0}},
		Debounce: debounce.Config{
			Press: debounce.Spec{Mode: debounce.ModeDefer, Duration: 10 * time.Millisecond},
		},
	}, hal.System(), sink, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	grid.SetSwitch(0, 0, true)
	time.Sleep(3 * time.Millisecond)
	if got := sink.snapshot(); len(got) != 0 {
		t.Fatalf("deferred press committed early: %v", got)
	}

	got := waitEvents(t, sink, 1)
	if got[0].Kind != message.KindPress || got[0].Key != 0 {
		t.Fatalf("got %+v, want press of key 0", got[0])
	}
}
