package debounce

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/keyflow/internal/hal"
)

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeNone, "none"},
		{ModeDefer, "defer"},
		{ModeEager, "eager"},
		{Mode(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestCellNoneCommitsOnFirstSample(t *testing.T) {
	c := NewCell(Config{})
	now := time.Unix(0, 0)

	if !c.Update(now, true) {
		t.Fatal("expected immediate activation")
	}
	if !c.Active() {
		t.Fatal("expected cell to be active")
	}
	if !c.Update(now.Add(time.Millisecond), false) {
		t.Fatal("expected immediate deactivation")
	}
	if c.Active() {
		t.Fatal("expected cell to be inactive")
	}
}

func TestCellDeferRequiresStability(t *testing.T) {
	d := 5 * time.Millisecond
	c := NewCell(Config{
		Press:   Spec{Mode: ModeDefer, Duration: d},
		Release: Spec{Mode: ModeDefer, Duration: d},
	})
	now := time.Unix(0, 0)

	// First active sample starts the pending window, no commit.
	if c.Update(now, true) {
		t.Fatal("committed before the stability window elapsed")
	}
	if c.Settled(now) {
		t.Fatal("pending cell reported settled")
	}

	// An inactive reading inside the window resets it.
	now = now.Add(2 * time.Millisecond)
	if c.Update(now, false) {
		t.Fatal("committed on a bounce")
	}

	// Active again: new window; holding past d commits exactly once.
	now = now.Add(time.Millisecond)
	if c.Update(now, true) {
		t.Fatal("committed at window start")
	}
	now = now.Add(d)
	if !c.Update(now, true) {
		t.Fatal("expected commit after stable window")
	}
	if !c.Active() {
		t.Fatal("expected active after commit")
	}
	if c.Update(now.Add(time.Millisecond), true) {
		t.Fatal("second commit for the same edge")
	}
}

func TestCellDeferPendingResetOnReturnToCommitted(t *testing.T) {
	d := 10 * time.Millisecond
	c := NewCell(Config{Press: Spec{Mode: ModeDefer, Duration: d}})
	now := time.Unix(0, 0)

	c.Update(now, true)
	c.Update(now.Add(4*time.Millisecond), false) // bounce resets pending
	c.Update(now.Add(5*time.Millisecond), true)  // fresh window

	// 9ms after the fresh window start: still not stable for d.
	if c.Update(now.Add(14*time.Millisecond), true) {
		t.Fatal("stability window did not reset after bounce")
	}
	if !c.Update(now.Add(15*time.Millisecond), true) {
		t.Fatal("expected commit once the fresh window elapsed")
	}
}

func TestCellEagerCommitsImmediatelyAndSuppresses(t *testing.T) {
	d := 5 * time.Millisecond
	c := NewCell(Config{
		Press:   Spec{Mode: ModeEager, Duration: d},
		Release: Spec{Mode: ModeEager, Duration: d},
	})
	now := time.Unix(0, 0)

	if !c.Update(now, true) {
		t.Fatal("expected immediate commit on first raw edge")
	}
	if c.Settled(now) {
		t.Fatal("expected suppression window to be outstanding")
	}

	// Bounces inside the window are ignored entirely.
	if c.Update(now.Add(time.Millisecond), false) {
		t.Fatal("committed inside the suppression window")
	}
	if c.Update(now.Add(2*time.Millisecond), true) {
		t.Fatal("committed inside the suppression window")
	}
	if !c.Active() {
		t.Fatal("suppressed bounce changed committed state")
	}

	// After the window a new edge commits again.
	if !c.Update(now.Add(d), false) {
		t.Fatal("expected commit after the window elapsed")
	}
	if c.Active() {
		t.Fatal("expected inactive after release commit")
	}
}

func TestCellEagerOneActivationPerRisingEdge(t *testing.T) {
	d := 5 * time.Millisecond
	c := NewCell(Config{Press: Spec{Mode: ModeEager, Duration: d}})
	now := time.Unix(0, 0)

	activations := 0
	raw := []bool{true, false, true, false, true} // bouncing within d
	for i, r := range raw {
		if c.Update(now.Add(time.Duration(i)*time.Millisecond), r) && r {
			activations++
		}
	}
	if activations != 1 {
		t.Errorf("expected exactly 1 activation during bounce, got %d", activations)
	}
}

func TestCellMixedEdgeModes(t *testing.T) {
	// Eager press, defer release: the usual low-latency configuration.
	c := NewCell(Config{
		Press:   Spec{Mode: ModeEager, Duration: 4 * time.Millisecond},
		Release: Spec{Mode: ModeDefer, Duration: 6 * time.Millisecond},
	})
	now := time.Unix(0, 0)

	if !c.Update(now, true) {
		t.Fatal("expected eager press commit")
	}

	now = now.Add(5 * time.Millisecond) // past suppression
	if c.Update(now, false) {
		t.Fatal("release committed without stability")
	}
	if !c.Update(now.Add(6*time.Millisecond), false) {
		t.Fatal("expected deferred release commit")
	}
}

func TestDebouncerNoneImmediate(t *testing.T) {
	pin := hal.NewSimPin()
	d := New(pin, hal.System(), Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan time.Duration, 1)
	go func() {
		extra, err := d.WaitForActive(ctx)
		if err != nil {
			t.Errorf("WaitForActive() failed: %v", err)
		}
		done <- extra
	}()

	time.Sleep(5 * time.Millisecond)
	pin.Set(true)

	select {
	case extra := <-done:
		if extra != 0 {
			t.Errorf("None mode reported extra hold %v, want 0", extra)
		}
	case <-time.After(time.Second):
		t.Fatal("activation never reported")
	}
}

func TestDebouncerEagerReportsExtraHold(t *testing.T) {
	pin := hal.NewSimPin()
	window := 25 * time.Millisecond
	d := New(pin, hal.System(), Config{Press: Spec{Mode: ModeEager, Duration: window}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan time.Duration, 1)
	go func() {
		extra, err := d.WaitForActive(ctx)
		if err != nil {
			t.Errorf("WaitForActive() failed: %v", err)
		}
		done <- extra
	}()

	pin.Set(true)

	select {
	case extra := <-done:
		if extra != window {
			t.Errorf("Eager extra hold = %v, want %v", extra, window)
		}
	case <-time.After(time.Second):
		t.Fatal("activation never reported")
	}
}

func TestDebouncerDeferWaitsOutBounce(t *testing.T) {
	pin := hal.NewSimPin()
	stable := 60 * time.Millisecond
	d := New(pin, hal.System(), Config{Press: Spec{Mode: ModeDefer, Duration: stable}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if _, err := d.WaitForActive(ctx); err != nil {
			t.Errorf("WaitForActive() failed: %v", err)
		}
		close(done)
	}()

	// Bounce for a while: no activation may be reported.
	for i := 0; i < 3; i++ {
		pin.Set(true)
		time.Sleep(10 * time.Millisecond)
		pin.Set(false)
		time.Sleep(10 * time.Millisecond)
		select {
		case <-done:
			t.Fatal("activation reported while signal was still bouncing")
		default:
		}
	}

	// Settle: activation arrives once the signal holds for the window.
	pin.Set(true)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("activation never reported after signal settled")
	}
}

func TestDebouncerAlternatesEdges(t *testing.T) {
	pin := hal.NewSimPin()
	d := New(pin, hal.System(), Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	results := make(chan bool, 2)
	go func() {
		for i := 0; i < 2; i++ {
			active, _, err := d.WaitForChange(ctx)
			if err != nil {
				t.Errorf("WaitForChange() failed: %v", err)
				return
			}
			results <- active
		}
	}()

	pin.Set(true)
	if got := <-results; !got {
		t.Fatal("first change should be an activation")
	}
	pin.Set(false)
	if got := <-results; got {
		t.Fatal("second change should be a deactivation")
	}
}
