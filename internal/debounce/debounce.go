// Package debounce converts noisy raw switch signals into clean logical
// transitions.
//
// Three algorithms are available, selected independently for the press edge
// and the release edge of the same switch:
//
//   - Defer: commit only after the raw signal has held the new level for a
//     full uninterrupted duration. Noise-resistant; the reported extra hold
//     time is zero because the delay already elapsed before the commit.
//   - Eager: commit immediately on the first raw edge and report the
//     configured duration as extra hold time the caller must wait out before
//     re-arming. Not noise-resistant: a bounce inside the window is ignored,
//     which can also swallow a legitimate very fast second press.
//   - None: commit immediately with no extra hold.
//
// Two forms are provided: a Debouncer that blocks on a hal.InputPin (used by
// the direct-pin scanner, one per pin), and an incremental Cell driven by
// (now, raw) samples (used by the matrix scanner's settle loop, one per
// mapped matrix cell).
package debounce

import (
	"context"
	"time"

	"github.com/dshills/keyflow/internal/hal"
)

// Mode selects a debounce algorithm.
type Mode int

const (
	// ModeNone commits transitions immediately.
	ModeNone Mode = iota
	// ModeDefer waits for the signal to hold stable before committing.
	ModeDefer
	// ModeEager commits immediately and suppresses re-arming for the window.
	ModeEager
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeDefer:
		return "defer"
	case ModeEager:
		return "eager"
	default:
		return "unknown"
	}
}

// Spec configures the algorithm for one edge direction.
type Spec struct {
	Mode     Mode
	Duration time.Duration
}

// Config pairs the press-edge and release-edge algorithms for one switch.
type Config struct {
	Press   Spec
	Release Spec
}

// Debouncer tracks the committed logical state of one switch and blocks on
// its raw pin. The committed state starts inactive; waits are edge-based,
// so WaitForActive while already committed-active blocks until the next
// fresh activation.
type Debouncer struct {
	pin hal.InputPin
	clk hal.Clock
	cfg Config

	// active is the committed logical state. Only the owning scan loop
	// touches it, so no lock is needed.
	active bool
}

// New creates a debouncer over pin using clk for timing.
func New(pin hal.InputPin, clk hal.Clock, cfg Config) *Debouncer {
	return &Debouncer{pin: pin, clk: clk, cfg: cfg}
}

// Active reports the committed logical state.
func (d *Debouncer) Active() bool {
	return d.active
}

// WaitForChange blocks until the committed state flips, returning the new
// state and the extra hold duration the caller must honor before re-arming.
func (d *Debouncer) WaitForChange(ctx context.Context) (bool, time.Duration, error) {
	target := !d.active
	spec := d.cfg.Press
	if !target {
		spec = d.cfg.Release
	}

	extra, err := d.waitForRaw(ctx, target, spec)
	if err != nil {
		return d.active, 0, err
	}
	d.active = target
	return target, extra, nil
}

// WaitForActive blocks until the next fresh committed activation.
func (d *Debouncer) WaitForActive(ctx context.Context) (time.Duration, error) {
	for {
		active, extra, err := d.WaitForChange(ctx)
		if err != nil {
			return 0, err
		}
		if active {
			return extra, nil
		}
	}
}

// WaitForInactive blocks until the next fresh committed deactivation.
func (d *Debouncer) WaitForInactive(ctx context.Context) (time.Duration, error) {
	for {
		active, extra, err := d.WaitForChange(ctx)
		if err != nil {
			return 0, err
		}
		if !active {
			return extra, nil
		}
	}
}

func (d *Debouncer) waitForRaw(ctx context.Context, target bool, spec Spec) (time.Duration, error) {
	if err := hal.WaitFor(ctx, d.pin, target); err != nil {
		return 0, err
	}

	switch spec.Mode {
	case ModeEager:
		return spec.Duration, nil
	case ModeDefer:
		return 0, d.holdStable(ctx, target, spec.Duration)
	default:
		return 0, nil
	}
}

// holdStable returns once the raw signal has read target for a full
// uninterrupted duration, re-arming the timer on every intervening change.
func (d *Debouncer) holdStable(ctx context.Context, target bool, duration time.Duration) error {
	for {
		ch := d.pin.Changed()
		raw, err := d.pin.Active()
		if err != nil {
			return err
		}
		if raw != target {
			if err := hal.WaitFor(ctx, d.pin, target); err != nil {
				return err
			}
			continue
		}

		timer := d.clk.After(duration)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			// Raw flipped inside the window; re-arm.
		case <-timer:
			// The timer and a change can race; only commit if the
			// window really was uninterrupted.
			select {
			case <-ch:
				continue
			default:
				return nil
			}
		}
	}
}
