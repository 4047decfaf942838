// Package hal defines the narrow hardware contracts the scanning pipeline
// consumes: input and output pins plus a clock. The firmware core never
// touches MCU peripherals directly; platform bring-up supplies
// implementations of these interfaces, and SimPin/SimClock supply
// deterministic ones for tests and the host simulator.
package hal

import (
	"context"
	"time"
)

// InputPin is a debounceable boolean input.
//
// Changed must be sampled before Active when waiting for a transition:
// obtaining the channel first guarantees a level change between the read and
// the wait is never missed.
type InputPin interface {
	// Active reports whether the pin currently reads as logically active.
	Active() (bool, error)

	// Changed returns a channel that is closed the next time the pin level
	// changes. Each call may return a fresh channel.
	Changed() <-chan struct{}
}

// OutputPin is a drivable boolean output, e.g. a matrix row strobe.
type OutputPin interface {
	SetActive() error
	SetInactive() error
}

// Clock abstracts time so debounce and action timing can run against
// simulated time in tests.
type Clock interface {
	Now() time.Time

	// After returns a channel that delivers the current time once d has
	// elapsed.
	After(d time.Duration) <-chan time.Time

	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// WaitFor blocks until the pin reads the target level.
// Read errors are returned to the caller, which is expected to log and retry.
func WaitFor(ctx context.Context, pin InputPin, target bool) error {
	for {
		ch := pin.Changed()
		active, err := pin.Active()
		if err != nil {
			return err
		}
		if active == target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// WaitForAny blocks until at least one of the pins reads active.
// It is the matrix scanner's idle wake-up: all rows are driven and the
// scanner sleeps here instead of busy-polling an idle board.
func WaitForAny(ctx context.Context, pins []InputPin) error {
	for {
		chans := make([]<-chan struct{}, len(pins))
		for i, p := range pins {
			chans[i] = p.Changed()
		}
		for _, p := range pins {
			active, err := p.Active()
			if err != nil {
				return err
			}
			if active {
				return nil
			}
		}

		fired := make(chan struct{}, 1)
		stop := make(chan struct{})
		for _, ch := range chans {
			go func(c <-chan struct{}) {
				select {
				case <-c:
					select {
					case fired <- struct{}{}:
					default:
					}
				case <-stop:
				}
			}(ch)
		}

		select {
		case <-ctx.Done():
			close(stop)
			return ctx.Err()
		case <-fired:
			close(stop)
		}
	}
}
