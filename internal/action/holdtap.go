package action

import (
	"context"
	"sync"
	"time"
)

// tapReleaseDelay is the gap between the simulated tap press and release,
// long enough for HID hosts to register two distinct reports.
const tapReleaseDelay = 10 * time.Millisecond

// HoldTap behaves as one action when held past the tapping term and another
// when released quickly.
//
// Press starts a background timer; if the tapping term elapses before the
// release arrives, the hold action's press fires and the pair is marked
// hold-activated. The release runs as an independent task and checks
// atomically whether hold already activated: if so it forwards to the hold
// action's release, otherwise it marks the pair as a tap (preventing a late
// timer from firing) and simulates an instantaneous tap. The two-flag state
// is checked-and-set under the instance lock, so exactly one of the racing
// branches performs its side effect.
type HoldTap struct {
	Hold        Action
	Tap         Action
	TappingTerm time.Duration

	mu sync.Mutex
	// seq invalidates timers left over from a previous press sequence.
	seq           uint64
	holdActivated bool
	tapDecided    bool
}

// OnPress implements Action.
func (a *HoldTap) OnPress(ctx context.Context, env *Env) {
	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.holdActivated = false
	a.tapDecided = false
	a.mu.Unlock()

	timer := env.Clock.After(a.TappingTerm)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-timer:
		}

		a.mu.Lock()
		defer a.mu.Unlock()
		if a.seq != seq || a.tapDecided {
			// The release already resolved this pair as a tap, or a
			// new press sequence started; this timer lost the race.
			return
		}
		a.holdActivated = true
		// The hold press fires under the lock so a concurrent release
		// cannot forward the hold release first.
		a.Hold.OnPress(ctx, env)
	}()
}

// OnRelease implements Action.
func (a *HoldTap) OnRelease(ctx context.Context, env *Env) {
	a.mu.Lock()
	if a.holdActivated {
		a.mu.Unlock()
		a.Hold.OnRelease(ctx, env)
		return
	}
	a.tapDecided = true
	a.mu.Unlock()

	a.Tap.OnPress(ctx, env)
	_ = env.Clock.Sleep(ctx, tapReleaseDelay)
	a.Tap.OnRelease(ctx, env)
}
