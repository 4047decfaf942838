package action

import (
	"context"
	"sync"
	"time"
)

// Sticky latches its inner action until either a qualifying key press
// arrives or a timeout fires, whichever happens first. There is exactly one
// race per press, and the two completion paths are mutually exclusive:
// whichever loses must not also perform its side effect.
//
// With Lazy false, the inner press fires on the sticky key's own press and
// the race only decides when the inner release happens. With Lazy true, the
// inner press is deferred until the qualifying key press; if the timeout
// wins instead, the press is skipped and both press and release happen on
// the sticky key's own release.
//
// Qualification happens synchronously in the emit path via env.Pending:
// KeyCode settles armed stickies before sending its own press, so a
// deferred sticky modifier always reaches the host ahead of the key it
// modifies. The timeout path runs on a background timer and resolves
// through the same per-press sequence check.
type Sticky struct {
	Inner   Action
	Timeout time.Duration
	// Lazy defers the inner press until a qualifying key press.
	Lazy bool
	// IgnoreModifiers makes modifier presses non-qualifying, so a sticky
	// shift is not consumed by pressing ctrl.
	IgnoreModifiers bool

	mu  sync.Mutex
	seq uint64
	// held: the inner press is currently in effect.
	held bool
	// released: the inner release already happened via the race.
	released bool
	// expired: the timeout won; qualification is closed for this press.
	expired    bool
	cancelRace context.CancelFunc
}

// OnPress implements Action.
func (a *Sticky) OnPress(ctx context.Context, env *Env) {
	a.mu.Lock()
	a.seq++
	seq := a.seq
	a.held = false
	a.released = false
	a.expired = false

	if !a.Lazy {
		a.Inner.OnPress(ctx, env)
		a.held = true
	}

	raceCtx, cancel := context.WithCancel(ctx)
	if a.cancelRace != nil {
		a.cancelRace()
	}
	a.cancelRace = cancel
	a.mu.Unlock()

	env.Pending.arm(a, seq)
	go a.race(raceCtx, env, seq)
}

// OnRelease implements Action.
func (a *Sticky) OnRelease(ctx context.Context, env *Env) {
	env.Pending.disarm(a)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancelRace != nil {
		a.cancelRace()
		a.cancelRace = nil
	}

	if a.released {
		return
	}
	if !a.held {
		// Lazy press that was never triggered: it happens now, on the
		// sticky key's own release.
		a.Inner.OnPress(ctx, env)
	}
	a.Inner.OnRelease(ctx, env)
	a.held = false
	a.released = true
}

// race waits out the timeout; a qualifying press resolves the sticky
// through the registry instead and leaves this timer to fizzle.
func (a *Sticky) race(ctx context.Context, env *Env, seq uint64) {
	timer := env.Clock.After(a.Timeout)
	select {
	case <-ctx.Done():
	case <-timer:
		a.expire(ctx, env, seq)
	}
}

// beginQualify runs the pre-send half of a qualification: the deferred
// lazy press, if owed. It reports whether an inner release is owed after
// the qualifying press has gone out; a stale or already-settled press
// reports false and has no effect.
func (a *Sticky) beginQualify(ctx context.Context, env *Env, seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seq != seq || a.released || a.expired {
		return false
	}
	if a.Lazy && !a.held {
		a.Inner.OnPress(ctx, env)
		a.held = true
	}
	return a.held
}

// endQualify runs the post-send half: the inner release, unless the sticky
// key's own release already settled it in between.
func (a *Sticky) endQualify(ctx context.Context, env *Env, seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seq != seq || a.released {
		return
	}
	if a.held {
		a.Inner.OnRelease(ctx, env)
		a.held = false
	}
	a.released = true
}

// expire resolves the timeout path exactly once. A held inner press
// expires now; a lazy press that never fired stays skipped until the
// sticky key's own release.
func (a *Sticky) expire(ctx context.Context, env *Env, seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// The seq check keeps a stale timer from disarming a re-press.
	if a.seq != seq || a.released || a.expired {
		return
	}
	a.expired = true
	env.Pending.disarm(a)
	if a.held {
		a.Inner.OnRelease(ctx, env)
		a.held = false
		a.released = true
	}
}
