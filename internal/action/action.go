// Package action implements the polymorphic key action tree and its
// dispatcher.
//
// The tree is built once at configuration time and never reallocated; each
// node may carry small mutable per-press state guarded by a lock scoped to
// that one instance. Actions never lock more than one such cell at a time,
// so no cross-action lock ordering exists. The timing-sensitive composites
// (HoldTap, Sticky) race background timers against further input and resolve
// each race exactly once through check-and-set flags under the instance
// lock.
package action

import (
	"context"
	"sync"

	"github.com/dshills/keyflow/internal/hal"
	"github.com/dshills/keyflow/internal/keycode"
	"github.com/dshills/keyflow/internal/layer"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

// Sender is a channel actions can emit messages on.
type Sender interface {
	Send(ctx context.Context, m message.Message) error
}

// Env exposes the firmware context actions run against. One Env is built at
// startup and shared by every action invocation.
type Env struct {
	Internal Sender
	External Sender
	Layers   *layer.Manager
	Pending  *Pending
	Clock    hal.Clock
	Log      *logging.Logger
}

// Action is one node of the key action tree, dispatched on the press and
// release of the key position it is assigned to.
type Action interface {
	OnPress(ctx context.Context, env *Env)
	OnRelease(ctx context.Context, env *Env)
}

// NoOp does nothing on either edge.
type NoOp struct{}

// OnPress implements Action.
func (NoOp) OnPress(context.Context, *Env) {}

// OnRelease implements Action.
func (NoOp) OnRelease(context.Context, *Env) {}

// KeyCode emits a HID key press/release pair on the external channel.
type KeyCode struct {
	Code keycode.Code
}

// OnPress implements Action. Armed sticky actions settle around the send:
// their deferred presses go out first, their releases right after.
func (a KeyCode) OnPress(ctx context.Context, env *Env) {
	settled := env.Pending.Qualify(ctx, env, a.Code)
	if err := env.External.Send(ctx, message.KeyCode{Kind: message.KindPress, Code: a.Code}); err != nil {
		env.Log.Error("key press send failed: %v", err)
	}
	settled()
}

// OnRelease implements Action.
func (a KeyCode) OnRelease(ctx context.Context, env *Env) {
	if err := env.External.Send(ctx, message.KeyCode{Kind: message.KindRelease, Code: a.Code}); err != nil {
		env.Log.Error("key release send failed: %v", err)
	}
}

// Layer holds a layer active while its key is held: push on press, pop that
// specific activation on release. Press and release may race, so the stored
// entry is lock-guarded. A second press before release finds the entry slot
// occupied and is a no-op.
type Layer struct {
	Layer layer.ID

	mu    sync.Mutex
	entry *layer.Entry
}

// OnPress implements Action.
func (a *Layer) OnPress(_ context.Context, env *Env) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entry != nil {
		return
	}
	e := env.Layers.Push(a.Layer)
	a.entry = &e
}

// OnRelease implements Action.
func (a *Layer) OnRelease(_ context.Context, env *Env) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entry == nil {
		return
	}
	env.Layers.Remove(*a.entry)
	a.entry = nil
}

// PerLayerEntry binds a nested action to one layer.
type PerLayerEntry struct {
	Layer  layer.ID
	Action Action
}

// PerLayer resolves its nested action by the layer active at press time.
// The release deliberately forwards to the action chosen at press time even
// if the active layer changed mid-hold; changing that would alter release
// semantics for cross-layer hold actions.
type PerLayer struct {
	Entries []PerLayerEntry

	mu     sync.Mutex
	chosen Action
}

// OnPress implements Action.
func (a *PerLayer) OnPress(ctx context.Context, env *Env) {
	active := env.Layers.Active()

	var chosen Action
	for _, e := range a.Entries {
		if e.Layer == active {
			chosen = e.Action
			break
		}
	}

	a.mu.Lock()
	a.chosen = chosen
	a.mu.Unlock()

	if chosen != nil {
		chosen.OnPress(ctx, env)
	}
}

// OnRelease implements Action.
func (a *PerLayer) OnRelease(ctx context.Context, env *Env) {
	a.mu.Lock()
	chosen := a.chosen
	a.chosen = nil
	a.mu.Unlock()

	if chosen != nil {
		chosen.OnRelease(ctx, env)
	}
}

// Toggle flips its inner action on and off, driven entirely by presses:
// every press alternates between forwarding a press and forwarding a
// release to the inner action. Release of the toggle key itself is a no-op.
type Toggle struct {
	Inner Action

	mu sync.Mutex
	on bool
}

// OnPress implements Action.
func (a *Toggle) OnPress(ctx context.Context, env *Env) {
	a.mu.Lock()
	a.on = !a.on
	on := a.on
	a.mu.Unlock()

	if on {
		a.Inner.OnPress(ctx, env)
	} else {
		a.Inner.OnRelease(ctx, env)
	}
}

// OnRelease implements Action.
func (a *Toggle) OnRelease(context.Context, *Env) {}
