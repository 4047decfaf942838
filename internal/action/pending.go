package action

import (
	"context"
	"sync"

	"github.com/dshills/keyflow/internal/keycode"
)

// Pending tracks armed sticky actions so a resolved key press can settle
// them in the emit path, before the qualifying press itself goes out. That
// ordering is the whole point of a sticky modifier: the deferred modifier
// press must reach the host ahead of the key it modifies, and the modifier
// release right after it.
//
// All methods tolerate a nil receiver; an Env without a registry simply has
// stickies that resolve by timeout only.
type Pending struct {
	mu   sync.Mutex
	arms []pendingArm
}

// NewPending creates an empty sticky registry.
func NewPending() *Pending {
	return &Pending{}
}

type pendingArm struct {
	sticky *Sticky
	seq    uint64
}

// arm registers a sticky activation. A re-press of the same sticky key
// replaces the earlier arm rather than stacking.
func (p *Pending) arm(a *Sticky, seq uint64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.arms {
		if p.arms[i].sticky == a {
			p.arms[i].seq = seq
			return
		}
	}
	p.arms = append(p.arms, pendingArm{sticky: a, seq: seq})
}

// disarm removes a sticky's registration, if any.
func (p *Pending) disarm(a *Sticky) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.arms {
		if p.arms[i].sticky == a {
			p.arms = append(p.arms[:i], p.arms[i+1:]...)
			return
		}
	}
}

// Qualify settles every armed sticky against a key press that is about to
// be emitted. Deferred inner presses fire now, before the caller sends its
// own press; the returned func fires the owed inner releases and must be
// called right after that send. Armed stickies the code does not qualify
// for (modifier presses against IgnoreModifiers) stay armed.
func (p *Pending) Qualify(ctx context.Context, env *Env, code keycode.Code) func() {
	if p == nil {
		return func() {}
	}

	p.mu.Lock()
	var settled []pendingArm
	kept := p.arms[:0]
	for _, arm := range p.arms {
		if arm.sticky.IgnoreModifiers && code.IsModifier() {
			kept = append(kept, arm)
			continue
		}
		settled = append(settled, arm)
	}
	p.arms = kept
	p.mu.Unlock()

	owed := settled[:0]
	for _, arm := range settled {
		if arm.sticky.beginQualify(ctx, env, arm.seq) {
			owed = append(owed, arm)
		}
	}
	if len(owed) == 0 {
		return func() {}
	}
	return func() {
		for _, arm := range owed {
			arm.sticky.endQualify(ctx, env, arm.seq)
		}
	}
}
