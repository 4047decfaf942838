// Package layer manages the stack of active keymap layers.
//
// Activations are ordered by a monotonically increasing id; the active layer
// is always the most recent activation, and layer 0 is the implicit base.
// Removal is by handle, not stack position, because keys are released in any
// order. Conditional rules auto-activate a layer whenever all of its required
// layers are simultaneously active, and tear it down when any of them goes
// away; rules may chain.
package layer

import (
	"fmt"
	"sync"
)

// ID names a logical layer. Layer 0 is the implicit base layer.
type ID uint8

// Base is the implicit bottom layer, active when nothing is pushed.
const Base ID = 0

// Entry is the opaque handle returned by Push and consumed exactly once by
// Remove. It pairs 1:1 with a single activation.
type Entry struct {
	seq   uint64
	layer ID
}

// Layer returns the layer this entry activated.
func (e Entry) Layer() ID {
	return e.layer
}

// Rule is a conditional layer: whenever every layer in Required is active,
// Then is auto-activated; when any required layer deactivates, Then is
// removed again.
type Rule struct {
	Required []ID
	Then     ID
}

type activation struct {
	seq   uint64
	layer ID
	// rule is the index of the conditional rule that auto-activated this
	// entry, or -1 for a manual push.
	rule int
}

// ChangeFunc is notified, under no lock, when the active layer changes.
type ChangeFunc func(active ID)

// Manager is the layer stack. A single mutex serializes all mutations.
type Manager struct {
	mu      sync.Mutex
	stack   []activation
	nextSeq uint64
	rules   []Rule
	// autoFor maps rule index to the seq of its live auto-activation.
	autoFor  map[int]uint64
	onChange ChangeFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithRules installs the conditional layer rules.
func WithRules(rules []Rule) Option {
	return func(m *Manager) { m.rules = rules }
}

// WithChangeFunc installs a callback invoked when the active layer changes.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(m *Manager) { m.onChange = fn }
}

// NewManager creates an empty layer stack.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		// seq 0 is reserved so an Entry zero value is never valid.
		nextSeq: 1,
		autoFor: make(map[int]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active returns the most recently activated layer, or Base if the stack is
// empty.
func (m *Manager) Active() ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

// Push activates layer and returns the handle required to remove this
// specific activation. Conditional rules are re-evaluated to a fixpoint, so
// one push can auto-activate a chain of conditional layers.
func (m *Manager) Push(layer ID) Entry {
	m.mu.Lock()
	before := m.activeLocked()

	seq := m.pushLocked(layer, -1)
	m.evaluateRulesLocked()

	after := m.activeLocked()
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil && before != after {
		fn(after)
	}
	return Entry{seq: seq, layer: layer}
}

// Remove deactivates the specific activation entry refers to, regardless of
// its stack position, then tears down every auto-activated conditional layer
// whose required set included the removed layer (cascading through chained
// rules).
//
// Passing an entry that was never pushed, or one already removed, is a
// programming error and panics.
func (m *Manager) Remove(entry Entry) {
	m.mu.Lock()
	before := m.activeLocked()

	idx := -1
	for i, a := range m.stack {
		if a.seq == entry.seq {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		panic(fmt.Sprintf("layer: Remove of unknown or already-removed entry (layer %d)", entry.layer))
	}

	removed := m.stack[idx].layer
	if m.stack[idx].rule >= 0 {
		delete(m.autoFor, m.stack[idx].rule)
	}
	m.stack = append(m.stack[:idx], m.stack[idx+1:]...)

	m.teardownLocked(removed)

	after := m.activeLocked()
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil && before != after {
		fn(after)
	}
}

func (m *Manager) activeLocked() ID {
	if len(m.stack) == 0 {
		return Base
	}
	return m.stack[len(m.stack)-1].layer
}

func (m *Manager) pushLocked(layer ID, rule int) uint64 {
	seq := m.nextSeq
	m.nextSeq++
	m.stack = append(m.stack, activation{seq: seq, layer: layer, rule: rule})
	return seq
}

func (m *Manager) activeSetLocked() map[ID]bool {
	set := make(map[ID]bool, len(m.stack))
	for _, a := range m.stack {
		set[a.layer] = true
	}
	return set
}

// evaluateRulesLocked auto-activates every rule whose required set is a
// subset of the active layers, repeating until nothing changes so chained
// rules converge within one push.
func (m *Manager) evaluateRulesLocked() {
	for {
		changed := false
		active := m.activeSetLocked()
		for i, r := range m.rules {
			if _, live := m.autoFor[i]; live {
				continue
			}
			if !subset(r.Required, active) {
				continue
			}
			seq := m.pushLocked(r.Then, i)
			m.autoFor[i] = seq
			changed = true
		}
		if !changed {
			return
		}
	}
}

// teardownLocked removes every live auto-activation whose rule required the
// just-removed layer, cascading through rules that required a torn-down
// conditional layer in turn.
func (m *Manager) teardownLocked(removed ID) {
	worklist := []ID{removed}
	for len(worklist) > 0 {
		r := worklist[0]
		worklist = worklist[1:]

		for i, rule := range m.rules {
			seq, live := m.autoFor[i]
			if !live || !contains(rule.Required, r) {
				continue
			}
			for j, a := range m.stack {
				if a.seq == seq {
					m.stack = append(m.stack[:j], m.stack[j+1:]...)
					break
				}
			}
			delete(m.autoFor, i)
			worklist = append(worklist, rule.Then)
		}
	}
}

func subset(required []ID, active map[ID]bool) bool {
	for _, id := range required {
		if !active[id] {
			return false
		}
	}
	return true
}

func contains(ids []ID, id ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
