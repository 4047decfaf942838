package action

// Layout is the fixed table assigning one action to each key index. It is
// built once at configuration time; per-layer resolution happens inside
// PerLayer nodes, not by layout-level indirection.
type Layout struct {
	actions []Action
}

// NewLayout creates a layout over the given slots. Nil slots become NoOp.
func NewLayout(actions []Action) *Layout {
	slots := make([]Action, len(actions))
	for i, a := range actions {
		if a == nil {
			a = NoOp{}
		}
		slots[i] = a
	}
	return &Layout{actions: slots}
}

// NumKeys returns the number of key slots.
func (l *Layout) NumKeys() int {
	return len(l.actions)
}

// Action returns the action for a key index, or false for an index beyond
// the layout.
func (l *Layout) Action(key uint8) (Action, bool) {
	if int(key) >= len(l.actions) {
		return nil, false
	}
	return l.actions[key], true
}
