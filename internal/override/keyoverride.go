package override

import (
	"sync"

	"github.com/dshills/keyflow/internal/keycode"
	"github.com/dshills/keyflow/internal/message"
)

// ComboRule rewrites a chord of keys into a single output key: when every
// key in Required is pressed, Then is emitted instead.
type ComboRule struct {
	Required []keycode.Code
	Then     keycode.Code
	// Keep leaves the required keys' presses in place instead of
	// releasing them when the combo triggers (and skips restoring them on
	// teardown).
	Keep bool
}

// KeyOverride implements key combos as an override stage. It tracks the set
// of currently pressed keys; when a press completes a rule's required set the
// original press is swallowed and the rule's output key is emitted instead,
// and a matching release tears the combo down symmetrically.
type KeyOverride struct {
	mu      sync.Mutex
	rules   []ComboRule
	pressed map[keycode.Code]bool
	// active maps rule index to true while that rule's combo is engaged.
	active map[int]bool
}

// NewKeyOverride creates a combo override with the given rules.
func NewKeyOverride(rules []ComboRule) *KeyOverride {
	return &KeyOverride{
		rules:   rules,
		pressed: make(map[keycode.Code]bool),
		active:  make(map[int]bool),
	}
}

// OverrideMessage implements Override. Non key-code messages pass through
// untouched.
func (o *KeyOverride) OverrideMessage(m message.Message, next Sender) error {
	kc, ok := m.(message.KeyCode)
	if !ok {
		return next.Send(m)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	switch kc.Kind {
	case message.KindPress:
		return o.handlePress(kc, next)
	case message.KindRelease:
		return o.handleRelease(kc, next)
	default:
		return next.Send(m)
	}
}

func (o *KeyOverride) handlePress(kc message.KeyCode, next Sender) error {
	k := kc.Code
	o.pressed[k] = true

	matched := false
	for i, rule := range o.rules {
		if o.active[i] || !contains(rule.Required, k) {
			continue
		}
		if !o.allPressed(rule.Required) {
			continue
		}

		o.active[i] = true
		matched = true

		if !rule.Keep {
			// The other required keys' presses already went out;
			// withdraw them before the combo key appears.
			for _, q := range rule.Required {
				if q == k {
					continue
				}
				if err := next.Send(message.KeyCode{Kind: message.KindRelease, Code: q}); err != nil {
					return err
				}
			}
		}
		if err := next.Send(message.KeyCode{Kind: message.KindPress, Code: rule.Then}); err != nil {
			return err
		}
	}

	if matched {
		// The completing press is swallowed.
		return nil
	}
	return next.Send(kc)
}

func (o *KeyOverride) handleRelease(kc message.KeyCode, next Sender) error {
	k := kc.Code
	// k leaves the pressed set regardless of match outcome.
	defer delete(o.pressed, k)

	matched := false
	for i, rule := range o.rules {
		if !o.active[i] || !contains(rule.Required, k) {
			continue
		}

		o.active[i] = false
		matched = true

		if err := next.Send(message.KeyCode{Kind: message.KindRelease, Code: rule.Then}); err != nil {
			return err
		}
		if !rule.Keep {
			// Required keys the user is still physically holding were
			// swallowed on combo entry; restore their presses.
			for _, q := range rule.Required {
				if q == k || !o.pressed[q] {
					continue
				}
				if err := next.Send(message.KeyCode{Kind: message.KindPress, Code: q}); err != nil {
					return err
				}
			}
		}
	}

	if matched {
		return nil
	}
	return next.Send(kc)
}

func (o *KeyOverride) allPressed(required []keycode.Code) bool {
	for _, q := range required {
		if !o.pressed[q] {
			return false
		}
	}
	return true
}

func contains(codes []keycode.Code, c keycode.Code) bool {
	for _, v := range codes {
		if v == c {
			return true
		}
	}
	return false
}
