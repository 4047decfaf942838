package message

import (
	"fmt"

	"github.com/dshills/keyflow/internal/keycode"
)

// EventKind distinguishes press and release transitions.
type EventKind uint8

const (
	// KindPress is a key-down transition.
	KindPress EventKind = 0
	// KindRelease is a key-up transition.
	KindRelease EventKind = 1
)

// String returns "press" or "release".
func (k EventKind) String() string {
	switch k {
	case KindPress:
		return "press"
	case KindRelease:
		return "release"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Frame tags. Stable wire constants; never renumber.
var (
	// TagKeyEvent tags debounced physical key transitions from scanners.
	TagKeyEvent = Tag{'K', 'E', 'Y', 'E'}
	// TagKeyCode tags resolved HID key transitions on the external channel.
	TagKeyCode = Tag{'H', 'I', 'D', 'K'}
	// TagLayerState tags active-layer change notifications.
	TagLayerState = Tag{'L', 'A', 'Y', 'R'}
)

// KeyEvent is a debounced transition of a physical key position. Scanners
// emit exactly one per committed edge, and a release is never emitted
// without a prior unmatched press for the same key index.
type KeyEvent struct {
	Kind EventKind
	// Key is the logical key index assigned by the transform table.
	Key uint8
}

// MessageTag implements Message.
func (KeyEvent) MessageTag() Tag { return TagKeyEvent }

// MarshalBinary implements encoding.BinaryMarshaler.
func (e KeyEvent) MarshalBinary() ([]byte, error) {
	return []byte{byte(e.Kind), e.Key}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (e *KeyEvent) UnmarshalBinary(body []byte) error {
	if len(body) != 2 {
		return fmt.Errorf("key event body must be 2 bytes, got %d", len(body))
	}
	e.Kind = EventKind(body[0])
	e.Key = body[1]
	return nil
}

func (e KeyEvent) String() string {
	return fmt.Sprintf("KeyEvent{%s key=%d}", e.Kind, e.Key)
}

// KeyCode is a resolved HID key transition headed for a transport.
type KeyCode struct {
	Kind EventKind
	Code keycode.Code
}

// MessageTag implements Message.
func (KeyCode) MessageTag() Tag { return TagKeyCode }

// MarshalBinary implements encoding.BinaryMarshaler.
func (m KeyCode) MarshalBinary() ([]byte, error) {
	return []byte{byte(m.Kind), byte(m.Code)}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *KeyCode) UnmarshalBinary(body []byte) error {
	if len(body) != 2 {
		return fmt.Errorf("key code body must be 2 bytes, got %d", len(body))
	}
	m.Kind = EventKind(body[0])
	m.Code = keycode.Code(body[1])
	return nil
}

func (m KeyCode) String() string {
	return fmt.Sprintf("KeyCode{%s %s}", m.Kind, m.Code)
}

// LayerState announces the currently active layer, so split halves and
// listeners like indicator LEDs can track layer changes.
type LayerState struct {
	Active uint8
}

// MessageTag implements Message.
func (LayerState) MessageTag() Tag { return TagLayerState }

// MarshalBinary implements encoding.BinaryMarshaler.
func (m LayerState) MarshalBinary() ([]byte, error) {
	return []byte{m.Active}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *LayerState) UnmarshalBinary(body []byte) error {
	if len(body) != 1 {
		return fmt.Errorf("layer state body must be 1 byte, got %d", len(body))
	}
	m.Active = body[0]
	return nil
}
