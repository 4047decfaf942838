// Package keycode defines HID keyboard usage codes and helpers over them.
// The values follow the USB HID Usage Tables, Keyboard/Keypad page (0x07),
// and must remain stable across firmware versions sharing a split link.
package keycode

import (
	"fmt"
	"strings"
)

// Code is a USB HID keyboard usage ID.
type Code uint8

// Alphabetic keys.
const (
	None Code = 0x00

	A Code = 0x04
	B Code = 0x05
	C Code = 0x06
	D Code = 0x07
	E Code = 0x08
	F Code = 0x09
	G Code = 0x0A
	H Code = 0x0B
	I Code = 0x0C
	J Code = 0x0D
	K Code = 0x0E
	L Code = 0x0F
	M Code = 0x10
	N Code = 0x11
	O Code = 0x12
	P Code = 0x13
	Q Code = 0x14
	R Code = 0x15
	S Code = 0x16
	T Code = 0x17
	U Code = 0x18
	V Code = 0x19
	W Code = 0x1A
	X Code = 0x1B
	Y Code = 0x1C
	Z Code = 0x1D
)

// Number row.
const (
	Num1 Code = 0x1E
	Num2 Code = 0x1F
	Num3 Code = 0x20
	Num4 Code = 0x21
	Num5 Code = 0x22
	Num6 Code = 0x23
	Num7 Code = 0x24
	Num8 Code = 0x25
	Num9 Code = 0x26
	Num0 Code = 0x27
)

// Control and punctuation keys.
const (
	Enter      Code = 0x28
	Escape     Code = 0x29
	Backspace  Code = 0x2A
	Tab        Code = 0x2B
	Space      Code = 0x2C
	Minus      Code = 0x2D
	Equal      Code = 0x2E
	LeftBrace  Code = 0x2F
	RightBrace Code = 0x30
	Backslash  Code = 0x31
	Semicolon  Code = 0x33
	Quote      Code = 0x34
	Grave      Code = 0x35
	Comma      Code = 0x36
	Period     Code = 0x37
	Slash      Code = 0x38
	CapsLock   Code = 0x39
)

// Function keys.
const (
	F1  Code = 0x3A
	F2  Code = 0x3B
	F3  Code = 0x3C
	F4  Code = 0x3D
	F5  Code = 0x3E
	F6  Code = 0x3F
	F7  Code = 0x40
	F8  Code = 0x41
	F9  Code = 0x42
	F10 Code = 0x43
	F11 Code = 0x44
	F12 Code = 0x45
)

// Navigation keys.
const (
	Insert   Code = 0x49
	Home     Code = 0x4A
	PageUp   Code = 0x4B
	Delete   Code = 0x4C
	End      Code = 0x4D
	PageDown Code = 0x4E
	Right    Code = 0x4F
	Left     Code = 0x50
	Down     Code = 0x51
	Up       Code = 0x52
)

// Modifier keys. These occupy the contiguous modifier block of the usage
// table, which IsModifier relies on.
const (
	LeftCtrl   Code = 0xE0
	LeftShift  Code = 0xE1
	LeftAlt    Code = 0xE2
	LeftGUI    Code = 0xE3
	RightCtrl  Code = 0xE4
	RightShift Code = 0xE5
	RightAlt   Code = 0xE6
	RightGUI   Code = 0xE7
)

// IsModifier reports whether the code is a keyboard modifier
// (Ctrl/Shift/Alt/GUI, either side).
func (c Code) IsModifier() bool {
	return c >= LeftCtrl && c <= RightGUI
}

var names = map[Code]string{
	None: "NONE",
	A:    "A", B: "B", C: "C", D: "D", E: "E", F: "F", G: "G",
	H: "H", I: "I", J: "J", K: "K", L: "L", M: "M", N: "N",
	O: "O", P: "P", Q: "Q", R: "R", S: "S", T: "T", U: "U",
	V: "V", W: "W", X: "X", Y: "Y", Z: "Z",
	Num1: "1", Num2: "2", Num3: "3", Num4: "4", Num5: "5",
	Num6: "6", Num7: "7", Num8: "8", Num9: "9", Num0: "0",
	Enter: "ENTER", Escape: "ESC", Backspace: "BSPC", Tab: "TAB",
	Space: "SPACE", Minus: "MINUS", Equal: "EQUAL",
	LeftBrace: "LBRC", RightBrace: "RBRC", Backslash: "BSLS",
	Semicolon: "SCLN", Quote: "QUOT", Grave: "GRV",
	Comma: "COMMA", Period: "DOT", Slash: "SLASH", CapsLock: "CAPS",
	F1: "F1", F2: "F2", F3: "F3", F4: "F4", F5: "F5", F6: "F6",
	F7: "F7", F8: "F8", F9: "F9", F10: "F10", F11: "F11", F12: "F12",
	Insert: "INS", Home: "HOME", PageUp: "PGUP", Delete: "DEL",
	End: "END", PageDown: "PGDN",
	Right: "RIGHT", Left: "LEFT", Down: "DOWN", Up: "UP",
	LeftCtrl: "LCTRL", LeftShift: "LSHIFT", LeftAlt: "LALT", LeftGUI: "LGUI",
	RightCtrl: "RCTRL", RightShift: "RSHIFT", RightAlt: "RALT", RightGUI: "RGUI",
}

var byName = func() map[string]Code {
	m := make(map[string]Code, len(names))
	for c, n := range names {
		m[n] = c
	}
	return m
}()

// String returns the configuration name of the code, or a hex form for
// codes without one.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", uint8(c))
}

// Parse resolves a configuration name (case-insensitive) to a Code.
func Parse(name string) (Code, error) {
	if c, ok := byName[strings.ToUpper(name)]; ok {
		return c, nil
	}
	return None, fmt.Errorf("unknown key code %q", name)
}
