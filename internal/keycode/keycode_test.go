package keycode

import "testing"

func TestStringAndParseRoundTrip(t *testing.T) {
	tests := []struct {
		code Code
		name string
	}{
		{A, "A"},
		{Num1, "1"},
		{Enter, "ENTER"},
		{LeftShift, "LSHIFT"},
		{RightGUI, "RGUI"},
	}

	for _, tt := range tests {
		if got := tt.code.String(); got != tt.name {
			t.Errorf("%v.String() = %q, want %q", tt.code, got, tt.name)
		}
		got, err := Parse(tt.name)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tt.name, err)
			continue
		}
		if got != tt.code {
			t.Errorf("Parse(%q) = %v, want %v", tt.name, got, tt.code)
		}
	}
}

func TestParseCaseInsensitive(t *testing.T) {
	got, err := Parse("lshift")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != LeftShift {
		t.Errorf("Parse(lshift) = %v, want LSHIFT", got)
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := Parse("NOTAKEY"); err == nil {
		t.Error("Parse accepted an unknown name")
	}
}

func TestIsModifier(t *testing.T) {
	mods := []Code{LeftCtrl, LeftShift, LeftAlt, LeftGUI, RightCtrl, RightShift, RightAlt, RightGUI}
	for _, c := range mods {
		if !c.IsModifier() {
			t.Errorf("%v.IsModifier() = false", c)
		}
	}
	for _, c := range []Code{A, Num1, Enter, Space} {
		if c.IsModifier() {
			t.Errorf("%v.IsModifier() = true", c)
		}
	}
}

func TestUnnamedCodeString(t *testing.T) {
	// Codes without a name render as hex, never empty.
	c := Code(0xC7)
	if got := c.String(); got != "0xC7" {
		t.Errorf("String() = %q, want 0xC7", got)
	}
}
