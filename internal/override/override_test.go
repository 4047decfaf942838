package override

import (
	"testing"

	"github.com/dshills/keyflow/internal/keycode"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

// recorder collects every message an override emits.
type recorder struct {
	msgs []message.Message
}

func (r *recorder) Send(m message.Message) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) keyCodes(t *testing.T) []message.KeyCode {
	t.Helper()
	out := make([]message.KeyCode, 0, len(r.msgs))
	for _, m := range r.msgs {
		kc, ok := m.(message.KeyCode)
		if !ok {
			t.Fatalf("unexpected message type %T", m)
		}
		out = append(out, kc)
	}
	return out
}

func press(c keycode.Code) message.KeyCode {
	return message.KeyCode{Kind: message.KindPress, Code: c}
}

func release(c keycode.Code) message.KeyCode {
	return message.KeyCode{Kind: message.KindRelease, Code: c}
}

func send(t *testing.T, o Override, rec *recorder, msgs ...message.Message) {
	t.Helper()
	for _, m := range msgs {
		if err := o.OverrideMessage(m, rec); err != nil {
			t.Fatalf("OverrideMessage(%v) failed: %v", m, err)
		}
	}
}

func TestKeyOverrideNoMatchPassesThrough(t *testing.T) {
	o := NewKeyOverride([]ComboRule{
		{Required: []keycode.Code{keycode.A, keycode.B}, Then: keycode.C},
	})
	rec := &recorder{}

	send(t, o, rec, press(keycode.D), release(keycode.D))

	got := rec.keyCodes(t)
	want := []message.KeyCode{press(keycode.D), release(keycode.D)}
	assertSequence(t, got, want)
}

func TestKeyOverrideComboSwallowsAndRewrites(t *testing.T) {
	o := NewKeyOverride([]ComboRule{
		{Required: []keycode.Code{keycode.A, keycode.B}, Then: keycode.C},
	})
	rec := &recorder{}

	// A goes out normally; B completes the combo, so A is withdrawn,
	// C appears, and B's own press is never emitted.
	send(t, o, rec, press(keycode.A), press(keycode.B))

	got := rec.keyCodes(t)
	want := []message.KeyCode{
		press(keycode.A),
		release(keycode.A),
		press(keycode.C),
	}
	assertSequence(t, got, want)
}

func TestKeyOverrideComboRelease(t *testing.T) {
	o := NewKeyOverride([]ComboRule{
		{Required: []keycode.Code{keycode.A, keycode.B}, Then: keycode.C},
	})
	rec := &recorder{}
	send(t, o, rec, press(keycode.A), press(keycode.B))

	rec.msgs = nil
	// Releasing B tears the combo down: C releases and A, which the user
	// still holds but the combo swallowed, is restored.
	send(t, o, rec, release(keycode.B))

	got := rec.keyCodes(t)
	want := []message.KeyCode{
		release(keycode.C),
		press(keycode.A),
	}
	assertSequence(t, got, want)

	// Releasing A afterward is an ordinary release.
	rec.msgs = nil
	send(t, o, rec, release(keycode.A))
	assertSequence(t, rec.keyCodes(t), []message.KeyCode{release(keycode.A)})
}

func TestKeyOverrideKeepDoesNotTouchRequiredKeys(t *testing.T) {
	o := NewKeyOverride([]ComboRule{
		{Required: []keycode.Code{keycode.A, keycode.B}, Then: keycode.C, Keep: true},
	})
	rec := &recorder{}

	send(t, o, rec, press(keycode.A), press(keycode.B))

	got := rec.keyCodes(t)
	want := []message.KeyCode{
		press(keycode.A),
		press(keycode.C),
	}
	assertSequence(t, got, want)

	rec.msgs = nil
	send(t, o, rec, release(keycode.B))
	assertSequence(t, rec.keyCodes(t), []message.KeyCode{release(keycode.C)})
}

func TestKeyOverridePassesNonKeyMessages(t *testing.T) {
	o := NewKeyOverride(nil)
	rec := &recorder{}

	send(t, o, rec, message.LayerState{Active: 2})

	if len(rec.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(rec.msgs))
	}
	if _, ok := rec.msgs[0].(message.LayerState); !ok {
		t.Errorf("expected LayerState to pass through, got %T", rec.msgs[0])
	}
}

func TestLuaOverrideRemap(t *testing.T) {
	script := `
function override(kind, code)
  if code == "A" then
    return {{kind = kind, code = "B"}}
  end
  return nil
end
`
	o, err := NewLua(script, logging.Nop())
	if err != nil {
		t.Fatalf("NewLua() failed: %v", err)
	}
	defer o.Close()

	rec := &recorder{}
	send(t, o, rec, press(keycode.A), press(keycode.C))

	got := rec.keyCodes(t)
	want := []message.KeyCode{press(keycode.B), press(keycode.C)}
	assertSequence(t, got, want)
}

func TestLuaOverrideSuppress(t *testing.T) {
	script := `
function override(kind, code)
  if code == "ESC" then
    return {}
  end
  return nil
end
`
	o, err := NewLua(script, logging.Nop())
	if err != nil {
		t.Fatalf("NewLua() failed: %v", err)
	}
	defer o.Close()

	rec := &recorder{}
	send(t, o, rec, press(keycode.Escape), press(keycode.A))

	got := rec.keyCodes(t)
	assertSequence(t, got, []message.KeyCode{press(keycode.A)})
}

func TestLuaOverrideScriptErrorPassesThrough(t *testing.T) {
	script := `
function override(kind, code)
  error("boom")
end
`
	o, err := NewLua(script, logging.Nop())
	if err != nil {
		t.Fatalf("NewLua() failed: %v", err)
	}
	defer o.Close()

	rec := &recorder{}
	send(t, o, rec, press(keycode.A))

	assertSequence(t, rec.keyCodes(t), []message.KeyCode{press(keycode.A)})
}

func TestLuaOverrideRequiresFunction(t *testing.T) {
	if _, err := NewLua(`x = 1`, logging.Nop()); err == nil {
		t.Error("expected error for script without override function")
	}
}

func assertSequence(t *testing.T, got, want []message.KeyCode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
}
