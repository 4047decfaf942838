package override

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keyflow/internal/keycode"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

// Lua is an override stage scripted in Lua, so users can write remaps and
// combos without recompiling the firmware. The script must define a global
// function:
//
//	function override(kind, code)
//	  -- kind is "press" or "release", code is the key name, e.g. "A"
//	  return nil                                   -- pass through unchanged
//	  return {}                                    -- suppress the message
//	  return {{kind="press", code="B"}, ...}       -- replace with these
//	end
//
// Script errors are logged and the original message passes through
// unchanged; a broken script never drops input.
type Lua struct {
	mu    sync.Mutex
	state *lua.LState
	log   *logging.Logger
}

// NewLua compiles script and verifies it defines an override function.
func NewLua(script string, log *logging.Logger) (*Lua, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("loading override script: %w", err)
	}
	fn := L.GetGlobal("override")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("override script must define a global 'override' function, got %s", fn.Type())
	}
	return &Lua{state: L, log: log.WithComponent("override.lua")}, nil
}

// Close releases the Lua state.
func (o *Lua) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Close()
}

// OverrideMessage implements Override. Only key-code messages are offered to
// the script; everything else passes straight through.
func (o *Lua) OverrideMessage(m message.Message, next Sender) error {
	kc, ok := m.(message.KeyCode)
	if !ok {
		return next.Send(m)
	}

	out, handled := o.call(kc)
	if !handled {
		return next.Send(m)
	}
	for _, r := range out {
		if err := next.Send(r); err != nil {
			return err
		}
	}
	return nil
}

// call runs the script. handled is false when the script passed (returned
// nil) or failed, in which case the caller forwards the original message.
func (o *Lua) call(kc message.KeyCode) (out []message.Message, handled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	L := o.state
	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("override"),
		NRet:    1,
		Protect: true,
	}, lua.LString(kc.Kind.String()), lua.LString(kc.Code.String())); err != nil {
		o.log.Error("override script failed: %v", err)
		return nil, false
	}

	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return nil, false
	case *lua.LTable:
		msgs, err := o.decodeResults(v)
		if err != nil {
			o.log.Error("override script returned invalid result: %v", err)
			return nil, false
		}
		return msgs, true
	default:
		o.log.Error("override script returned %s, want table or nil", ret.Type())
		return nil, false
	}
}

func (o *Lua) decodeResults(t *lua.LTable) ([]message.Message, error) {
	var msgs []message.Message
	var decodeErr error

	t.ForEach(func(_, value lua.LValue) {
		if decodeErr != nil {
			return
		}
		entry, ok := value.(*lua.LTable)
		if !ok {
			decodeErr = fmt.Errorf("result entries must be tables, got %s", value.Type())
			return
		}

		kindStr := lua.LVAsString(entry.RawGetString("kind"))
		codeStr := lua.LVAsString(entry.RawGetString("code"))

		var kind message.EventKind
		switch kindStr {
		case "press":
			kind = message.KindPress
		case "release":
			kind = message.KindRelease
		default:
			decodeErr = fmt.Errorf("entry kind must be press or release, got %q", kindStr)
			return
		}

		code, err := keycode.Parse(codeStr)
		if err != nil {
			decodeErr = err
			return
		}
		msgs = append(msgs, message.KeyCode{Kind: kind, Code: code})
	})

	return msgs, decodeErr
}
