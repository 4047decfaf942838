package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/keyflow/internal/action"
	"github.com/dshills/keyflow/internal/keycode"
	"github.com/dshills/keyflow/internal/layer"
)

// Transparent is the key expression that defers to the layer below. It is
// resolved during layout compilation, so ParseAction rejects it.
const Transparent = "TRNS"

// ParseAction compiles one action expression.
//
// Grammar:
//
//	NONE                   no-op
//	<key>                  emit a HID key, e.g. "A", "LSHIFT", "ENTER"
//	MO(n)                  hold layer n while pressed
//	TG(n) / TG(expr)       toggle layer n, or toggle any inner action
//	HT(hold, tap, term)    hold-tap with the given tapping term
//	SK(inner, timeout, flags...)
//	                       sticky; flags: "lazy", "ignore_mods"
//
// Arguments of composite forms are themselves expressions, so nesting such
// as HT(MO(1), A, 200ms) works.
func ParseAction(expr string) (action.Action, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "NONE" {
		return action.NoOp{}, nil
	}
	if expr == Transparent {
		return nil, fmt.Errorf("%w: %s outside a layer keymap", ErrBadExpression, Transparent)
	}

	name, args, ok, err := splitCall(expr)
	if err != nil {
		return nil, err
	}
	if !ok {
		code, err := keycode.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadExpression, expr)
		}
		return action.KeyCode{Code: code}, nil
	}

	switch name {
	case "MO":
		return parseMomentary(expr, args)
	case "TG":
		return parseToggle(expr, args)
	case "HT":
		return parseHoldTap(expr, args)
	case "SK":
		return parseSticky(expr, args)
	default:
		return nil, fmt.Errorf("%w: unknown form %q in %q", ErrBadExpression, name, expr)
	}
}

func parseMomentary(expr string, args []string) (action.Action, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: MO takes one argument in %q", ErrBadExpression, expr)
	}
	id, err := parseLayerID(args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadExpression, expr)
	}
	return &action.Layer{Layer: id}, nil
}

func parseToggle(expr string, args []string) (action.Action, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: TG takes one argument in %q", ErrBadExpression, expr)
	}
	// A bare integer toggles a layer; anything else toggles the inner
	// action.
	if id, err := parseLayerID(args[0]); err == nil {
		return &action.Toggle{Inner: &action.Layer{Layer: id}}, nil
	}
	inner, err := ParseAction(args[0])
	if err != nil {
		return nil, err
	}
	return &action.Toggle{Inner: inner}, nil
}

func parseHoldTap(expr string, args []string) (action.Action, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("%w: HT takes hold, tap, term in %q", ErrBadExpression, expr)
	}
	hold, err := ParseAction(args[0])
	if err != nil {
		return nil, err
	}
	tap, err := ParseAction(args[1])
	if err != nil {
		return nil, err
	}
	term, err := time.ParseDuration(strings.TrimSpace(args[2]))
	if err != nil || term <= 0 {
		return nil, fmt.Errorf("%w: bad tapping term %q in %q", ErrBadExpression, args[2], expr)
	}
	return &action.HoldTap{Hold: hold, Tap: tap, TappingTerm: term}, nil
}

func parseSticky(expr string, args []string) (action.Action, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: SK takes inner, timeout in %q", ErrBadExpression, expr)
	}
	inner, err := ParseAction(args[0])
	if err != nil {
		return nil, err
	}
	timeout, err := time.ParseDuration(strings.TrimSpace(args[1]))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("%w: bad sticky timeout %q in %q", ErrBadExpression, args[1], expr)
	}
	st := &action.Sticky{Inner: inner, Timeout: timeout}
	for _, flag := range args[2:] {
		switch strings.TrimSpace(flag) {
		case "lazy":
			st.Lazy = true
		case "ignore_mods":
			st.IgnoreModifiers = true
		default:
			return nil, fmt.Errorf("%w: unknown sticky flag %q in %q", ErrBadExpression, flag, expr)
		}
	}
	return st, nil
}

func parseLayerID(s string) (layer.ID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("layer %d out of range", n)
	}
	return layer.ID(n), nil
}

// splitCall recognizes NAME(args) forms and splits the argument list at
// top-level commas, so nested composites keep their own arguments intact.
func splitCall(expr string) (name string, args []string, ok bool, err error) {
	open := strings.IndexByte(expr, '(')
	if open < 0 {
		return "", nil, false, nil
	}
	if !strings.HasSuffix(expr, ")") {
		return "", nil, false, fmt.Errorf("%w: unbalanced parentheses in %q", ErrBadExpression, expr)
	}

	name = strings.TrimSpace(expr[:open])
	body := expr[open+1 : len(expr)-1]

	depth := 0
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", nil, false, fmt.Errorf("%w: unbalanced parentheses in %q", ErrBadExpression, expr)
			}
		case ',':
			if depth == 0 {
				args = append(args, body[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return "", nil, false, fmt.Errorf("%w: unbalanced parentheses in %q", ErrBadExpression, expr)
	}
	args = append(args, body[start:])
	return name, args, true, nil
}
