package config

import (
	"fmt"
	"strings"

	"github.com/dshills/keyflow/internal/action"
	"github.com/dshills/keyflow/internal/keycode"
	"github.com/dshills/keyflow/internal/layer"
	"github.com/dshills/keyflow/internal/override"
)

// BuildLayout compiles the layer keymaps into the per-key action table.
//
// With a single layer each key gets its expression's action directly. With
// several layers each key becomes a per-layer dispatch node over the
// actions of every layer, with TRNS entries resolved downward to the
// nearest lower layer that defines the key.
func (c *Config) BuildLayout() (*action.Layout, error) {
	if len(c.Layers) == 0 {
		return nil, ErrNoLayers
	}
	numKeys := c.NumKeys()

	// Compile every non-transparent expression first so errors name the
	// layer and key they came from.
	compiled := make([][]action.Action, len(c.Layers))
	for li, l := range c.Layers {
		compiled[li] = make([]action.Action, numKeys)
		for ki, expr := range l.Keys {
			if isTransparent(expr) {
				if li == 0 {
					return nil, fmt.Errorf("%w: base layer key %d is %s", ErrBadExpression, ki, Transparent)
				}
				continue
			}
			a, err := ParseAction(expr)
			if err != nil {
				return nil, fmt.Errorf("layer %d key %d: %w", li, ki, err)
			}
			compiled[li][ki] = a
		}
	}

	// Resolve transparency downward.
	for li := 1; li < len(compiled); li++ {
		for ki := range compiled[li] {
			if compiled[li][ki] == nil {
				compiled[li][ki] = compiled[li-1][ki]
			}
		}
	}

	slots := make([]action.Action, numKeys)
	if len(c.Layers) == 1 {
		copy(slots, compiled[0])
	} else {
		for ki := 0; ki < numKeys; ki++ {
			entries := make([]action.PerLayerEntry, len(c.Layers))
			for li := range c.Layers {
				entries[li] = action.PerLayerEntry{
					Layer:  layer.ID(li),
					Action: compiled[li][ki],
				}
			}
			slots[ki] = &action.PerLayer{Entries: entries}
		}
	}

	return action.NewLayout(slots), nil
}

// BuildLayerRules compiles [[conditional_layers]] into manager rules.
func (c *Config) BuildLayerRules() []layer.Rule {
	rules := make([]layer.Rule, 0, len(c.ConditionalLayers))
	for _, cl := range c.ConditionalLayers {
		required := make([]layer.ID, len(cl.If))
		for i, id := range cl.If {
			required[i] = layer.ID(id)
		}
		rules = append(rules, layer.Rule{Required: required, Then: layer.ID(cl.Then)})
	}
	return rules
}

// BuildCombos compiles [[combos]] into override rules.
func (c *Config) BuildCombos() ([]override.ComboRule, error) {
	rules := make([]override.ComboRule, 0, len(c.Combos))
	for i, combo := range c.Combos {
		required := make([]keycode.Code, len(combo.Keys))
		for k, name := range combo.Keys {
			code, err := keycode.Parse(name)
			if err != nil {
				return nil, fmt.Errorf("%w: combos[%d] key %q", ErrBadCombo, i, name)
			}
			required[k] = code
		}
		then, err := keycode.Parse(combo.Send)
		if err != nil {
			return nil, fmt.Errorf("%w: combos[%d] send %q", ErrBadCombo, i, combo.Send)
		}
		rules = append(rules, override.ComboRule{Required: required, Then: then, Keep: combo.Keep})
	}
	return rules, nil
}

func isTransparent(expr string) bool {
	return strings.TrimSpace(expr) == Transparent
}
