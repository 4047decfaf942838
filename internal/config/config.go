// Package config loads the firmware configuration from TOML and compiles
// it into the runtime structures the firmware wires together: the scanner
// geometry, the debounce policy, the per-key action layout, the conditional
// layer rules and the override chain.
//
// Keymaps are written as QMK-style action expressions ("A", "MO(1)",
// "HT(LSHIFT, A, 200ms)") in per-layer key lists. Compilation happens once
// at load time; the running firmware never re-parses expressions.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/keyflow/internal/debounce"
)

// Scanner type names accepted in [scanner].
const (
	ScannerDirect = "direct"
	ScannerMatrix = "matrix"
)

// MaxKeys is the largest keymap a layer may define. Key indices travel in a
// single byte on the internal channel, so anything past 256 would wrap.
const MaxKeys = 256

// Duration is a time.Duration that unmarshals from TOML strings such as
// "5ms" or "1s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root of the TOML schema.
type Config struct {
	Keyboard          KeyboardConfig     `toml:"keyboard"`
	Scanner           ScannerConfig      `toml:"scanner"`
	Debounce          DebounceConfig     `toml:"debounce"`
	Layers            []LayerConfig      `toml:"layers"`
	ConditionalLayers []ConditionalLayer `toml:"conditional_layers"`
	Combos            []ComboConfig      `toml:"combos"`
	Override          OverrideConfig     `toml:"override"`
}

// KeyboardConfig holds board identity and logging settings.
type KeyboardConfig struct {
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
}

// ScannerConfig describes the switch topology. Physical pins are supplied
// by platform bring-up; the transform here maps scanned positions to key
// indices, with -1 marking dead positions.
type ScannerConfig struct {
	// Type is "direct" or "matrix".
	Type string `toml:"type"`

	// Transform has one row per matrix row pin, or exactly one row for a
	// direct scanner (one slot per pin).
	Transform [][]int `toml:"transform"`

	// SettleInterval is the matrix strobe period while any key is down.
	SettleInterval Duration `toml:"settle_interval"`
}

// DebounceSpec is one edge's debounce policy.
type DebounceSpec struct {
	Mode     string   `toml:"mode"`
	Duration Duration `toml:"duration"`
}

// DebounceConfig holds the per-edge debounce policies.
type DebounceConfig struct {
	Press   DebounceSpec `toml:"press"`
	Release DebounceSpec `toml:"release"`
}

// LayerConfig is one keymap layer. Layer N is the Nth entry of [[layers]];
// layer 0 is the base layer.
type LayerConfig struct {
	Name string   `toml:"name"`
	Keys []string `toml:"keys"`
}

// ConditionalLayer auto-activates Then while every layer in If is active.
type ConditionalLayer struct {
	If   []int `toml:"if"`
	Then int   `toml:"then"`
}

// ComboConfig rewrites a chord of output keys into a single key.
type ComboConfig struct {
	Keys []string `toml:"keys"`
	Send string   `toml:"send"`
	Keep bool     `toml:"keep"`
}

// OverrideConfig configures the scripted override stage.
type OverrideConfig struct {
	// Script is a path to a Lua file defining an override(kind, code)
	// function, empty to disable the stage.
	Script string `toml:"script"`
}

// Default returns a configuration with the baseline settings applied.
func Default() *Config {
	return &Config{
		Keyboard: KeyboardConfig{
			Name:     "keyflow",
			LogLevel: "info",
		},
		Scanner: ScannerConfig{
			Type:           ScannerDirect,
			SettleInterval: Duration(time.Millisecond),
		},
	}
}

// Load reads and compile-checks a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse unmarshals and validates TOML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: "<data>", Message: err.Error(), Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structural invariants that do not require expression
// compilation: scanner geometry, layer shape and layer references.
func (c *Config) Validate() error {
	switch c.Scanner.Type {
	case ScannerDirect, ScannerMatrix:
	default:
		return fmt.Errorf("%w: %q", ErrBadScannerType, c.Scanner.Type)
	}

	if len(c.Scanner.Transform) == 0 {
		return fmt.Errorf("%w: empty table", ErrBadTransform)
	}
	cols := len(c.Scanner.Transform[0])
	for i, row := range c.Scanner.Transform {
		if len(row) != cols {
			return fmt.Errorf("%w: row %d has %d entries, want %d", ErrBadTransform, i, len(row), cols)
		}
	}
	if c.Scanner.Type == ScannerDirect && len(c.Scanner.Transform) != 1 {
		return fmt.Errorf("%w: direct scanner takes exactly one transform row", ErrBadTransform)
	}

	if len(c.Layers) == 0 {
		return ErrNoLayers
	}
	numKeys := len(c.Layers[0].Keys)
	if numKeys > MaxKeys {
		return fmt.Errorf("%w: %d keys, max %d", ErrTooManyKeys, numKeys, MaxKeys)
	}
	for i, l := range c.Layers {
		if len(l.Keys) != numKeys {
			return fmt.Errorf("%w: layer %d has %d keys, want %d", ErrRaggedLayer, i, len(l.Keys), numKeys)
		}
	}

	for r, row := range c.Scanner.Transform {
		for cIdx, key := range row {
			if key < -1 || key >= numKeys {
				return fmt.Errorf("%w: position (%d,%d) maps to key %d, keymap has %d keys",
					ErrBadTransform, r, cIdx, key, numKeys)
			}
		}
	}

	for i, cl := range c.ConditionalLayers {
		if cl.Then < 0 || cl.Then >= len(c.Layers) {
			return fmt.Errorf("%w: conditional_layers[%d].then = %d", ErrLayerOutOfRange, i, cl.Then)
		}
		for _, req := range cl.If {
			if req < 0 || req >= len(c.Layers) {
				return fmt.Errorf("%w: conditional_layers[%d].if references %d", ErrLayerOutOfRange, i, req)
			}
		}
	}

	for i, combo := range c.Combos {
		if len(combo.Keys) < 2 {
			return fmt.Errorf("%w: combos[%d] needs at least two keys", ErrBadCombo, i)
		}
		if combo.Send == "" {
			return fmt.Errorf("%w: combos[%d] has no send key", ErrBadCombo, i)
		}
	}

	return nil
}

// NumKeys returns the keymap's key count.
func (c *Config) NumKeys() int {
	if len(c.Layers) == 0 {
		return 0
	}
	return len(c.Layers[0].Keys)
}

// BuildDebounce compiles the debounce section.
func (c *Config) BuildDebounce() (debounce.Config, error) {
	press, err := c.Debounce.Press.build()
	if err != nil {
		return debounce.Config{}, fmt.Errorf("debounce.press: %w", err)
	}
	release, err := c.Debounce.Release.build()
	if err != nil {
		return debounce.Config{}, fmt.Errorf("debounce.release: %w", err)
	}
	return debounce.Config{Press: press, Release: release}, nil
}

func (s DebounceSpec) build() (debounce.Spec, error) {
	var mode debounce.Mode
	switch s.Mode {
	case "", "none":
		mode = debounce.ModeNone
	case "defer":
		mode = debounce.ModeDefer
	case "eager":
		mode = debounce.ModeEager
	default:
		return debounce.Spec{}, fmt.Errorf("%w: %q", ErrBadDebounceMode, s.Mode)
	}
	return debounce.Spec{Mode: mode, Duration: s.Duration.Std()}, nil
}
