// Package firmware is the composition root: it compiles the configuration
// and wires the scanner, channels, override chain, layer manager and action
// dispatcher into a runnable keyboard core.
package firmware

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/keyflow/internal/action"
	"github.com/dshills/keyflow/internal/bus"
	"github.com/dshills/keyflow/internal/channel"
	"github.com/dshills/keyflow/internal/config"
	"github.com/dshills/keyflow/internal/hal"
	"github.com/dshills/keyflow/internal/layer"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
	"github.com/dshills/keyflow/internal/override"
	"github.com/dshills/keyflow/internal/scanner"
)

// runner is any long-running component driven by Run.
type runner interface {
	Run(ctx context.Context) error
}

// Options configures the firmware.
type Options struct {
	// ConfigPath is the configuration file to load. Ignored when Config
	// is set.
	ConfigPath string

	// Config supplies an already parsed configuration.
	Config *config.Config

	// Pins are the key inputs for a direct scanner, one per transform
	// slot.
	Pins []hal.InputPin

	// RowPins and ColPins are the matrix scanner's strobe outputs and
	// sense inputs.
	RowPins []hal.OutputPin
	ColPins []hal.InputPin

	// Clock defaults to the system clock.
	Clock hal.Clock

	// InternalTransport mirrors internal channel frames to the other
	// half of a split keyboard. Defaults to a no-op.
	InternalTransport channel.Transport

	// ExternalTransport carries outbound HID traffic to the host.
	// Defaults to a no-op.
	ExternalTransport channel.Transport

	// Logger overrides the logger built from the config's log_level.
	Logger *logging.Logger

	// WatchConfig reloads the keymap when the config file changes.
	// Scanner geometry, debounce and override changes still require a
	// restart.
	WatchConfig bool
}

// Firmware owns every wired component and drives them as one unit.
type Firmware struct {
	opts    Options
	cfg     *config.Config
	log     *logging.Logger
	session uuid.UUID

	internal   *channel.Internal
	external   *channel.External
	layers     *layer.Manager
	scanner    runner
	dispatcher *action.Dispatcher
	keys       *channel.Receiver[message.KeyEvent, *message.KeyEvent]
	watcher    *config.Watcher

	running atomic.Bool
}

// New builds the firmware in dependency order.
func New(opts Options) (*Firmware, error) {
	f := &Firmware{
		opts:    opts,
		session: uuid.New(),
	}
	if err := f.bootstrap(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Firmware) bootstrap() error {
	// 1. Configuration
	cfg := f.opts.Config
	if cfg == nil {
		if f.opts.ConfigPath == "" {
			return ErrNoConfig
		}
		loaded, err := config.Load(f.opts.ConfigPath)
		if err != nil {
			return &InitError{Component: "config", Err: err}
		}
		cfg = loaded
	}
	f.cfg = cfg

	// 2. Logging
	f.log = f.opts.Logger
	if f.log == nil {
		f.log = logging.New(logging.Config{
			Level:  logging.ParseLevel(cfg.Keyboard.LogLevel),
			Output: os.Stderr,
			Prefix: cfg.Keyboard.Name,
		})
	}

	clk := f.opts.Clock
	if clk == nil {
		clk = hal.System()
	}

	// 3. Internal channel
	internalTransport := f.opts.InternalTransport
	if internalTransport == nil {
		internalTransport = channel.NopTransport{}
	}
	f.internal = channel.NewInternal(bus.New[[]byte](0), internalTransport, f.log)

	// 4. Override chain and external channel
	combos, err := cfg.BuildCombos()
	if err != nil {
		return &InitError{Component: "combos", Err: err}
	}
	chain := []override.Override{}
	if len(combos) > 0 {
		chain = append(chain, override.NewKeyOverride(combos))
	}
	if cfg.Override.Script != "" {
		script, err := os.ReadFile(cfg.Override.Script)
		if err != nil {
			return &InitError{Component: "override script", Err: err}
		}
		lua, err := override.NewLua(string(script), f.log)
		if err != nil {
			return &InitError{Component: "override script", Err: err}
		}
		chain = append(chain, lua)
	}
	externalTransport := f.opts.ExternalTransport
	if externalTransport == nil {
		externalTransport = channel.NopTransport{}
	}
	f.external = channel.NewExternal(chain, bus.New[message.Message](0), externalTransport, f.log)

	// 5. Layer manager, announcing active-layer changes internally
	f.layers = layer.NewManager(
		layer.WithRules(cfg.BuildLayerRules()),
		layer.WithChangeFunc(func(active layer.ID) {
			err := f.internal.Send(context.Background(), message.LayerState{Active: uint8(active)})
			if err != nil {
				f.log.Warn("layer state send failed: %v", err)
			}
		}),
	)

	// 6. Layout and dispatcher
	layout, err := cfg.BuildLayout()
	if err != nil {
		return &InitError{Component: "layout", Err: err}
	}
	env := &action.Env{
		Internal: f.internal,
		External: f.external,
		Layers:   f.layers,
		Pending:  action.NewPending(),
		Clock:    clk,
		Log:      f.log,
	}
	f.keys = channel.NewReceiver[message.KeyEvent](f.internal)
	f.dispatcher = action.NewDispatcher(layout, f.keys, env, f.log)

	// 7. Scanner
	deb, err := cfg.BuildDebounce()
	if err != nil {
		return &InitError{Component: "debounce", Err: err}
	}
	switch cfg.Scanner.Type {
	case config.ScannerDirect:
		transform := cfg.Scanner.Transform[0]
		if len(f.opts.Pins) != len(transform) {
			return &InitError{Component: "scanner", Err: ErrPinMismatch}
		}
		f.scanner = scanner.NewDirectPins(scanner.DirectPinsConfig{
			Pins:      f.opts.Pins,
			Transform: transform,
			Debounce:  deb,
		}, clk, f.internal, f.log)
	case config.ScannerMatrix:
		if len(f.opts.RowPins) != len(cfg.Scanner.Transform) ||
			len(f.opts.ColPins) != len(cfg.Scanner.Transform[0]) {
			return &InitError{Component: "scanner", Err: ErrPinMismatch}
		}
		f.scanner = scanner.NewMatrix(scanner.MatrixConfig{
			Rows:           f.opts.RowPins,
			Cols:           f.opts.ColPins,
			Transform:      cfg.Scanner.Transform,
			Debounce:       deb,
			SettleInterval: cfg.Scanner.SettleInterval.Std(),
		}, clk, f.internal, f.log)
	}

	return nil
}

// Session returns the firmware instance's session id.
func (f *Firmware) Session() uuid.UUID {
	return f.session
}

// Internal returns the internal channel, e.g. for injecting frames received
// from the other half of a split keyboard.
func (f *Firmware) Internal() *channel.Internal {
	return f.internal
}

// External returns the outbound channel; subscribe to it to observe what
// goes to the host.
func (f *Firmware) External() *channel.External {
	return f.external
}

// Layers returns the layer manager.
func (f *Firmware) Layers() *layer.Manager {
	return f.layers
}

// Run starts the scanner and dispatcher and blocks until ctx is cancelled
// or a component fails. In-flight action handlers finish before it returns.
func (f *Firmware) Run(ctx context.Context) error {
	if !f.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer f.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if f.opts.WatchConfig && f.opts.ConfigPath != "" {
		w, err := config.Watch(f.opts.ConfigPath, f.applyReload, f.log)
		if err != nil {
			return &InitError{Component: "config watcher", Err: err}
		}
		f.watcher = w
		defer func() { _ = f.watcher.Close() }()
	}

	f.log.Info("session %s starting: %s, %d keys, %d layers",
		f.session, f.cfg.Scanner.Type, f.cfg.NumKeys(), len(f.cfg.Layers))

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	for _, r := range []runner{f.scanner, f.dispatcher} {
		wg.Add(1)
		go func(r runner) {
			defer wg.Done()
			errCh <- r.Run(ctx)
		}(r)
	}

	err := <-errCh
	cancel()
	f.keys.Close()
	wg.Wait()

	f.log.Info("session %s stopped", f.session)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyReload swaps in a freshly compiled keymap. Changes to anything the
// running components were built from (scanner geometry, debounce, override
// chain) are logged and deferred to the next restart.
func (f *Firmware) applyReload(cfg *config.Config) {
	layout, err := cfg.BuildLayout()
	if err != nil {
		f.log.Warn("reloaded keymap rejected: %v", err)
		return
	}
	if cfg.NumKeys() != f.cfg.NumKeys() {
		f.log.Warn("reloaded keymap has %d keys, running with %d; restart to apply", cfg.NumKeys(), f.cfg.NumKeys())
		return
	}
	f.dispatcher.SwapLayout(layout)
	f.log.Info("keymap reloaded: %d layers", len(cfg.Layers))
}
