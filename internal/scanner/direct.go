package scanner

import (
	"context"
	"sync"

	"github.com/dshills/keyflow/internal/debounce"
	"github.com/dshills/keyflow/internal/hal"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

// DirectPinsConfig configures a one-pin-per-key scanner.
type DirectPinsConfig struct {
	Pins []hal.InputPin
	// Transform maps pin slot to key index; Unmapped slots are scanned
	// but emit nothing. Must be the same length as Pins.
	Transform []int
	Debounce  debounce.Config
}

// DirectPins scans one input pin per logical key, with an independent
// debounce loop per pin.
type DirectPins struct {
	cfg  DirectPinsConfig
	clk  hal.Clock
	sink EventSink
	log  *logging.Logger
}

// NewDirectPins creates the scanner. The transform table length must match
// the pin count.
func NewDirectPins(cfg DirectPinsConfig, clk hal.Clock, sink EventSink, log *logging.Logger) *DirectPins {
	return &DirectPins{
		cfg:  cfg,
		clk:  clk,
		sink: sink,
		log:  log.WithComponent("scanner.direct"),
	}
}

// Run scans until ctx ends, one concurrent loop per pin.
func (s *DirectPins) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i, pin := range s.cfg.Pins {
		key := Unmapped
		if i < len(s.cfg.Transform) {
			key = s.cfg.Transform[i]
		}
		wg.Add(1)
		go func(slot int, pin hal.InputPin, key int) {
			defer wg.Done()
			s.scanPin(ctx, slot, pin, key)
		}(i, pin, key)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *DirectPins) scanPin(ctx context.Context, slot int, pin hal.InputPin, key int) {
	deb := debounce.New(pin, s.clk, s.cfg.Debounce)
	for {
		active, extra, err := deb.WaitForChange(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient read failure: skip this iteration, keep scanning.
			s.log.Warn("pin %d read failed: %v", slot, err)
			continue
		}

		if key != Unmapped {
			kind := message.KindRelease
			if active {
				kind = message.KindPress
			}
			if err := s.sink.Send(ctx, message.KeyEvent{Kind: kind, Key: uint8(key)}); err != nil {
				s.log.Error("pin %d event send failed: %v", slot, err)
			}
		}

		// Honor the debouncer's extra hold before re-arming this pin.
		if extra > 0 {
			if err := s.clk.Sleep(ctx, extra); err != nil {
				return
			}
		}
	}
}
