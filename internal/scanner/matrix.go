package scanner

import (
	"context"
	"time"

	"github.com/dshills/keyflow/internal/debounce"
	"github.com/dshills/keyflow/internal/hal"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

// DefaultSettleInterval is the strobe period of the active settle loop.
const DefaultSettleInterval = time.Millisecond

// MatrixConfig configures a row/column multiplexed scanner.
type MatrixConfig struct {
	Rows []hal.OutputPin
	Cols []hal.InputPin
	// Transform maps [row][col] to a key index, Unmapped for dead cells.
	Transform [][]int
	Debounce  debounce.Config
	// SettleInterval is the pause between settle-loop passes. Defaults to
	// DefaultSettleInterval.
	SettleInterval time.Duration
}

// Matrix scans an R x C switch grid in two phases: an idle phase that
// drives every row and blocks until any column reports active (no
// busy-polling while the board is untouched), and a settle phase that
// strobes rows one at a time, samples all columns, and runs the per-cell
// debounce state machines until no cell is raw-active and none has a
// pending commit outstanding.
type Matrix struct {
	cfg  MatrixConfig
	clk  hal.Clock
	sink EventSink
	log  *logging.Logger

	cells [][]debounce.Cell
}

// NewMatrix creates the scanner.
func NewMatrix(cfg MatrixConfig, clk hal.Clock, sink EventSink, log *logging.Logger) *Matrix {
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = DefaultSettleInterval
	}
	cells := make([][]debounce.Cell, len(cfg.Rows))
	for r := range cells {
		cells[r] = make([]debounce.Cell, len(cfg.Cols))
		for c := range cells[r] {
			cells[r][c] = debounce.NewCell(cfg.Debounce)
		}
	}
	return &Matrix{
		cfg:   cfg,
		clk:   clk,
		sink:  sink,
		log:   log.WithComponent("scanner.matrix"),
		cells: cells,
	}
}

// Run scans until ctx ends.
func (s *Matrix) Run(ctx context.Context) error {
	for {
		if err := s.idleWait(ctx); err != nil {
			return err
		}
		if err := s.settle(ctx); err != nil {
			return err
		}
	}
}

// idleWait drives all rows active and blocks until any column input wakes.
func (s *Matrix) idleWait(ctx context.Context) error {
	for _, row := range s.cfg.Rows {
		if err := row.SetActive(); err != nil {
			s.log.Warn("row drive failed: %v", err)
		}
	}
	err := hal.WaitForAny(ctx, s.cfg.Cols)
	if err != nil && ctx.Err() == nil {
		// A column read failed; treat it as a wake-up and let the
		// settle loop's per-cell error handling sort it out.
		s.log.Warn("idle wait read failed: %v", err)
		return nil
	}
	return err
}

// settle strobes each row individually and feeds every mapped cell's raw
// sample through its debounce state machine, emitting events on commits.
// It returns to the idle wait once the whole grid is quiet.
func (s *Matrix) settle(ctx context.Context) error {
	for {
		anyRaw := false
		anyPending := false

		for r := range s.cfg.Rows {
			if err := s.strobeRow(r); err != nil {
				s.log.Warn("row %d strobe failed: %v", r, err)
				continue
			}

			now := s.clk.Now()
			for c, col := range s.cfg.Cols {
				raw, err := col.Active()
				if err != nil {
					// Skip this cell for this pass only.
					s.log.Warn("column %d read failed: %v", c, err)
					continue
				}

				cell := &s.cells[r][c]
				changed := cell.Update(now, raw)
				if changed {
					s.emit(ctx, r, c, cell.Active())
				}
				if raw {
					anyRaw = true
				}
				if !cell.Settled(now) {
					anyPending = true
				}
			}
		}

		if !anyRaw && !anyPending {
			return nil
		}
		if err := s.clk.Sleep(ctx, s.cfg.SettleInterval); err != nil {
			return err
		}
	}
}

// strobeRow drives exactly one row active.
func (s *Matrix) strobeRow(active int) error {
	for r, row := range s.cfg.Rows {
		var err error
		if r == active {
			err = row.SetActive()
		} else {
			err = row.SetInactive()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Matrix) emit(ctx context.Context, row, col int, active bool) {
	key := Unmapped
	if row < len(s.cfg.Transform) && col < len(s.cfg.Transform[row]) {
		key = s.cfg.Transform[row][col]
	}
	if key == Unmapped {
		return
	}

	kind := message.KindRelease
	if active {
		kind = message.KindPress
	}
	if err := s.sink.Send(ctx, message.KeyEvent{Kind: kind, Key: uint8(key)}); err != nil {
		s.log.Error("cell (%d,%d) event send failed: %v", row, col, err)
	}
}
