package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keyflow/internal/config"
	"github.com/dshills/keyflow/internal/firmware"
	"github.com/dshills/keyflow/internal/hal"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

// bindRunes assigns one terminal key per switch position, in reading order.
const bindRunes = "1234567890qwertyuiopasdfghjklzxcvbnm"

const outLogLines = 12

// switchBoard adapts either scanner topology to position-indexed toggling.
type switchBoard struct {
	positions int
	keyFor    []int // position -> key index, -1 for unmapped
	toggle    func(pos int, closed bool)
}

func newSwitchBoard(cfg *config.Config, opts *firmware.Options) *switchBoard {
	t := cfg.Scanner.Transform
	if cfg.Scanner.Type == config.ScannerDirect {
		pins := make([]*hal.SimPin, len(t[0]))
		inputs := make([]hal.InputPin, len(t[0]))
		for i := range pins {
			pins[i] = hal.NewSimPin()
			inputs[i] = pins[i]
		}
		opts.Pins = inputs
		return &switchBoard{
			positions: len(t[0]),
			keyFor:    t[0],
			toggle:    func(pos int, closed bool) { pins[pos].Set(closed) },
		}
	}

	rows, cols := len(t), len(t[0])
	grid := hal.NewSimMatrix(rows, cols)
	opts.RowPins = grid.RowPins()
	opts.ColPins = grid.ColPins()
	keyFor := make([]int, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			keyFor[r*cols+c] = t[r][c]
		}
	}
	return &switchBoard{
		positions: rows * cols,
		keyFor:    keyFor,
		toggle:    func(pos int, closed bool) { grid.SetSwitch(pos/cols, pos%cols, closed) },
	}
}

type simulator struct {
	screen tcell.Screen
	fw     *firmware.Firmware
	cfg    *config.Config
	board  *switchBoard

	mu     sync.Mutex
	closed []bool
	outLog []string
}

// runSimulator owns the terminal until the user quits with ESC or Ctrl-C.
// Each bound terminal key toggles its simulated switch, since terminals
// deliver no key-up events.
func runSimulator(ctx context.Context, cfg *config.Config, configPath string, watch bool, log *logging.Logger) error {
	opts := firmware.Options{
		Config:      cfg,
		ConfigPath:  configPath,
		WatchConfig: watch && configPath != "",
		Logger:      log,
	}
	board := newSwitchBoard(cfg, &opts)
	if len(bindRunes) < board.positions {
		return fmt.Errorf("keymap has %d positions, simulator binds at most %d", board.positions, len(bindRunes))
	}

	fw, err := firmware.New(opts)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating terminal screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing terminal screen: %w", err)
	}
	defer screen.Fini()

	sim := &simulator{
		screen: screen,
		fw:     fw,
		cfg:    cfg,
		board:  board,
		closed: make([]bool, board.positions),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fwDone := make(chan error, 1)
	go func() { fwDone <- fw.Run(ctx) }()
	go sim.observeOutbound(ctx)
	go func() {
		// Unblock PollEvent when the context ends from outside.
		<-ctx.Done()
		screen.PostEventWait(tcell.NewEventInterrupt(nil))
	}()

	sim.draw()
	for {
		switch ev := screen.PollEvent().(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				cancel()
				return <-fwDone
			}
			if ev.Key() == tcell.KeyRune {
				sim.toggleRune(ev.Rune())
			}
			sim.draw()
		case *tcell.EventResize:
			screen.Sync()
			sim.draw()
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return <-fwDone
			}
			sim.draw()
		}
	}
}

func (s *simulator) toggleRune(r rune) {
	for pos := 0; pos < s.board.positions; pos++ {
		if rune(bindRunes[pos]) != r {
			continue
		}
		s.mu.Lock()
		s.closed[pos] = !s.closed[pos]
		closed := s.closed[pos]
		s.mu.Unlock()
		s.board.toggle(pos, closed)
		return
	}
}

// observeOutbound mirrors the outbound channel into the on-screen log.
func (s *simulator) observeOutbound(ctx context.Context) {
	sub := s.fw.External().Subscribe()
	defer sub.Close()

	for {
		m, err := sub.Next(ctx)
		if err != nil {
			return
		}

		var line string
		switch m := m.(type) {
		case message.KeyCode:
			line = fmt.Sprintf("%-7s %s", m.Kind, m.Code)
		case message.LayerState:
			line = fmt.Sprintf("layer   %d", m.Active)
		default:
			line = fmt.Sprintf("%v", m)
		}

		s.mu.Lock()
		s.outLog = append(s.outLog, line)
		if len(s.outLog) > outLogLines {
			s.outLog = s.outLog[len(s.outLog)-outLogLines:]
		}
		s.mu.Unlock()

		s.screen.PostEventWait(tcell.NewEventInterrupt(nil))
	}
}

func (s *simulator) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.screen.Clear()
	style := tcell.StyleDefault
	bold := style.Bold(true)

	s.drawText(0, 0, bold, fmt.Sprintf("keyflow %s  session %s", s.cfg.Keyboard.Name, s.fw.Session()))
	s.drawText(0, 1, style, fmt.Sprintf("active layer: %d    ESC quits, bound keys toggle switches", s.fw.Layers().Active()))

	s.drawText(0, 3, bold, "switches")
	for pos := 0; pos < s.board.positions; pos++ {
		label := "--"
		if key := s.board.keyFor[pos]; key >= 0 {
			label = fmt.Sprintf("k%d", key)
		}
		state := "open"
		st := style
		if s.closed[pos] {
			state = "closed"
			st = bold
		}
		s.drawText(0, 4+pos, st, fmt.Sprintf("[%c] %-4s %s", bindRunes[pos], label, state))
	}

	top := 4 + s.board.positions + 1
	s.drawText(0, top, bold, "outbound")
	for i, line := range s.outLog {
		s.drawText(0, top+1+i, style, line)
	}

	s.screen.Show()
}

func (s *simulator) drawText(x, y int, style tcell.Style, text string) {
	for i, r := range text {
		s.screen.SetContent(x+i, y, r, nil, style)
	}
}
