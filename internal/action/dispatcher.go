package action

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

// KeyEvents is the stream of debounced key transitions the dispatcher
// consumes, normally a typed receiver over the internal channel.
type KeyEvents interface {
	Next(ctx context.Context) (message.KeyEvent, error)
}

// Dispatcher resolves key events against the layout and runs the matching
// action handlers. Handlers for the same key index run strictly in arrival
// order, so a release can never overtake the press it pairs with; handlers
// for distinct keys run concurrently, so a slow action (a hold-tap waiting
// out its tapping term) never blocks other keys.
type Dispatcher struct {
	layout atomic.Pointer[Layout]
	keys   KeyEvents
	env    *Env
	log    *logging.Logger

	qmu    sync.Mutex
	queues map[uint8][]handlerTask
	wg     sync.WaitGroup
}

// handlerTask is one queued press or release handler invocation.
type handlerTask struct {
	kind message.EventKind
	act  Action
}

// NewDispatcher creates a dispatcher over the given layout and event stream.
func NewDispatcher(layout *Layout, keys KeyEvents, env *Env, log *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		keys:   keys,
		env:    env,
		log:    log.WithComponent("dispatcher"),
		queues: make(map[uint8][]handlerTask),
	}
	d.layout.Store(layout)
	return d
}

// SwapLayout replaces the layout, taking effect for subsequent presses.
// Keys held across the swap still release through the action their press
// resolved to, so press/release pairing survives a keymap reload.
func (d *Dispatcher) SwapLayout(layout *Layout) {
	d.layout.Store(layout)
}

// Run consumes key events until ctx ends, then waits for in-flight handlers.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.wg.Wait()

	// held pins each pressed key to the action its press resolved to, so
	// the release pairs up even if the layout was swapped in between.
	held := make(map[uint8]Action)

	for {
		ev, err := d.keys.Next(ctx)
		if err != nil {
			// Lag is absorbed by the receiver; anything surfacing here
			// ends the loop (context cancellation or a closed stream).
			return err
		}

		layout := d.layout.Load()

		var act Action
		switch ev.Kind {
		case message.KindPress:
			var ok bool
			act, ok = layout.Action(ev.Key)
			if !ok {
				d.log.Error("dropping press for key index %d beyond layout (%d keys)", ev.Key, layout.NumKeys())
				continue
			}
			held[ev.Key] = act
		case message.KindRelease:
			act = held[ev.Key]
			delete(held, ev.Key)
			if act == nil {
				var ok bool
				act, ok = layout.Action(ev.Key)
				if !ok {
					d.log.Error("dropping release for key index %d beyond layout (%d keys)", ev.Key, layout.NumKeys())
					continue
				}
			}
		default:
			d.log.Error("dropping event with unknown kind %d", ev.Kind)
			continue
		}

		d.enqueue(ctx, ev.Key, handlerTask{kind: ev.Kind, act: act})
	}
}

// enqueue appends the task to the key's serial queue, starting a drain
// worker when the queue was empty. At most one worker drains a given key at
// a time, which is what keeps same-key handlers in order.
func (d *Dispatcher) enqueue(ctx context.Context, key uint8, t handlerTask) {
	d.qmu.Lock()
	d.queues[key] = append(d.queues[key], t)
	starting := len(d.queues[key]) == 1
	d.qmu.Unlock()

	if !starting {
		return
	}
	d.wg.Add(1)
	go d.drain(ctx, key)
}

// drain runs the key's queued handlers to completion in FIFO order. The
// head task is popped only after its handler returns, so a concurrent
// enqueue sees a non-empty queue for as long as a worker is active.
func (d *Dispatcher) drain(ctx context.Context, key uint8) {
	defer d.wg.Done()
	for {
		d.qmu.Lock()
		t := d.queues[key][0]
		d.qmu.Unlock()

		if t.kind == message.KindPress {
			t.act.OnPress(ctx, d.env)
		} else {
			t.act.OnRelease(ctx, d.env)
		}

		d.qmu.Lock()
		d.queues[key] = d.queues[key][1:]
		if len(d.queues[key]) == 0 {
			delete(d.queues, key)
			d.qmu.Unlock()
			return
		}
		d.qmu.Unlock()
	}
}
