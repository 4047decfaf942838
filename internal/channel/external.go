package channel

import (
	"context"

	"github.com/dshills/keyflow/internal/bus"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
	"github.com/dshills/keyflow/internal/override"
)

// External is the outbound pipeline. Send walks the override chain from
// stage 0; messages an override emits re-enter the chain at the NEXT stage,
// never at the start, so a stage cannot see its own output. Whatever reaches
// the end of the chain is published on the outbound observer bus and
// forwarded to the HID transport.
type External struct {
	chain     []override.Override
	out       *bus.Bus[message.Message]
	transport Transport
	log       *logging.Logger
}

// NewExternal creates the outbound pipeline with the given override chain.
func NewExternal(chain []override.Override, out *bus.Bus[message.Message], t Transport, log *logging.Logger) *External {
	if t == nil {
		t = NopTransport{}
	}
	return &External{
		chain:     chain,
		out:       out,
		transport: t,
		log:       log.WithComponent("channel.external"),
	}
}

// Send routes m through the override chain toward the transport.
func (e *External) Send(ctx context.Context, m message.Message) error {
	return e.sendFrom(ctx, 0, m)
}

// Subscribe returns a subscription to the outbound observer bus, delivering
// every message that survived the override chain.
func (e *External) Subscribe() *bus.Subscription[message.Message] {
	return e.out.Subscribe()
}

func (e *External) sendFrom(ctx context.Context, stage int, m message.Message) error {
	if stage >= len(e.chain) {
		return e.deliver(ctx, m)
	}
	next := override.SenderFunc(func(out message.Message) error {
		return e.sendFrom(ctx, stage+1, out)
	})
	return e.chain[stage].OverrideMessage(m, next)
}

func (e *External) deliver(ctx context.Context, m message.Message) error {
	e.out.Publish(m)

	frame, err := message.Encode(m)
	if err != nil {
		e.log.Error("dropping unencodable outbound message: %v", err)
		return nil
	}
	if err := e.transport.Send(ctx, frame); err != nil {
		e.log.Warn("transport send failed: %v", err)
	}
	return nil
}
