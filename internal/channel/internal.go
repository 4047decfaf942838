package channel

import (
	"context"
	"encoding"
	"errors"

	"github.com/dshills/keyflow/internal/bus"
	"github.com/dshills/keyflow/internal/logging"
	"github.com/dshills/keyflow/internal/message"
)

// Internal is the in-process tagged message channel. Send publishes a frame
// on the local bus and forwards the same bytes over the split link, so local
// consumers and the remote half observe identical events.
type Internal struct {
	bus       *bus.Bus[[]byte]
	transport Transport
	log       *logging.Logger
}

// NewInternal creates the internal channel over b, mirroring frames to t.
func NewInternal(b *bus.Bus[[]byte], t Transport, log *logging.Logger) *Internal {
	if t == nil {
		t = NopTransport{}
	}
	return &Internal{
		bus:       b,
		transport: t,
		log:       log.WithComponent("channel.internal"),
	}
}

// Send serializes m as tag||body, publishes it locally and forwards it to
// the split link. A transport failure is logged, not propagated: local
// consumers must still see the event.
func (c *Internal) Send(ctx context.Context, m message.Message) error {
	frame, err := message.Encode(m)
	if err != nil {
		return err
	}
	c.bus.Publish(frame)
	if err := c.transport.Send(ctx, frame); err != nil {
		c.log.Warn("split link send failed: %v", err)
	}
	return nil
}

// InjectFrame publishes raw bytes received from the remote half, tagged
// identically to local sends.
func (c *Internal) InjectFrame(frame []byte) {
	c.bus.Publish(frame)
}

// Receiver is a typed view over a raw-byte subscription for one message
// type M. Frames with a different tag are silently skipped; malformed bodies
// are logged and dropped; bus lag is logged and reading continues.
type Receiver[M any, PM interface {
	*M
	message.Message
	encoding.BinaryUnmarshaler
}] struct {
	sub *bus.Subscription[[]byte]
	log *logging.Logger
}

// NewReceiver subscribes to c and returns a typed receiver for M.
func NewReceiver[M any, PM interface {
	*M
	message.Message
	encoding.BinaryUnmarshaler
}](c *Internal) *Receiver[M, PM] {
	return &Receiver[M, PM]{
		sub: c.bus.Subscribe(),
		log: c.log,
	}
}

// Next blocks until the next well-formed message of type M arrives.
func (r *Receiver[M, PM]) Next(ctx context.Context) (M, error) {
	var zero M
	want := PM(&zero).MessageTag()

	for {
		frame, err := r.sub.Next(ctx)
		if err != nil {
			var lag *bus.LaggedError
			if errors.As(err, &lag) {
				r.log.Warn("receiver %s lagged, skipped %d messages", r.sub.Token(), lag.Count)
				continue
			}
			return zero, err
		}

		tag, ok := message.FrameTag(frame)
		if !ok {
			r.log.Error("dropping frame shorter than a tag (%d bytes)", len(frame))
			continue
		}
		if tag != want {
			continue
		}

		var m M
		if err := PM(&m).UnmarshalBinary(frame[message.TagSize:]); err != nil {
			r.log.Error("dropping malformed %s frame: %v", tag, err)
			continue
		}
		return m, nil
	}
}

// Close releases the underlying subscription.
func (r *Receiver[M, PM]) Close() {
	r.sub.Close()
}
