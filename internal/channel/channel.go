// Package channel wires the broadcast bus to the rest of the firmware.
//
// The internal channel multiplexes heterogeneous message types over one
// raw-byte bus using 4-byte tags, and mirrors every frame to the split link
// so both keyboard halves observe the same events. The external channel is
// the outbound pipeline: messages pass through the configured override chain
// and then reach both a local observer bus and the HID transport.
package channel

import "context"

// Transport carries serialized frames to a peer: the other half of a split
// keyboard for the internal channel, or a USB/BLE HID bridge for the
// external channel. Implementations live outside the core.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
}

// NopTransport discards every frame; it stands in for a disabled link.
type NopTransport struct{}

// Send implements Transport.
func (NopTransport) Send(context.Context, []byte) error { return nil }
