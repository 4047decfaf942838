// Package override implements the outbound message interception chain.
//
// Overrides are stateful interceptors consulted in a fixed configured order:
// each stage receives one outbound message and may emit zero or more
// replacement or derived messages through the sender it is handed. Every
// emitted message continues through the LATER stages of the chain only, so a
// stage can never observe its own output. The external channel owns the
// chain; with no overrides configured it degenerates to a direct
// publish-and-forward.
package override

import "github.com/dshills/keyflow/internal/message"

// Sender forwards a message to the remainder of the chain.
type Sender interface {
	Send(m message.Message) error
}

// Override is one stage of the interception chain.
type Override interface {
	// OverrideMessage inspects m and emits zero or more messages via next.
	// Not emitting anything suppresses m entirely.
	OverrideMessage(m message.Message, next Sender) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(m message.Message) error

// Send implements Sender.
func (f SenderFunc) Send(m message.Message) error {
	return f(m)
}
