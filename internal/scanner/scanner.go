// Package scanner samples physical switches and emits logical key
// press/release events on the internal channel.
//
// Two scanners are provided: DirectPins runs one independent debounce loop
// per input pin, and Matrix multiplexes a row/column grid with a two-phase
// scan cycle (an interrupt-style idle wait, then an active settle loop that
// strobes rows). Both guarantee paired events: a release for a key index is
// never emitted without a prior unmatched press, which the action system
// depends on.
//
// Transient pin read failures are logged and the affected iteration skipped;
// scanning always continues.
package scanner

import (
	"context"

	"github.com/dshills/keyflow/internal/message"
)

// Unmapped marks a transform table slot with no key assigned. Unmapped pins
// and cells are scanned but produce no events.
const Unmapped = -1

// EventSink receives the key events a scanner emits, normally the internal
// channel.
type EventSink interface {
	Send(ctx context.Context, m message.Message) error
}
