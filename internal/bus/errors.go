package bus

import (
	"errors"
	"fmt"
)

// Sentinel errors for the broadcast bus.
var (
	// ErrSubscriptionClosed is returned by Next after Close.
	ErrSubscriptionClosed = errors.New("bus subscription is closed")
)

// LaggedError reports that a subscriber fell behind and the slots it wanted
// were already retired. The cursor has been advanced past the gap; the caller
// is expected to log and call Next again.
type LaggedError struct {
	// Count is the number of messages the subscriber missed.
	Count uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("bus subscription lagged by %d messages", e.Count)
}
