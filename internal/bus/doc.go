// Package bus provides the broadcast message bus the firmware core is built
// around: a single ordered queue with independent per-subscriber cursors.
//
// Every subscriber observes every message published after it subscribed,
// exactly once, in publication order. Publication order is the single global
// total order all subscribers agree on. Slots are retired once every
// registered subscriber has consumed them; a bounded capacity additionally
// retires the oldest slot when the queue is full, in which case a starved
// subscriber's next read reports how many messages it missed (a LaggedError)
// instead of silently skipping them.
//
// Publishing with no subscribers is a no-op, so an idle bus never grows.
package bus
