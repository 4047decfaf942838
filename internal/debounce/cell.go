package debounce

import "time"

// Cell is the incremental form of the debouncer, driven by explicit
// (now, raw) samples instead of blocking on a pin. The matrix scanner keeps
// one per mapped cell and calls Update on every strobe pass.
//
// The eager path tracks a rolling suppression deadline per cell; the defer
// path tracks a pending-since timestamp and commits only once the pending
// level has been stable for the configured duration.
type Cell struct {
	cfg Config

	committed bool

	// Eager suppression window.
	suppressUntil time.Time
	suppressed    bool

	// Defer pending change.
	pending      bool
	pendingSince time.Time
}

// NewCell creates a cell in the inactive committed state.
func NewCell(cfg Config) Cell {
	return Cell{cfg: cfg}
}

// Active reports the committed logical state.
func (c *Cell) Active() bool {
	return c.committed
}

// Update feeds one raw sample taken at now. It reports whether the
// committed state flipped on this sample.
func (c *Cell) Update(now time.Time, raw bool) bool {
	if c.suppressed {
		if now.Before(c.suppressUntil) {
			return false
		}
		c.suppressed = false
	}

	if raw == c.committed {
		c.pending = false
		return false
	}

	spec := c.cfg.Release
	if raw {
		spec = c.cfg.Press
	}

	switch spec.Mode {
	case ModeEager:
		c.committed = raw
		c.suppressed = true
		c.suppressUntil = now.Add(spec.Duration)
		return true
	case ModeDefer:
		if !c.pending {
			c.pending = true
			c.pendingSince = now
			return false
		}
		if now.Sub(c.pendingSince) >= spec.Duration {
			c.committed = raw
			c.pending = false
			return true
		}
		return false
	default:
		c.committed = raw
		return true
	}
}

// Settled reports whether the cell needs no further attention: no eager
// suppression window is running and no deferred change is pending. The
// matrix settle loop keeps strobing until every cell is settled and
// raw-inactive.
func (c *Cell) Settled(now time.Time) bool {
	if c.suppressed && now.Before(c.suppressUntil) {
		return false
	}
	return !c.pending
}
