// Package clock decides when a simulation step fires, independent of the caller's frame rate.
package clock

// Clock tracks the timestamp of the last committed step. The zero value is
// disarmed: the first Tick only records a baseline.
type Clock struct {
	baseline int64
	armed    bool
}

// Tick reports whether a step should fire at now (monotonic milliseconds).
// When it fires the baseline moves to now, so any backlog collapses into a
// single step.
func (c *Clock) Tick(now, interval int64) bool {
	if !c.armed {
		c.baseline = now
		c.armed = true
		return false
	}
	if now-c.baseline < interval {
		return false
	}
	c.baseline = now
	return true
}

// Rearm drops the baseline. Call on start, resume and reset.
func (c *Clock) Rearm() {
	c.armed = false
	c.baseline = 0
}

// Armed reports whether a baseline has been recorded.
func (c *Clock) Armed() bool {
	return c.armed
}
