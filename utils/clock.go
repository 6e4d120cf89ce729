package utils

import "time"

// MonotonicClock counts ticks of a fixed duration since it was created. The
// count wraps at 2^32; the scheduler's unsigned subtraction copes with that.
type MonotonicClock struct {
	tick   time.Duration
	origin int64
}

func NewMonotonicClock(tick time.Duration) *MonotonicClock {
	if tick <= 0 {
		tick = time.Millisecond
	}
	return &MonotonicClock{tick: tick, origin: monotonicNanos()}
}

// Ticks implements blackboard.Clock.
func (c *MonotonicClock) Ticks() uint32 {
	return uint32((monotonicNanos() - c.origin) / int64(c.tick))
}

// Tick returns the tick duration.
func (c *MonotonicClock) Tick() time.Duration { return c.tick }
