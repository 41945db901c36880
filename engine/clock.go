package engine

import (
	"sync"
	"time"
)

func NewClock() *Clock {
	return &Clock{}
}

// Clock is the engine's source of the current time.
// A clock can be fixed or moved forward, which makes time dependent behavior testable.
//
// Times are UTC and truncated to milliseconds, since timestamps are persisted with millisecond precision.
type Clock struct {
	mutex  sync.RWMutex
	fixed  time.Time
	offset time.Duration
}

// Add moves the clock forward.
func (c *Clock) Add(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.fixed.IsZero() {
		c.offset = c.offset + d
	} else {
		c.fixed = c.fixed.Add(d)
	}
}

func (c *Clock) IsFixed() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return !c.fixed.IsZero()
}

func (c *Clock) Now() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if !c.fixed.IsZero() {
		return c.fixed
	}
	return time.Now().UTC().Add(c.offset).Truncate(time.Millisecond)
}

// Reset returns to the system time.
func (c *Clock) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.fixed = time.Time{}
	c.offset = 0
}

// SetFixed freezes the clock at the given time.
func (c *Clock) SetFixed(t time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.fixed = t.UTC().Truncate(time.Millisecond)
}
