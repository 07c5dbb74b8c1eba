// Package clock provides time sources for production and testing
package clock

import (
	"sync"
	"time"
)

// System reads the wall clock
type System struct{}

// Now returns the current time
func (System) Now() time.Time {
	return time.Now()
}

// Stepping is a deterministic clock that advances by a fixed step on every read
type Stepping struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepping returns a clock whose first reading is start
func NewStepping(start time.Time, step time.Duration) *Stepping {
	return &Stepping{now: start, step: step}
}

// Now returns the current reading and moves the clock forward by one step
func (c *Stepping) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now
	c.now = c.now.Add(c.step)
	return now
}
