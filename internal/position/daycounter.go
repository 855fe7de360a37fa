package position

import (
	"sync"
	"time"
)

// DayCounter counts accepted entries per UTC calendar day. The reset is
// lazy: the first access after the wall-clock day changes zeroes the
// counter, no timer involved. Open positions are unaffected by a rollover.
type DayCounter struct {
	mu    sync.Mutex
	day   string // "2006-01-02" in UTC
	count int
}

// NewDayCounter creates a counter anchored to the day of now.
func NewDayCounter(now time.Time) *DayCounter {
	return &DayCounter{day: dayKey(now)}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Count returns the number of trades counted for the day of now, resetting
// first if the day changed.
func (c *DayCounter) Count(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollLocked(now)
	return c.count
}

// Increment records an accepted entry against the day of now.
func (c *DayCounter) Increment(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollLocked(now)
	c.count++
}

// Roll resets the counter if the UTC day changed and reports whether it did,
// returning the count accumulated on the previous day. Callers use this to
// emit end-of-day summaries exactly once per rollover.
func (c *DayCounter) Roll(now time.Time) (prevCount int, rolled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.count
	if c.rollLocked(now) {
		return prev, true
	}
	return 0, false
}

func (c *DayCounter) rollLocked(now time.Time) bool {
	key := dayKey(now)
	if key == c.day {
		return false
	}
	c.day = key
	c.count = 0
	return true
}
