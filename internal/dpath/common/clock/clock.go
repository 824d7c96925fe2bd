package clock

import (
	"sync"
	"time"
)

// Clock is the time source for cache promotion decisions.
type Clock interface {
	Now() time.Time
}

// NowNanos returns c.Now() as unsigned nanoseconds, the unit stored in the
// pre-cache and hotpath tables.
func NowNanos(c Clock) uint64 {
	ns := c.Now().UnixNano()
	if ns < 0 {
		return 0
	}
	return uint64(ns)
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a manually advanced clock. Safe for concurrent use.
type MockClock struct {
	mu          sync.Mutex
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.CurrentTime = c.CurrentTime.Add(d)
	c.mu.Unlock()
}

func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.CurrentTime = t
	c.mu.Unlock()
}
